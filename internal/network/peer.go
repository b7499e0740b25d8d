package network

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"RadNode/internal/logger"
)

// defaultRequestTimeout bounds requests whose context has no deadline.
const defaultRequestTimeout = 15 * time.Second

// Peer is an authenticated connection to a remote node.
type Peer struct {
	publicKey ed25519.PublicKey // publicKey is the remote identity
	address   string            // address is the remote address
	conn      *quic.Conn        // conn is the QUIC connection
	node      *Node             // node is the owning node
	closed    atomic.Bool       // closed is set once the peer is gone
}

// PublicKey returns the remote identity key.
func (p *Peer) PublicKey() ed25519.PublicKey {
	return p.publicKey
}

// Address returns the remote address.
func (p *Peer) Address() string {
	return p.address
}

// Send writes a one-way message on a new unidirectional stream.
func (p *Peer) Send(data []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("peer is closed")
	}

	stream, err := p.conn.OpenUniStreamSync(context.Background())
	if err != nil {
		return fmt.Errorf("open stream:\n%w", err)
	}

	if err := writeMessage(stream, data); err != nil {
		stream.CancelWrite(1)
		return err
	}

	return stream.Close()
}

// Request sends data on a bidirectional stream and waits for the answer.
func (p *Peer) Request(ctx context.Context, data []byte) ([]byte, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("peer is closed")
	}

	stream, err := p.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream:\n%w", err)
	}
	defer stream.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultRequestTimeout)
	}
	stream.SetDeadline(deadline)

	if err := writeMessage(stream, data); err != nil {
		return nil, fmt.Errorf("write request:\n%w", err)
	}

	response, err := readMessage(stream)
	if err != nil {
		return nil, fmt.Errorf("read response:\n%w", err)
	}

	return response, nil
}

// Close closes the connection.
func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	return p.conn.CloseWithError(0, "closed")
}

// receiveLoop serves incoming streams until the connection ends.
func (p *Peer) receiveLoop(ctx context.Context) {
	go p.acceptBidiStreams(ctx)

	for {
		stream, err := p.conn.AcceptUniStream(ctx)
		if err != nil {
			logger.Debug("peer receive loop ended", "peer", p.address, "error", err)
			break
		}

		go p.handleUniStream(stream)
	}

	p.handleDisconnect()
}

// acceptBidiStreams serves request streams.
func (p *Peer) acceptBidiStreams(ctx context.Context) {
	for {
		stream, err := p.conn.AcceptStream(ctx)
		if err != nil {
			return
		}

		go p.handleBidiStream(stream)
	}
}

// handleBidiStream answers a single request.
func (p *Peer) handleBidiStream(stream *quic.Stream) {
	defer stream.Close()

	data, err := readMessage(stream)
	if err != nil {
		return
	}

	response, err := p.node.answer(p, data)
	if err != nil {
		logger.Debug("request failed", "peer", p.address, "error", err)
		stream.CancelWrite(2)
		return
	}

	if err := writeMessage(stream, response); err != nil {
		logger.Debug("write response failed", "peer", p.address, "error", err)
	}
}

// handleUniStream reads one broadcast.
func (p *Peer) handleUniStream(stream *quic.ReceiveStream) {
	data, err := readMessage(stream)
	if err != nil {
		logger.Debug("stream read error", "peer", p.address, "error", err)
		return
	}

	p.node.deliver(p, data)
}

// handleDisconnect notifies the node once.
func (p *Peer) handleDisconnect() {
	if p.closed.Swap(true) {
		return
	}

	p.node.peerLost(p)
}

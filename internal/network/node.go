package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"RadNode/internal/logger"
)

const (
	// defaultReconnectDelay is the first wait before redialing a lost peer.
	defaultReconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the redial backoff.
	maxReconnectDelay = 60 * time.Second

	// dialTimeout bounds a single dial when the caller sets no deadline.
	dialTimeout = 10 * time.Second

	// alpnProtocol is the ALPN protocol identifier of the witness transport.
	alpnProtocol = "radnode/1"
)

// RequestHandler answers a request received from a peer.
type RequestHandler func(p *Peer, data []byte) ([]byte, error)

// MessageHandler consumes a one-way message received from a peer.
type MessageHandler func(p *Peer, data []byte)

// Config holds the configuration for a Node.
type Config struct {
	PrivateKey     ed25519.PrivateKey // PrivateKey is the node's identity key
	ListenAddr     string             // ListenAddr is the QUIC address to listen on (e.g., ":9100")
	ReconnectDelay time.Duration      // ReconnectDelay is the first redial delay for lost peers
	DedupTTL       time.Duration      // DedupTTL is how long broadcast messages are remembered
}

// handlerSet groups the callbacks installed on a node.
type handlerSet struct {
	mu        sync.RWMutex   // mu guards the callbacks
	onConnect func(*Peer)    // onConnect runs for every new peer
	onMessage MessageHandler // onMessage receives deduplicated broadcasts
	onRequest RequestHandler // onRequest answers requests
}

// Node is a QUIC endpoint connecting witnesses. Requests travel on
// bidirectional streams, broadcasts on unidirectional ones.
type Node struct {
	identity ed25519.PrivateKey // identity signs the node's TLS certificate
	addr     string             // addr is the configured listen address
	tls      *tls.Config        // tls carries the self-signed certificate
	quic     *quic.Config       // quic holds transport timeouts

	listener *quic.Listener // listener accepts inbound witnesses
	peers    *registry      // peers tracks live connections and dial addresses
	handlers handlerSet     // handlers are the installed callbacks
	dedup    *Dedup         // dedup drops repeated broadcasts
	backoff  time.Duration  // backoff is the first redial delay

	ctx    context.Context    // ctx ends with Close
	cancel context.CancelFunc // cancel ends ctx
	wg     sync.WaitGroup     // wg tracks loops and redials
}

// NewNode creates a network node. Call Start to listen.
func NewNode(cfg Config) (*Node, error) {
	switch {
	case cfg.PrivateKey == nil:
		return nil, fmt.Errorf("private key is required")
	case cfg.ListenAddr == "":
		return nil, fmt.Errorf("listen address is required")
	}

	cert, err := generateCertificate(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("generate certificate:\n%w", err)
	}

	backoff := cfg.ReconnectDelay
	if backoff <= 0 {
		backoff = defaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		identity: cfg.PrivateKey,
		addr:     cfg.ListenAddr,
		tls: &tls.Config{
			Certificates:       []tls.Certificate{cert},
			ClientAuth:         tls.RequireAnyClientCert,
			InsecureSkipVerify: true, // witnesses are authenticated by their ed25519 key
			NextProtos:         []string{alpnProtocol},
		},
		quic: &quic.Config{
			MaxIdleTimeout:  30 * time.Second,
			KeepAlivePeriod: 10 * time.Second,
		},
		peers:   newRegistry(),
		dedup:   NewDedup(cfg.DedupTTL),
		backoff: backoff,
		ctx:     ctx,
		cancel:  cancel,
	}

	return n, nil
}

// PublicKey returns the node's identity key.
func (n *Node) PublicKey() ed25519.PublicKey {
	return n.identity.Public().(ed25519.PublicKey)
}

// Addr returns the bound listen address, or an empty string before Start.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// Start binds the listener and begins accepting witnesses.
func (n *Node) Start() error {
	ln, err := quic.ListenAddr(n.addr, n.tls, n.quic)
	if err != nil {
		return fmt.Errorf("listen on %s:\n%w", n.addr, err)
	}

	n.listener = ln

	n.wg.Add(1)
	go n.acceptLoop()

	logger.Info("quic listening", "addr", n.Addr(), "alpn", alpnProtocol)

	return nil
}

// Connect dials addr and registers the remote node as a peer. Dialed peers
// are redialed with backoff when their connection drops.
func (n *Node) Connect(ctx context.Context, addr string) (*Peer, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}

	conn, err := quic.DialAddr(ctx, addr, n.tls, n.quic)
	if err != nil {
		return nil, fmt.Errorf("dial %s:\n%w", addr, err)
	}

	p, err := n.register(conn, addr, true)
	if err != nil {
		conn.CloseWithError(1, "setup failed")
		return nil, err
	}

	return p, nil
}

// PeerAt returns the live peer with the given identity, dialing addr when
// there is none. A node answering at addr with another identity is rejected.
func (n *Node) PeerAt(ctx context.Context, addr string, key ed25519.PublicKey) (*Peer, error) {
	if p := n.peers.get(key); p != nil {
		return p, nil
	}

	p, err := n.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(p.PublicKey(), key) {
		return nil, fmt.Errorf("node at %s has identity %x, want %x", addr, p.PublicKey()[:8], key[:8])
	}

	return p, nil
}

// Broadcast sends a one-way message to every connected peer.
// Returns the last send error, if any.
func (n *Node) Broadcast(data []byte) error {
	var lastErr error

	for _, p := range n.peers.snapshot() {
		if err := p.Send(data); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Peers returns all connected peers.
func (n *Node) Peers() []*Peer {
	return n.peers.snapshot()
}

// GetPeer returns the peer with the given identity, or nil if not connected.
func (n *Node) GetPeer(key ed25519.PublicKey) *Peer {
	return n.peers.get(key)
}

// OnConnect sets the handler called when a peer connects.
func (n *Node) OnConnect(fn func(*Peer)) {
	n.handlers.mu.Lock()
	defer n.handlers.mu.Unlock()

	n.handlers.onConnect = fn
}

// OnMessage sets the handler for deduplicated broadcasts.
func (n *Node) OnMessage(fn MessageHandler) {
	n.handlers.mu.Lock()
	defer n.handlers.mu.Unlock()

	n.handlers.onMessage = fn
}

// OnRequest sets the handler answering requests.
func (n *Node) OnRequest(fn RequestHandler) {
	n.handlers.mu.Lock()
	defer n.handlers.mu.Unlock()

	n.handlers.onRequest = fn
}

// Close stops redials, closes the listener and every connection, and waits
// for the background loops.
func (n *Node) Close() error {
	n.cancel()

	if n.listener != nil {
		n.listener.Close()
	}

	for _, p := range n.peers.drain() {
		p.Close()
	}

	n.dedup.Close()
	n.wg.Wait()

	return nil
}

// acceptLoop registers inbound connections until the listener closes.
func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			return
		}

		go func() {
			p, err := n.register(conn, conn.RemoteAddr().String(), false)
			if err != nil {
				logger.Debug("rejected connection", "addr", conn.RemoteAddr(), "error", err)
				conn.CloseWithError(1, "setup failed")
				return
			}

			n.connected(p)
		}()
	}
}

// register authenticates a connection by its certificate key, makes it the
// live peer for that identity and starts its stream loops.
func (n *Node) register(conn *quic.Conn, addr string, outbound bool) (*Peer, error) {
	key, err := extractPublicKey(conn.ConnectionState().TLS)
	if err != nil {
		return nil, fmt.Errorf("extract public key:\n%w", err)
	}

	p := &Peer{publicKey: key, address: addr, conn: conn, node: n}

	if prev := n.peers.add(p, outbound); prev != nil {
		// the replaced connection must not trigger a redial
		prev.closed.Store(true)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		p.receiveLoop(n.ctx)
	}()

	return p, nil
}

// peerLost forgets a closed peer and redials it when this node dialed it.
func (n *Node) peerLost(p *Peer) {
	addr := n.peers.remove(p)
	if addr == "" || n.ctx.Err() != nil {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.redial(identity(p.publicKey), addr)
	}()
}

// redial reconnects to addr with doubling delays until the identity is
// connected again or the node closes.
func (n *Node) redial(id, addr string) {
	delay := n.backoff

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-timer.C:
		}

		if n.peers.connected(id) {
			return
		}

		p, err := n.Connect(n.ctx, addr)
		if err == nil {
			logger.Debug("peer reconnected", "addr", addr)
			n.connected(p)
			return
		}

		delay = min(2*delay, maxReconnectDelay)
		timer.Reset(delay)
	}
}

// connected runs the connect callback.
func (n *Node) connected(p *Peer) {
	n.handlers.mu.RLock()
	fn := n.handlers.onConnect
	n.handlers.mu.RUnlock()

	if fn != nil {
		fn(p)
	}
}

// deliver passes a broadcast to the message handler unless it was already seen.
func (n *Node) deliver(p *Peer, data []byte) {
	if !n.dedup.Check(data) {
		return
	}

	n.handlers.mu.RLock()
	fn := n.handlers.onMessage
	n.handlers.mu.RUnlock()

	if fn != nil {
		fn(p, data)
	}
}

// answer runs the request handler.
func (n *Node) answer(p *Peer, data []byte) ([]byte, error) {
	n.handlers.mu.RLock()
	fn := n.handlers.onRequest
	n.handlers.mu.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("no request handler registered")
	}

	return fn(p, data)
}

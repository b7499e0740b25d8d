package network

import (
	"crypto/ed25519"
	"encoding/hex"
	"sync"
)

// registry tracks live peers by identity and the addresses of the peers this
// node dialed itself. Only dialed peers are redialed after a disconnect: an
// inbound connection's remote address is an ephemeral port.
type registry struct {
	mu     sync.RWMutex      // mu guards both maps
	live   map[string]*Peer  // live maps identity hex to the current connection
	dialed map[string]string // dialed maps identity hex to the address we dialed
}

// newRegistry creates an empty registry.
func newRegistry() *registry {
	return &registry{
		live:   make(map[string]*Peer),
		dialed: make(map[string]string),
	}
}

// identity returns the registry key of a public key.
func identity(key ed25519.PublicKey) string {
	return hex.EncodeToString(key)
}

// add makes p the live connection for its identity and returns the
// connection it replaces, if any. outbound records the address for redials.
func (r *registry) add(p *Peer, outbound bool) *Peer {
	id := identity(p.publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.live[id]
	r.live[id] = p

	if outbound {
		r.dialed[id] = p.address
	}

	return prev
}

// remove drops p if it is still the live connection for its identity.
// It returns the address to redial, empty when p was inbound or replaced.
func (r *registry) remove(p *Peer) string {
	id := identity(p.publicKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live[id] != p {
		return ""
	}

	delete(r.live, id)

	return r.dialed[id]
}

// get returns the live peer for a key, or nil.
func (r *registry) get(key ed25519.PublicKey) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.live[identity(key)]
}

// connected reports whether an identity has a live connection.
func (r *registry) connected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.live[id]
	return ok
}

// snapshot returns the live peers.
func (r *registry) snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Peer, 0, len(r.live))
	for _, p := range r.live {
		out = append(out, p)
	}

	return out
}

// drain removes and returns every live peer.
func (r *registry) drain() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Peer, 0, len(r.live))
	for id, p := range r.live {
		out = append(out, p)
		delete(r.live, id)
	}

	return out
}

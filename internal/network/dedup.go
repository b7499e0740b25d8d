package network

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

const (
	// defaultDedupTTL is how long an announcement hash is remembered.
	defaultDedupTTL = 30 * time.Second

	// cleanupInterval is the interval between cleanup runs.
	cleanupInterval = 5 * time.Second
)

// Dedup remembers recently seen announcements so that a request broadcast
// by several peers is only resolved once. Entries expire after a TTL.
type Dedup struct {
	seen map[[32]byte]time.Time // seen maps message hash to first sighting
	mu   sync.Mutex             // mu protects seen
	ttl  time.Duration          // ttl is the retention time
	stop chan struct{}          // stop signals the cleanup goroutine to stop
	wg   sync.WaitGroup         // wg waits for the cleanup goroutine
}

// NewDedup creates a deduplication tracker with the given TTL.
// A zero ttl uses defaultDedupTTL.
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}

	d := &Dedup{
		seen: make(map[[32]byte]time.Time),
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.cleanupLoop()

	return d
}

// Check returns true the first time a message is seen within the TTL.
func (d *Dedup) Check(data []byte) bool {
	hash := blake3.Sum256(data)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.seen[hash]; ok && now.Sub(ts) < d.ttl {
		return false
	}

	d.seen[hash] = now

	return true
}

// Len returns the number of remembered hashes.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.seen)
}

// Close stops the cleanup goroutine.
func (d *Dedup) Close() {
	close(d.stop)
	d.wg.Wait()
}

// cleanupLoop periodically drops expired entries.
func (d *Dedup) cleanupLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.expire(time.Now())
		case <-d.stop:
			return
		}
	}
}

// expire removes entries older than the TTL at the given time.
func (d *Dedup) expire(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for hash, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, hash)
		}
	}
}

package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// compressThreshold is the smallest value size worth compressing.
	compressThreshold = 256
)

// Value encodings, stored as the first byte of every value.
const (
	encodingRaw  byte = 0x00
	encodingZstd byte = 0x01
)

// ErrCorruptValue is returned when a stored value has an unknown encoding.
var ErrCorruptValue = errors.New("corrupt stored value")

// KeyValue represents a key-value pair for batch operations.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Storage is a Pebble key-value store holding archived reports.
// Values above compressThreshold are zstd-compressed transparently.
// Writes are non-blocking (NoSync) and a background goroutine
// periodically syncs the WAL to disk.
type Storage struct {
	db       *pebble.DB     // db is the underlying Pebble database
	encoder  *zstd.Encoder  // encoder compresses large values
	decoder  *zstd.Decoder  // decoder restores compressed values
	stopSync chan struct{}  // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup // wg tracks the sync goroutine
}

// New opens a Storage at the given path and starts the WAL sync loop.
func New(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(16 << 20), // 16 MB cache
		MemTableSize:                8 << 20,                   // 8 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder:\n%w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder:\n%w", err)
	}

	s := &Storage{
		db:       db,
		encoder:  encoder,
		decoder:  decoder,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q:\n%w", key, err)
	}
	defer closer.Close()

	return s.decode(value)
}

// Has reports whether a key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %q:\n%w", key, err)
	}

	closer.Close()

	return true, nil
}

// Set stores a key-value pair.
// The write is buffered and synced periodically by the background goroutine.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, s.encode(value), pebble.NoSync)
}

// Delete removes a key from the store.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch atomically stores multiple key-value pairs.
// Either all pairs are written or none.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	return s.ReplacePrefix(nil, pairs)
}

// ReplacePrefix atomically deletes every key under prefix and stores pairs.
// A nil prefix deletes nothing.
func (s *Storage) ReplacePrefix(prefix []byte, pairs []KeyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if prefix != nil {
		if err := batch.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
			return fmt.Errorf("delete range:\n%w", err)
		}
	}

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, s.encode(kv.Value), nil); err != nil {
			return fmt.Errorf("batch set %q:\n%w", kv.Key, err)
		}
	}

	return batch.Commit(pebble.NoSync)
}

// IteratePrefix calls fn for each key-value pair with the given prefix, in
// lexicographic key order. If fn returns an error, iteration stops.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("new iterator:\n%w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		raw, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		value, err := s.decode(raw)
		if err != nil {
			return fmt.Errorf("decode %q:\n%w", iter.Key(), err)
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// encode prefixes the value with its encoding byte, compressing large values.
func (s *Storage) encode(value []byte) []byte {
	if len(value) < compressThreshold {
		out := make([]byte, 0, len(value)+1)
		out = append(out, encodingRaw)
		return append(out, value...)
	}

	out := make([]byte, 1, len(value)/2+1)
	out[0] = encodingZstd

	return s.encoder.EncodeAll(value, out)
}

// decode returns a fresh copy of the stored value without its encoding byte.
func (s *Storage) decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, ErrCorruptValue
	}

	switch stored[0] {
	case encodingRaw:
		result := make([]byte, len(stored)-1)
		copy(result, stored[1:])
		return result, nil
	case encodingZstd:
		result, err := s.decoder.DecodeAll(stored[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode:\n%w", err)
		}
		return result, nil
	default:
		return nil, ErrCorruptValue
	}
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close stops the sync goroutine, syncs once more and closes the database.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	s.encoder.Close()
	s.decoder.Close()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}

package archive

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"RadNode/internal/radon"
	"RadNode/internal/storage"
)

// prefixReport is the storage key prefix of archived reports.
var prefixReport = []byte("rep:")

// ErrNotFound is returned when no report is archived under an id.
var ErrNotFound = errors.New("report not found")

// Entry is an archived report and the request id it answers.
type Entry struct {
	ID     [32]byte     // ID is the request id
	Report radon.Report // Report is the final report
}

// Archive persists final reports keyed by request id.
type Archive struct {
	db *storage.Storage // db is the backing store
	mu sync.Mutex       // mu serializes PutIfAbsent
}

// New creates an archive over a storage.
func New(db *storage.Storage) *Archive {
	return &Archive{db: db}
}

// reportKey returns the storage key of a request id.
func reportKey(id [32]byte) []byte {
	key := make([]byte, 0, len(prefixReport)+len(id))
	key = append(key, prefixReport...)
	return append(key, id[:]...)
}

// Put stores the report for a request id, replacing any previous one.
func (a *Archive) Put(id [32]byte, report radon.Report) error {
	data, err := radon.EncodeReport(report)
	if err != nil {
		return fmt.Errorf("encode report:\n%w", err)
	}

	if err := a.db.Set(reportKey(id), data); err != nil {
		return fmt.Errorf("store report %s:\n%w", hex.EncodeToString(id[:8]), err)
	}

	return nil
}

// PutIfAbsent stores the report unless one is already archived for the id.
// It returns the report the archive holds afterwards.
func (a *Archive) PutIfAbsent(id [32]byte, report radon.Report) (radon.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.Get(id)
	if err == nil {
		return stored, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return radon.Report{}, err
	}

	if err := a.Put(id, report); err != nil {
		return radon.Report{}, err
	}

	return report, nil
}

// GetRaw returns the encoded report for a request id.
func (a *Archive) GetRaw(id [32]byte) ([]byte, error) {
	data, err := a.db.Get(reportKey(id))
	if err != nil {
		return nil, fmt.Errorf("load report:\n%w", err)
	}

	if data == nil {
		return nil, ErrNotFound
	}

	return data, nil
}

// Get returns the report for a request id, or ErrNotFound.
func (a *Archive) Get(id [32]byte) (radon.Report, error) {
	data, err := a.GetRaw(id)
	if err != nil {
		return radon.Report{}, err
	}

	report, err := radon.DecodeReport(data)
	if err != nil {
		return radon.Report{}, fmt.Errorf("decode report:\n%w", err)
	}

	return report, nil
}

// List returns every archived report in id order.
func (a *Archive) List() ([]Entry, error) {
	var entries []Entry

	err := a.db.IteratePrefix(prefixReport, func(key, value []byte) error {
		id, ok := idFromKey(key)
		if !ok {
			return nil
		}

		report, err := radon.DecodeReport(value)
		if err != nil {
			return fmt.Errorf("decode report %x:\n%w", id[:8], err)
		}

		entries = append(entries, Entry{ID: id, Report: report})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// idFromKey extracts the request id from a report key.
func idFromKey(key []byte) ([32]byte, bool) {
	var id [32]byte

	if !bytes.HasPrefix(key, prefixReport) || len(key) != len(prefixReport)+len(id) {
		return id, false
	}

	copy(id[:], key[len(prefixReport):])
	return id, true
}

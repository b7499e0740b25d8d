package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"RadNode/internal/radon"
	"RadNode/internal/storage"
)

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

// maxSnapshotSize bounds the decompressed size of an imported snapshot.
const maxSnapshotSize = 1 << 30

// ErrChecksumMismatch is returned when a snapshot fails verification.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// snapshot is the CBOR layout of an archive export.
type snapshot struct {
	Version  uint32          `cbor:"1,keyasint"`
	Entries  []snapshotEntry `cbor:"2,keyasint"`
	Checksum []byte          `cbor:"3,keyasint"`
}

// snapshotEntry is one archived report, kept in its encoded form.
type snapshotEntry struct {
	ID     []byte `cbor:"1,keyasint"`
	Report []byte `cbor:"2,keyasint"`
}

// Export writes every archived report as a zstd-compressed CBOR snapshot.
// Returns the number of exported reports.
func (a *Archive) Export(w io.Writer) (int, error) {
	var entries []snapshotEntry

	err := a.db.IteratePrefix(prefixReport, func(key, value []byte) error {
		id, ok := idFromKey(key)
		if !ok {
			return nil
		}

		entries = append(entries, snapshotEntry{ID: id[:], Report: value})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("collect reports:\n%w", err)
	}

	snap := snapshot{
		Version:  snapshotVersion,
		Entries:  entries,
		Checksum: computeChecksum(snapshotVersion, entries),
	}

	data, err := radon.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot:\n%w", err)
	}

	if err := compress(w, data); err != nil {
		return 0, err
	}

	return len(entries), nil
}

// Import verifies a snapshot and atomically replaces the archived reports
// with its content. Returns the number of imported reports.
func (a *Archive) Import(r io.Reader) (int, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("create zstd decoder:\n%w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(io.LimitReader(decoder, maxSnapshotSize))
	if err != nil {
		return 0, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	var snap snapshot
	if err := radon.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("decode snapshot:\n%w", err)
	}

	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	if !bytes.Equal(snap.Checksum, computeChecksum(snap.Version, snap.Entries)) {
		return 0, ErrChecksumMismatch
	}

	pairs := make([]storage.KeyValue, 0, len(snap.Entries))

	for i, e := range snap.Entries {
		if len(e.ID) != 32 {
			return 0, fmt.Errorf("entry %d: invalid id length %d", i, len(e.ID))
		}

		if _, err := radon.DecodeReport(e.Report); err != nil {
			return 0, fmt.Errorf("entry %d:\n%w", i, err)
		}

		var id [32]byte
		copy(id[:], e.ID)

		pairs = append(pairs, storage.KeyValue{Key: reportKey(id), Value: e.Report})
	}

	if err := a.db.ReplacePrefix(prefixReport, pairs); err != nil {
		return 0, fmt.Errorf("restore reports:\n%w", err)
	}

	return len(pairs), nil
}

// computeChecksum hashes the version and every entry in order.
func computeChecksum(version uint32, entries []snapshotEntry) []byte {
	hasher := blake3.New()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], version)
	hasher.Write(buf[:])

	for _, e := range entries {
		hasher.Write(e.ID)
		binary.LittleEndian.PutUint32(buf[:], uint32(len(e.Report)))
		hasher.Write(buf[:])
		hasher.Write(e.Report)
	}

	return hasher.Sum(nil)
}

// compress writes data to w as a zstd stream.
func compress(w io.Writer, data []byte) error {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder:\n%w", err)
	}

	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return fmt.Errorf("compress snapshot:\n%w", err)
	}

	return encoder.Close()
}

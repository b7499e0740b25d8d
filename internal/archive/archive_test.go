package archive

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"

	"RadNode/internal/radon"
	"RadNode/internal/storage"
)

// newTestArchive creates an archive over a temporary storage.
func newTestArchive(t *testing.T) (*Archive, func()) {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	return New(db), func() { db.Close() }
}

// testID derives a request id from a label.
func testID(label string) [32]byte {
	return blake3.Sum256([]byte(label))
}

func TestPutGet(t *testing.T) {
	a, cleanup := newTestArchive(t)
	defer cleanup()

	id := testID("price")
	report := radon.NewValueReport(radon.Float(12.34), radon.StageAggregation)

	if err := a.Put(id, report); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := a.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !radon.SameOutcome(got, report) {
		t.Errorf("Get returned %s, want %s", got, report)
	}

	if _, err := a.Get(testID("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutIfAbsent(t *testing.T) {
	a, cleanup := newTestArchive(t)
	defer cleanup()

	id := testID("price")
	first := radon.NewValueReport(radon.Float(2.5), radon.StageAggregation)
	later := radon.NewErrorReport(radon.NewError(radon.ErrRetrieveTimeout), radon.StageAggregation)

	got, err := a.PutIfAbsent(id, first)
	if err != nil {
		t.Fatalf("PutIfAbsent failed: %v", err)
	}

	if !radon.SameOutcome(got, first) {
		t.Errorf("PutIfAbsent returned %s, want %s", got, first)
	}

	got, err = a.PutIfAbsent(id, later)
	if err != nil {
		t.Fatalf("second PutIfAbsent failed: %v", err)
	}

	if !radon.SameOutcome(got, first) {
		t.Errorf("second PutIfAbsent returned %s, want %s", got, first)
	}

	stored, err := a.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !radon.SameOutcome(stored, first) {
		t.Errorf("archive holds %s, want %s", stored, first)
	}
}

func TestList(t *testing.T) {
	a, cleanup := newTestArchive(t)
	defer cleanup()

	for _, label := range []string{"a", "b", "c"} {
		if err := a.Put(testID(label), radon.NewValueReport(radon.String(label), radon.StageTally)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := a.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("List returned %d entries", len(entries))
	}

	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].ID[:], entries[i].ID[:]) >= 0 {
			t.Fatal("entries not in id order")
		}
	}
}

func TestExportImport(t *testing.T) {
	src, cleanupSrc := newTestArchive(t)
	defer cleanupSrc()

	reports := map[[32]byte]radon.Report{
		testID("ok"):  radon.NewValueReport(radon.NewInteger(1234), radon.StageAggregation),
		testID("err"): radon.NewErrorReport(radon.NewInsufficientConsensusError(0.25, 0.5), radon.StageTally),
	}

	for id, r := range reports {
		if err := src.Put(id, r); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := src.Export(&buf)
	if err != nil || n != 2 {
		t.Fatalf("Export = %d, %v", n, err)
	}

	dst, cleanupDst := newTestArchive(t)
	defer cleanupDst()

	stale := testID("stale")
	if err := dst.Put(stale, radon.NewValueReport(radon.Boolean(true), radon.StageTally)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	n, err = dst.Import(bytes.NewReader(buf.Bytes()))
	if err != nil || n != 2 {
		t.Fatalf("Import = %d, %v", n, err)
	}

	for id, want := range reports {
		got, err := dst.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if !radon.SameOutcome(got, want) {
			t.Errorf("imported %s, want %s", got, want)
		}
	}

	if _, err := dst.Get(stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale report survived import: %v", err)
	}
}

func TestImportRejectsTampered(t *testing.T) {
	a, cleanup := newTestArchive(t)
	defer cleanup()

	entries := []snapshotEntry{{ID: make([]byte, 32), Report: []byte{0xa0}}}
	snap := snapshot{Version: snapshotVersion, Entries: entries, Checksum: make([]byte, 32)}

	data, err := radon.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := compress(&buf, data); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Import(&buf); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

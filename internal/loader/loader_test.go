package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// stubIndex reports a fixed chunk count.
type stubIndex struct {
	total int
}

func (s *stubIndex) Query(context.Context, []float32, int, string, vectordb.Filter) ([]vectordb.QueryResult, error) {
	return nil, nil
}
func (s *stubIndex) Get(context.Context, string) (vectordb.Chunk, error) { return vectordb.Chunk{}, nil }
func (s *stubIndex) AddChunks(context.Context, []vectordb.Chunk) error   { return vectordb.ErrReadOnly }
func (s *stubIndex) Stats(context.Context) (vectordb.Stats, error) {
	return vectordb.Stats{TotalChunks: s.total, Backend: "stub", ReadOnly: true}, nil
}

// scriptedOpener fails with errs in order, then succeeds with idx.
type scriptedOpener struct {
	errs  []error
	idx   vectordb.Index
	calls int
}

func (o *scriptedOpener) open(context.Context, string) (vectordb.Index, error) {
	o.calls++
	if o.calls <= len(o.errs) {
		return nil, o.errs[o.calls-1]
	}
	return o.idx, nil
}

func newTestLoader() (*Loader, *[]time.Duration) {
	var slept []time.Duration
	l := New()
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return l, &slept
}

func indexDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, vectordb.ExportFile), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadVectorIndexSuccess(t *testing.T) {
	l, slept := newTestLoader()
	op := &scriptedOpener{idx: &stubIndex{total: 15}}

	idx, err := l.LoadVectorIndex(context.Background(), indexDir(t), op.open)
	if err != nil {
		t.Fatalf("LoadVectorIndex: %v", err)
	}
	if idx == nil {
		t.Fatal("nil index")
	}
	if op.calls != 1 || len(*slept) != 0 {
		t.Errorf("calls = %d, sleeps = %v", op.calls, *slept)
	}
	if l.State().SafeMode() {
		t.Error("safe mode set on success")
	}
}

func TestLoadVectorIndexMissing(t *testing.T) {
	l, _ := newTestLoader()
	op := &scriptedOpener{idx: &stubIndex{total: 1}}
	path := filepath.Join(t.TempDir(), "nope")

	_, err := l.LoadVectorIndex(context.Background(), path, op.open)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the path", err)
	}
	if op.calls != 0 {
		t.Errorf("opener called %d times for a missing location", op.calls)
	}
}

func TestLoadVectorIndexEmptyDirectory(t *testing.T) {
	l, slept := newTestLoader()
	op := &scriptedOpener{idx: &stubIndex{total: 1}}

	_, err := l.LoadVectorIndex(context.Background(), t.TempDir(), op.open)
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("error = %v, want ErrEmptyIndex", err)
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("error %q does not mention empty", err)
	}
	if op.calls != 0 || len(*slept) != 0 {
		t.Errorf("retried an empty directory: calls=%d sleeps=%v", op.calls, *slept)
	}
}

func TestLoadVectorIndexEmptyFile(t *testing.T) {
	l, _ := newTestLoader()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	op := &scriptedOpener{idx: &stubIndex{total: 1}}
	if _, err := l.LoadVectorIndex(context.Background(), path, op.open); !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("error = %v, want ErrEmptyIndex", err)
	}
}

func TestLoadVectorIndexZeroChunks(t *testing.T) {
	l, slept := newTestLoader()
	op := &scriptedOpener{idx: &stubIndex{total: 0}}

	_, err := l.LoadVectorIndex(context.Background(), indexDir(t), op.open)
	var dle *DataLoadError
	if !errors.As(err, &dle) || !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("error = %v, want DataLoadError wrapping ErrEmptyIndex", err)
	}
	if dle.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", dle.Attempts)
	}
	if op.calls != 1 || len(*slept) != 0 {
		t.Errorf("zero-chunk index retried: calls=%d sleeps=%v", op.calls, *slept)
	}
}

func TestLoadVectorIndexRetriesThenSucceeds(t *testing.T) {
	l, slept := newTestLoader()
	op := &scriptedOpener{
		errs: []error{errors.New("resource busy"), errors.New("resource busy")},
		idx:  &stubIndex{total: 3},
	}

	if _, err := l.LoadVectorIndex(context.Background(), indexDir(t), op.open); err != nil {
		t.Fatalf("LoadVectorIndex: %v", err)
	}
	if op.calls != 3 {
		t.Errorf("calls = %d, want 3", op.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", *slept, want)
	}
}

func TestLoadVectorIndexExhaustsRetries(t *testing.T) {
	l, slept := newTestLoader()
	cause := errors.New("disk I/O error")
	op := &scriptedOpener{errs: []error{cause, cause, cause}}

	_, err := l.LoadVectorIndex(context.Background(), indexDir(t), op.open)
	var dle *DataLoadError
	if !errors.As(err, &dle) {
		t.Fatalf("error = %v, want DataLoadError", err)
	}
	if dle.Attempts != MaxAttempts || !errors.Is(err, cause) {
		t.Errorf("DataLoadError = %+v", dle)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") || !strings.Contains(err.Error(), "disk I/O error") {
		t.Errorf("message = %q", err.Error())
	}
	if len(*slept) != 2 {
		t.Errorf("sleeps = %v, want two (none after the final attempt)", *slept)
	}
	if l.State().SafeMode() {
		t.Error("safe mode set for a transient failure")
	}
}

func TestLoadVectorIndexCorruption(t *testing.T) {
	for _, msg := range []string{"database disk image is CORRUPTED", "integrity check failed"} {
		t.Run(msg, func(t *testing.T) {
			l, slept := newTestLoader()
			op := &scriptedOpener{errs: []error{errors.New(msg)}, idx: &stubIndex{total: 1}}

			_, err := l.LoadVectorIndex(context.Background(), indexDir(t), op.open)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("error = %v, want ErrCorrupt", err)
			}
			if op.calls != 1 || len(*slept) != 0 {
				t.Errorf("corruption retried: calls=%d sleeps=%v", op.calls, *slept)
			}
			if !l.State().SafeMode() {
				t.Error("safe mode not set")
			}
		})
	}
}

func TestSafeModeLatches(t *testing.T) {
	l, _ := newTestLoader()
	dir := indexDir(t)
	bad := &scriptedOpener{errs: []error{errors.New("corrupt header")}}
	l.LoadVectorIndex(context.Background(), dir, bad.open)

	good := &scriptedOpener{idx: &stubIndex{total: 2}}
	if _, err := l.LoadVectorIndex(context.Background(), dir, good.open); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !l.State().SafeMode() {
		t.Error("safe mode cleared by a later successful load")
	}
}

func TestLoadVectorIndexContextCancelled(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := &scriptedOpener{errs: []error{errors.New("busy"), errors.New("busy"), errors.New("busy")}}

	_, err := l.LoadVectorIndex(ctx, indexDir(t), op.open)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if op.calls != 1 {
		t.Errorf("calls = %d, want 1", op.calls)
	}
}

func TestLoadMetadataStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	d.Close()

	l, _ := newTestLoader()
	store, err := l.LoadMetadataStore(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadMetadataStore: %v", err)
	}
	defer store.Close()
	if !store.ReadOnly() {
		t.Error("store not opened read-only")
	}
}

func TestLoadMetadataStoreErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.db")
	os.WriteFile(empty, nil, 0o644)

	l, _ := newTestLoader()
	if _, err := l.LoadMetadataStore(context.Background(), filepath.Join(dir, "missing.db")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: error = %v", err)
	}
	if _, err := l.LoadMetadataStore(context.Background(), empty); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("empty: error = %v", err)
	}
}

func TestLoadMetadataStoreNoCorruptionFastPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	os.WriteFile(path, []byte("x"), 0o644)

	l, slept := newTestLoader()
	calls := 0
	l.openStore = func(string) (*db.DB, error) {
		calls++
		return nil, errors.New("integrity check failed")
	}
	_, err := l.LoadMetadataStore(context.Background(), path)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != MaxAttempts || len(*slept) != 2 {
		t.Errorf("calls = %d, sleeps = %v", calls, *slept)
	}
	if l.State().SafeMode() {
		t.Error("metadata store failure set safe mode")
	}
}

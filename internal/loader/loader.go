// Package loader acquires the read-only vector index and metadata store at
// startup. Transient failures are retried with exponential backoff; missing
// or empty data and index corruption fail immediately.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

const (
	// MaxAttempts is the number of tries for each load.
	MaxAttempts = 3
	// InitialBackoff is the wait after the first failed attempt. It doubles
	// after each subsequent failure.
	InitialBackoff = time.Second
)

var (
	// ErrNotFound means the expected index or store location does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyIndex means the location exists but holds no data.
	ErrEmptyIndex = errors.New("empty")
	// ErrCorrupt means the index reported a corruption or integrity failure.
	ErrCorrupt = errors.New("corrupt")
)

// DataLoadError is a fatal startup failure. Msg is the operator-facing
// explanation; Err carries the cause for errors.Is.
type DataLoadError struct {
	Op       string
	Path     string
	Attempts int
	Msg      string
	Err      error
}

func (e *DataLoadError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// State is process-wide loader state. Safe mode latches on once the index
// is found corrupted and is never cleared.
type State struct {
	safeMode atomic.Bool
}

// SafeMode reports whether the index was found corrupted.
func (s *State) SafeMode() bool { return s.safeMode.Load() }

func (s *State) enterSafeMode() { s.safeMode.Store(true) }

// IndexOpener opens the index stored at path.
type IndexOpener func(ctx context.Context, path string) (vectordb.Index, error)

// Loader loads startup data. The zero value is not usable; call New.
type Loader struct {
	state     *State
	sleep     func(context.Context, time.Duration) error
	openStore func(path string) (*db.DB, error)
}

// New returns a Loader with fresh state.
func New() *Loader {
	return &Loader{
		state:     &State{},
		sleep:     sleepContext,
		openStore: db.OpenReadOnly,
	}
}

// State returns the loader's process-wide state.
func (l *Loader) State() *State { return l.state }

// target names what is being loaded in operator messages.
type target struct {
	op       string
	name     string
	notFound string
	empty    string
}

var (
	vectorTarget = target{
		op:       "load vector index",
		name:     "vector store",
		notFound: "Vector store not found at %s. Please ensure the export package has been transferred and extracted.",
		empty:    "Vector store directory is empty at %s. Please ensure the export package was extracted correctly.",
	}
	storeTarget = target{
		op:       "load metadata store",
		name:     "database",
		notFound: "Database not found at %s. Please ensure the export package has been transferred and extracted.",
		empty:    "Database file is empty at %s. Please ensure the export package was created correctly.",
	}
)

// LoadVectorIndex opens the index at path through open and checks that it
// holds chunks. A directory or file that is missing or empty fails without
// retry, as does an index reporting zero chunks. Errors mentioning
// corruption stop the retries and put the loader into safe mode.
func (l *Loader) LoadVectorIndex(ctx context.Context, path string, open IndexOpener) (vectordb.Index, error) {
	log.Printf("loader: loading vector store from %s", path)
	if err := checkLocation(vectorTarget, path); err != nil {
		return nil, err
	}

	var idx vectordb.Index
	err := l.retry(ctx, vectorTarget, path, true, func() error {
		i, err := open(ctx, path)
		if err != nil {
			return err
		}
		stats, err := i.Stats(ctx)
		if err != nil {
			return fmt.Errorf("reading index stats: %w", err)
		}
		if stats.TotalChunks == 0 {
			return &DataLoadError{
				Op:   vectorTarget.op,
				Path: path,
				Msg:  "Vector store is empty. Please ensure documents were processed before export.",
				Err:  ErrEmptyIndex,
			}
		}
		log.Printf("loader: vector store loaded with %d chunks (%s)", stats.TotalChunks, stats.Backend)
		idx = i
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadMetadataStore opens the SQLite store at path read-only. It retries
// like LoadVectorIndex but has no chunk count check and no corruption fast
// path.
func (l *Loader) LoadMetadataStore(ctx context.Context, path string) (*db.DB, error) {
	log.Printf("loader: loading database from %s", path)
	if err := checkLocation(storeTarget, path); err != nil {
		return nil, err
	}

	var store *db.DB
	err := l.retry(ctx, storeTarget, path, false, func() error {
		d, err := l.openStore(path)
		if err != nil {
			return err
		}
		log.Printf("loader: database loaded")
		store = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// retry runs attempt up to MaxAttempts times. A *DataLoadError returned by
// attempt is final.
func (l *Loader) retry(ctx context.Context, t target, path string, detectCorruption bool, attempt func() error) error {
	var lastErr error
	delay := InitialBackoff

	for n := 1; n <= MaxAttempts; n++ {
		if n > 1 {
			log.Printf("loader: retry attempt %d/%d for %s", n, MaxAttempts, t.name)
		}

		err := attempt()
		if err == nil {
			return nil
		}

		var dle *DataLoadError
		if errors.As(err, &dle) {
			dle.Attempts = n
			log.Printf("loader: %s", dle.Msg)
			return dle
		}

		lastErr = err
		log.Printf("loader: %s loading attempt %d failed: %v", t.name, n, err)

		if detectCorruption && isCorruption(err) {
			l.state.enterSafeMode()
			log.Printf("loader: %s appears to be corrupted, entering safe mode", t.name)
			return &DataLoadError{
				Op:       t.op,
				Path:     path,
				Attempts: n,
				Msg:      fmt.Sprintf("Vector store is corrupted: %v. System entering safe mode. Please re-export and transfer the data.", err),
				Err:      fmt.Errorf("%w: %w", ErrCorrupt, err),
			}
		}

		if n < MaxAttempts {
			log.Printf("loader: waiting %s before retry", delay)
			if err := l.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
			delay *= 2
		}
	}

	e := &DataLoadError{
		Op:       t.op,
		Path:     path,
		Attempts: MaxAttempts,
		Msg:      fmt.Sprintf("Failed to load %s after %d attempts: %v", t.name, MaxAttempts, lastErr),
		Err:      lastErr,
	}
	log.Printf("loader: %s", e.Msg)
	return e
}

// checkLocation fails when path is missing, is an empty directory, or is
// an empty file.
func checkLocation(t target, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		msg := fmt.Sprintf(t.notFound, path)
		log.Printf("loader: %s", msg)
		cause := ErrNotFound
		if !os.IsNotExist(err) {
			cause = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return &DataLoadError{Op: t.op, Path: path, Msg: msg, Err: cause}
	}

	empty := info.Size() == 0
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return &DataLoadError{Op: t.op, Path: path, Err: fmt.Errorf("reading %s: %w", path, err)}
		}
		empty = len(entries) == 0
	}
	if empty {
		msg := fmt.Sprintf(t.empty, path)
		log.Printf("loader: %s", msg)
		return &DataLoadError{Op: t.op, Path: path, Msg: msg, Err: ErrEmptyIndex}
	}
	return nil
}

func isCorruption(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "corrupt") || strings.Contains(s, "integrity")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package retrieval serves ranked chunks for a question using either
// vector similarity or keyword overlap.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

var (
	// ErrUnavailable means the backend cannot serve queries at all, for
	// example because the index is in safe mode or was never loaded.
	ErrUnavailable = errors.New("retrieval backend unavailable")
	// ErrEmbedding wraps failures to embed the question.
	ErrEmbedding = errors.New("embedding the question failed")
	// ErrTimeout means the index did not answer within the bound.
	ErrTimeout = errors.New("retrieval timed out")
)

// Query is one retrieval request.
type Query struct {
	// Text is what gets embedded or tokenized.
	Text   string
	User   string
	TopK   int
	Filter vectordb.Filter
}

// Backend is a retrieval strategy. It is chosen once at startup.
type Backend interface {
	Retrieve(ctx context.Context, q Query) ([]vectordb.QueryResult, error)
	// Name identifies the strategy in logs and health output.
	Name() string
}

// bounded runs fn and gives up after d. The index call is not required to
// honor cancellation, so a late fn keeps running in the background and its
// result is dropped.
func bounded(ctx context.Context, d time.Duration, fn func(context.Context) ([]vectordb.QueryResult, error)) ([]vectordb.QueryResult, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		res []vectordb.QueryResult
		err error
	}
	ch := make(chan result, 1)
	go func() {
		res, err := fn(ctx)
		ch <- result{res, err}
	}()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return nil, ctx.Err()
	}
}

// Unavailable is a Backend that always fails with ErrUnavailable. It
// stands in when startup loading failed and the process serves degraded
// answers instead of exiting.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Retrieve(context.Context, Query) ([]vectordb.QueryResult, error) {
	if u.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

func (u Unavailable) Name() string { return "unavailable" }

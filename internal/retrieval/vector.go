package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/embeddings"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// Vector embeds the question and searches the index by cosine similarity.
type Vector struct {
	embedder embeddings.Embedder
	index    vectordb.Index
	timeout  time.Duration
}

// NewVector returns the vector similarity strategy. timeout bounds the
// index query; embedding the question is not counted against it.
func NewVector(embedder embeddings.Embedder, index vectordb.Index, timeout time.Duration) *Vector {
	return &Vector{embedder: embedder, index: index, timeout: timeout}
}

func (v *Vector) Name() string { return "vector" }

func (v *Vector) Retrieve(ctx context.Context, q Query) ([]vectordb.QueryResult, error) {
	vec, err := embeddings.EmbedText(ctx, v.embedder, q.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return bounded(ctx, v.timeout, func(ctx context.Context) ([]vectordb.QueryResult, error) {
		return v.index.Query(ctx, vec, q.TopK, q.User, q.Filter)
	})
}

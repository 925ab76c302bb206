package vectordb

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by writes against a read-only index.
var ErrReadOnly = errors.New("index is read-only")

// ErrChunkNotFound is returned by Get for an unknown chunk ID.
var ErrChunkNotFound = errors.New("chunk not found")

// Index is the vector index handle shared by the query path and ingestion.
type Index interface {
	// Query returns up to topK chunks owned by user and matching filter,
	// ranked by cosine similarity to vector. The user scope is applied
	// before any other filter.
	Query(ctx context.Context, vector []float32, topK int, user string, filter Filter) ([]QueryResult, error)

	// Get returns a single chunk by ID.
	Get(ctx context.Context, id string) (Chunk, error)

	// AddChunks adds or replaces chunks. Chunks without an embedding are
	// embedded by the index when it has an embedder.
	AddChunks(ctx context.Context, chunks []Chunk) error

	// Stats summarizes the index.
	Stats(ctx context.Context) (Stats, error)
}

// ChunkSource lists chunks for scoring without a query vector. The
// keyword retrieval strategy reads from it.
type ChunkSource interface {
	// Chunks returns every chunk owned by user.
	Chunks(ctx context.Context, user string) ([]Chunk, error)
}

// Stats describes an index.
type Stats struct {
	TotalChunks int    `json:"total_chunks"`
	Backend     string `json:"backend"`
	Dimension   int    `json:"dimension,omitempty"`
	ReadOnly    bool   `json:"read_only"`
}

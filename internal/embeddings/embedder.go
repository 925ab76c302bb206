package embeddings

import (
	"context"
	"fmt"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	// Zero means the dimension is not known until the first call to Embed.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// EmbedText embeds a single text.
func EmbedText(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%s returned an empty embedding", e.Name())
	}
	return vecs[0], nil
}

// ProbeDimension embeds a short sample and reports the vector length the
// provider actually produces.
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	vec, err := EmbedText(ctx, e, "test")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/receipt-rag/internal/embeddings"
)

const (
	collectionName = "receipts"
	// ExportFile is the file name of a persisted index inside its directory.
	ExportFile = "chromem.gob.gz"
	// metaJSONKey holds the typed, ordered metadata next to the flat
	// string copies chromem filters on.
	metaJSONKey = "_json"
	// KeyDocumentID links a chunk to its source document.
	KeyDocumentID = "document_id"
)

// Filtered queries over-fetch so conditions applied after ranking do not
// starve the result set.
const (
	overfetchFactor = 5
	minOverfetch    = 50
)

// ChromemStore implements Index using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	userKey    string
	dimension  int
	readOnly   bool
}

// NewChromemStore creates a new in-memory ChromemStore. embedder may be nil
// when every chunk arrives with its own vector.
func NewChromemStore(embedder embeddings.Embedder, userKey string) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embedFuncFor(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s := &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
		userKey:    userKey,
	}
	if embedder != nil {
		s.dimension = embedder.Dimensions()
	}
	return s, nil
}

// OpenChromemStore loads a persisted index from dir in read-only mode.
func OpenChromemStore(ctx context.Context, dir string, embedder embeddings.Embedder, userKey string) (*ChromemStore, error) {
	s, err := NewChromemStore(embedder, userKey)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, dir); err != nil {
		return nil, err
	}
	s.readOnly = true
	return s, nil
}

func embedFuncFor(e embeddings.Embedder) chromem.EmbeddingFunc {
	if e == nil {
		return func(context.Context, string) ([]float32, error) {
			return nil, fmt.Errorf("no embedding provider configured")
		}
	}
	return embeddings.ToChromemFunc(e)
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, topK int, user string, filter Filter) ([]QueryResult, error) {
	if topK <= 0 {
		topK = 5
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	n := topK
	if !filter.IsEmpty() {
		n = max(topK*overfetchFactor, minOverfetch)
	}
	// chromem-go requires nResults <= collection size.
	n = min(n, count)

	var where map[string]string
	if user != "" {
		where = map[string]string{s.userKey: user}
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]QueryResult, 0, min(len(results), topK))
	for _, r := range results {
		md := decodeMetadata(r.Metadata)
		if !filter.Matches(md) {
			continue
		}
		out = append(out, QueryResult{
			ChunkID:  r.ID,
			Content:  r.Content,
			Metadata: md,
			Score:    clampScore(float64(r.Similarity)),
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (s *ChromemStore) Get(ctx context.Context, id string) (Chunk, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %s: %v", ErrChunkNotFound, id, err)
	}
	return Chunk{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  decodeMetadata(doc.Metadata),
	}, nil
}

func (s *ChromemStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		md, err := encodeMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  md,
			Embedding: c.Embedding,
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 4); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	if s.dimension == 0 && len(chunks[0].Embedding) > 0 {
		s.dimension = len(chunks[0].Embedding)
	}
	return nil
}

// DeleteDocument removes every chunk of a source document.
func (s *ChromemStore) DeleteDocument(ctx context.Context, documentID string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.collection.Delete(ctx, map[string]string{KeyDocumentID: documentID}, nil)
}

func (s *ChromemStore) Stats(_ context.Context) (Stats, error) {
	return Stats{
		TotalChunks: s.collection.Count(),
		Backend:     "chromem",
		Dimension:   s.dimension,
		ReadOnly:    s.readOnly,
	}, nil
}

// Count returns the total number of chunks in the store.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// AllChunks returns every chunk with its vector. chromem-go has no listing
// API, so this ranks the whole collection against a unit vector of the
// index dimension.
func (s *ChromemStore) AllChunks(ctx context.Context, dimension int) ([]Chunk, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if dimension <= 0 {
		dimension = s.dimension
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension unknown; set embedding_dimension")
	}

	probe := make([]float32, dimension)
	probe[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}

	chunks := make([]Chunk, len(results))
	for i, r := range results {
		chunks[i] = Chunk{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata:  decodeMetadata(r.Metadata),
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks, nil
}

// Persist saves the store's data to dir.
func (s *ChromemStore) Persist(_ context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := s.db.ExportToFile(filepath.Join(dir, ExportFile), true, ""); err != nil {
		return fmt.Errorf("export to file: %w", err)
	}
	return nil
}

// Load restores the store's data from dir.
func (s *ChromemStore) Load(_ context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, ExportFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// encodeMetadata flattens metadata for chromem's exact-match where clause
// and keeps the typed form alongside.
func encodeMetadata(md Metadata) (map[string]string, error) {
	out := make(map[string]string, md.Len()+1)
	for _, e := range md.Entries() {
		if strings.HasPrefix(e.Key, "_") {
			continue
		}
		out[e.Key] = e.Value.String()
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	out[metaJSONKey] = string(raw)
	return out, nil
}

func decodeMetadata(m map[string]string) Metadata {
	if raw, ok := m[metaJSONKey]; ok {
		var md Metadata
		if err := json.Unmarshal([]byte(raw), &md); err == nil {
			return md
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !strings.HasPrefix(k, "_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var md Metadata
	for _, k := range keys {
		md.SetString(k, m[k])
	}
	return md
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

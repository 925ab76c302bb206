package vectordb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/ziadkadry99/receipt-rag/internal/db"
)

// SnapshotFile is the file name of an exported snapshot.
const SnapshotFile = "snapshot.db"

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    embedding BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id);
`

// WriteSnapshot exports chunks to a fresh SQLite file at path. progress,
// if non-nil, is called after each written chunk.
func WriteSnapshot(ctx context.Context, path, userKey string, chunks []Chunk, progress func()) error {
	d, err := db.Create(path, snapshotSchema)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer d.Close()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, user_id, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("chunk %s metadata: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Metadata.GetString(userKey), c.Content, string(md), encodeVector(c.Embedding)); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing chunk %s: %w", c.ID, err)
		}
		if progress != nil {
			progress()
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Snapshot is a read-only chunk set loaded fully into memory from an
// exported SQLite file. It serves lite hosts that cannot embed.
type Snapshot struct {
	chunks    []Chunk
	byID      map[string]int
	userKey   string
	dimension int
}

// OpenSnapshot reads every chunk from the snapshot at path.
func OpenSnapshot(ctx context.Context, path, userKey string) (*Snapshot, error) {
	d, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	rows, err := d.QueryContext(ctx, `SELECT id, user_id, content, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	defer rows.Close()

	s := &Snapshot{byID: make(map[string]int), userKey: userKey}
	for rows.Next() {
		var (
			c      Chunk
			user   string
			mdJSON string
			blob   []byte
		)
		if err := rows.Scan(&c.ID, &user, &c.Content, &mdJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(mdJSON), &c.Metadata); err != nil {
			log.Printf("vectordb: snapshot chunk %s has unreadable metadata: %v", c.ID, err)
		}
		if !c.Metadata.Has(userKey) && user != "" {
			c.Metadata.SetString(userKey, user)
		}
		c.Embedding = decodeVector(blob)
		if s.dimension == 0 {
			s.dimension = len(c.Embedding)
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return s, nil
}

// Chunks returns the chunks owned by user, or all chunks when user is "".
func (s *Snapshot) Chunks(_ context.Context, user string) ([]Chunk, error) {
	if user == "" {
		return s.chunks, nil
	}
	var out []Chunk
	for _, c := range s.chunks {
		if c.Metadata.GetString(s.userKey) == user {
			out = append(out, c)
		}
	}
	return out, nil
}

// Query ranks the snapshot's stored vectors by cosine similarity.
func (s *Snapshot) Query(ctx context.Context, vector []float32, topK int, user string, filter Filter) ([]QueryResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, snapshot has %d", len(vector), s.dimension)
	}
	candidates, _ := s.Chunks(ctx, user)

	var out []QueryResult
	for _, c := range candidates {
		if len(c.Embedding) == 0 || !filter.Matches(c.Metadata) {
			continue
		}
		out = append(out, QueryResult{
			ChunkID:  c.ID,
			Content:  c.Content,
			Metadata: c.Metadata,
			Score:    clampScore(cosine(vector, c.Embedding)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *Snapshot) Get(_ context.Context, id string) (Chunk, error) {
	i, ok := s.byID[id]
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	return s.chunks[i], nil
}

func (s *Snapshot) AddChunks(context.Context, []Chunk) error {
	return ErrReadOnly
}

func (s *Snapshot) Stats(context.Context) (Stats, error) {
	return Stats{
		TotalChunks: len(s.chunks),
		Backend:     "snapshot",
		Dimension:   s.dimension,
		ReadOnly:    true,
	}, nil
}

// encodeVector stores a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Package ingest turns text, markdown and PDF documents into chunks in the
// vector index. It is the write path of the shared index interface.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ziadkadry99/receipt-rag/internal/config"
	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/embeddings"
	"github.com/ziadkadry99/receipt-rag/internal/progress"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
	"github.com/ziadkadry99/receipt-rag/internal/walker"
)

const embedBatchSize = 32

// Store is the writable index ingestion adds to.
type Store interface {
	AddChunks(ctx context.Context, chunks []vectordb.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
	Persist(ctx context.Context, dir string) error
}

// Options controls ingestion.
type Options struct {
	Include        []string
	Exclude        []string
	ChunkSentences int
	ChunkOverlap   int
	UserKey        string
	// AmountField is written to the first chunk of a document only, so a
	// document split into several chunks is counted once in a total.
	AmountField string
	// VectorDir is where the index is persisted after a run. Empty skips
	// persisting.
	VectorDir string
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Include:        cfg.Ingest.Include,
		Exclude:        cfg.Ingest.Exclude,
		ChunkSentences: cfg.Ingest.ChunkSentences,
		ChunkOverlap:   cfg.Ingest.ChunkOverlap,
		UserKey:        cfg.Query.UserKey,
		AmountField:    cfg.Query.AmountField,
		VectorDir:      cfg.VectorDir,
	}
}

// Result summarizes a run.
type Result struct {
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

// Ingester embeds documents and records them.
type Ingester struct {
	embedder embeddings.Embedder
	store    Store
	db       *db.DB
	opts     Options
	reporter progress.Reporter
}

// New creates an Ingester. database may be nil, in which case every file
// is treated as new.
func New(embedder embeddings.Embedder, store Store, database *db.DB, opts Options) *Ingester {
	if opts.UserKey == "" {
		opts.UserKey = "user_id"
	}
	if opts.AmountField == "" {
		opts.AmountField = "total_amount"
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		db:       database,
		opts:     opts,
		reporter: progress.Nop{},
	}
}

// SetReporter sets the progress reporter.
func (in *Ingester) SetReporter(r progress.Reporter) {
	in.reporter = r
}

// Run ingests every document under root for user. A failing document is
// logged and recorded in Result.Failed; the run continues.
func (in *Ingester) Run(ctx context.Context, root, user string) (Result, error) {
	if in.embedder == nil {
		return Result{}, errors.New("ingestion needs an embedding provider")
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: root,
		Include: in.opts.Include,
		Exclude: in.opts.Exclude,
	})
	if err != nil {
		return Result{}, err
	}

	var res Result
	in.reporter.Start(len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			in.reporter.Finish()
			return res, err
		}
		n, changed, err := in.ingestFile(ctx, f, user)
		switch {
		case err != nil:
			log.Printf("ingest: %s: %v", f.RelPath, err)
			res.Failed = append(res.Failed, f.RelPath)
		case !changed:
			res.Unchanged++
		case n == 0:
			res.Skipped++
		default:
			res.Documents++
			res.Chunks += n
		}
		in.reporter.Update(i+1, f.RelPath)
	}
	in.reporter.Finish()

	if in.opts.VectorDir != "" && res.Documents > 0 {
		if err := in.store.Persist(ctx, in.opts.VectorDir); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ingestFile returns the number of chunks written and whether the document
// differed from its recorded version.
func (in *Ingester) ingestFile(ctx context.Context, f walker.FileInfo, user string) (int, bool, error) {
	sidecar, raw, err := LoadSidecar(f.Path)
	if err != nil {
		return 0, false, err
	}
	hash := f.ContentHash
	if raw != nil {
		sum := sha256.Sum256(append([]byte(hash), raw...))
		hash = hex.EncodeToString(sum[:])
	}

	var existing *db.Document
	if in.db != nil {
		existing, err = in.db.GetDocumentByPath(ctx, user, f.Path)
		if err != nil {
			return 0, false, err
		}
		if existing != nil && existing.ContentHash == hash {
			return 0, false, nil
		}
	}

	content, err := ExtractText(f.Path, f.FileType)
	if err != nil {
		return 0, false, err
	}
	texts := ChunkSentences(SplitSentences(content), in.opts.ChunkSentences, in.opts.ChunkOverlap)
	if len(texts) == 0 {
		log.Printf("ingest: %s has no extractable text", f.RelPath)
		return 0, true, nil
	}

	docID := uuid.New().String()
	if existing != nil {
		docID = existing.ID
	}

	vectors, err := in.embed(ctx, texts)
	if err != nil {
		return 0, false, err
	}

	chunks := make([]vectordb.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = vectordb.Chunk{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", docID, i))).String(),
			Content:   t,
			Embedding: vectors[i],
			Metadata:  in.chunkMetadata(f, user, docID, sidecar, i == 0),
		}
	}

	if existing != nil {
		if err := in.store.DeleteDocument(ctx, existing.ID); err != nil {
			return 0, false, fmt.Errorf("removing previous chunks: %w", err)
		}
	}
	if err := in.store.AddChunks(ctx, chunks); err != nil {
		return 0, false, err
	}

	if in.db != nil {
		mdJSON, err := json.Marshal(sidecar)
		if err != nil {
			return 0, false, err
		}
		err = in.db.UpsertDocument(ctx, db.Document{
			ID:          docID,
			UserID:      user,
			Path:        f.Path,
			Filename:    filepath.Base(f.Path),
			FileType:    string(f.FileType),
			ContentHash: hash,
			ChunkCount:  len(chunks),
			Metadata:    string(mdJSON),
		})
		if err != nil {
			return 0, false, err
		}
	}
	return len(chunks), true, nil
}

// chunkMetadata orders keys as filename, sidecar keys, then bookkeeping.
func (in *Ingester) chunkMetadata(f walker.FileInfo, user, docID string, sidecar vectordb.Metadata, first bool) vectordb.Metadata {
	md := vectordb.NewMetadata(vectordb.Entry{Key: vectordb.KeyFilename, Value: vectordb.String(filepath.Base(f.Path))})
	for _, e := range sidecar.Entries() {
		if e.Key == in.opts.UserKey || e.Key == vectordb.KeyDocumentID {
			continue
		}
		if e.Key == in.opts.AmountField && !first {
			continue
		}
		md.Set(e.Key, e.Value)
	}
	md.SetString(vectordb.KeyFileType, string(f.FileType))
	md.SetString(vectordb.KeyLocation, f.RelPath)
	md.SetString(in.opts.UserKey, user)
	md.SetString(vectordb.KeyDocumentID, docID)
	return md
}

func (in *Ingester) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := in.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding chunks: %w", err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding chunks: got %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

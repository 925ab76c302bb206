package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Document is a source file that has been ingested into the index.
type Document struct {
	ID          string
	UserID      string
	Path        string
	Filename    string
	FileType    string
	ContentHash string
	ChunkCount  int
	// Metadata is the document-level metadata as a JSON object.
	Metadata    string
	ProcessedAt time.Time
}

// UpsertDocument records a processed document, replacing any earlier
// record for the same path and user.
func (d *DB) UpsertDocument(ctx context.Context, doc Document) error {
	if doc.Metadata == "" {
		doc.Metadata = "{}"
	}
	_, err := d.ExecContext(ctx, `
INSERT INTO documents (id, user_id, path, filename, file_type, content_hash, chunk_count, metadata, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT(path, user_id) DO UPDATE SET
    filename = excluded.filename,
    file_type = excluded.file_type,
    content_hash = excluded.content_hash,
    chunk_count = excluded.chunk_count,
    metadata = excluded.metadata,
    processed_at = excluded.processed_at`,
		doc.ID, doc.UserID, doc.Path, doc.Filename, doc.FileType, doc.ContentHash, doc.ChunkCount, doc.Metadata)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.Path, err)
	}
	return nil
}

// GetDocumentByPath returns the document for path and user, or nil if it
// has not been ingested.
func (d *DB) GetDocumentByPath(ctx context.Context, userID, path string) (*Document, error) {
	row := d.QueryRowContext(ctx, `
SELECT id, user_id, path, filename, file_type, content_hash, chunk_count, metadata, processed_at
FROM documents WHERE user_id = ? AND path = ?`, userID, path)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", path, err)
	}
	return doc, nil
}

// ListDocuments returns all documents for a user, most recent first.
func (d *DB) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	rows, err := d.QueryContext(ctx, `
SELECT id, user_id, path, filename, file_type, content_hash, chunk_count, metadata, processed_at
FROM documents WHERE user_id = ? ORDER BY processed_at DESC, path`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var doc Document
	if err := s.Scan(&doc.ID, &doc.UserID, &doc.Path, &doc.Filename, &doc.FileType,
		&doc.ContentHash, &doc.ChunkCount, &doc.Metadata, &doc.ProcessedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

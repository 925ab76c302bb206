package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"documents", "conversations", "messages"} {
		if _, err := d.TableCount(table); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	// Running migrate again should not fail.
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestMessageRoleConstraint(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO conversations (id, user_id) VALUES ('c1', 'u1')`); err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO messages (conversation_id, role, content) VALUES ('c1', 'system', 'x')`); err == nil {
		t.Error("expected system role to be rejected")
	}
	if _, err := d.Exec(`INSERT INTO messages (conversation_id, role, content) VALUES ('c1', 'user', 'x')`); err != nil {
		t.Errorf("user role rejected: %v", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	if _, err := OpenReadOnly(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rw, err := Create(path, `CREATE TABLE items (id TEXT PRIMARY KEY);`)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := rw.Exec(`INSERT INTO items (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rw.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	if !ro.ReadOnly() {
		t.Error("expected read-only handle")
	}
	if n, err := ro.TableCount("items"); err != nil || n != 1 {
		t.Errorf("TableCount = %d, %v; want 1", n, err)
	}
	if _, err := ro.Exec(`INSERT INTO items (id) VALUES ('b')`); err == nil {
		t.Error("expected write through read-only handle to fail")
	}
}

func TestCreateReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	for i := 0; i < 2; i++ {
		d, err := Create(path, `CREATE TABLE items (id TEXT PRIMARY KEY);`)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if n, _ := d.TableCount("items"); n != 0 {
			t.Errorf("Create #%d: expected empty table, got %d rows", i, n)
		}
		if _, err := d.Exec(`INSERT INTO items (id) VALUES ('a')`); err != nil {
			t.Fatalf("insert: %v", err)
		}
		d.Close()
	}
}

func TestDocuments(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()
	ctx := context.Background()

	doc := Document{
		ID:         "doc-1",
		UserID:     "alice",
		Path:       "/receipts/costco.txt",
		Filename:   "costco.txt",
		FileType:   "txt",
		ChunkCount: 2,
		Metadata:   `{"merchant":"Costco"}`,
	}
	if err := d.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	doc.ChunkCount = 3
	doc.ContentHash = "abc"
	if err := d.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("second UpsertDocument: %v", err)
	}

	got, err := d.GetDocumentByPath(ctx, "alice", "/receipts/costco.txt")
	if err != nil || got == nil {
		t.Fatalf("GetDocumentByPath: %v, %v", got, err)
	}
	if got.ChunkCount != 3 || got.ContentHash != "abc" {
		t.Errorf("upsert did not update: %+v", got)
	}

	missing, err := d.GetDocumentByPath(ctx, "bob", "/receipts/costco.txt")
	if err != nil || missing != nil {
		t.Errorf("expected no document for other user, got %v, %v", missing, err)
	}

	docs, err := d.ListDocuments(ctx, "alice")
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments = %v, %v", docs, err)
	}
}

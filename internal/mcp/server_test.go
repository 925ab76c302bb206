package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/generation"
	"github.com/ziadkadry99/receipt-rag/internal/query"
	"github.com/ziadkadry99/receipt-rag/internal/retrieval"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// chunkList implements vectordb.ChunkSource for testing.
type chunkList []vectordb.Chunk

func (l chunkList) Chunks(_ context.Context, user string) ([]vectordb.Chunk, error) {
	var out []vectordb.Chunk
	for _, c := range l {
		if user == "" || c.Metadata.GetString("user_id") == user {
			out = append(out, c)
		}
	}
	return out, nil
}

func testChunks() chunkList {
	return chunkList{
		{
			ID:      "costco-1",
			Content: "COSTCO WHOLESALE 2026-02-11 TOTAL 222.18",
			Metadata: vectordb.NewMetadata(
				vectordb.Entry{Key: vectordb.KeyFilename, Value: vectordb.String("IMG_4025.jpeg")},
				vectordb.Entry{Key: "user_id", Value: vectordb.String("default")},
				vectordb.Entry{Key: "merchant", Value: vectordb.String("Costco")},
				vectordb.Entry{Key: "date", Value: vectordb.String("2026-02-11")},
				vectordb.Entry{Key: "total_amount", Value: vectordb.Number(222.18)},
			),
		},
		{
			ID:      "passport",
			Content: "Passport scan, expires 2031",
			Metadata: vectordb.NewMetadata(
				vectordb.Entry{Key: vectordb.KeyFilename, Value: vectordb.String("passport.pdf")},
				vectordb.Entry{Key: "user_id", Value: vectordb.String("default")},
			),
		},
	}
}

func newTestServer(status func(context.Context) app.Status) *Server {
	backend := retrieval.NewKeyword(testChunks(), time.Second)
	engine := query.New(backend, generation.New(nil, generation.Options{}), query.Options{})
	return NewServer(engine, status)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"ask_documents", askDocumentsTool, "ask_documents"},
		{"search_documents", searchDocumentsTool, "search_documents"},
		{"index_status", indexStatusTool, "index_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(nil)
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
}

func TestHandleAskDocuments(t *testing.T) {
	srv := newTestServer(nil)
	ctx := context.Background()

	t.Run("spending question", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"question": "How much did I spend at Costco?",
		}

		result, err := srv.handleAskDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "$222.18") {
			t.Errorf("answer missing total: %q", text)
		}
		if !strings.Contains(text, "IMG_4025.jpeg") {
			t.Errorf("answer missing source: %q", text)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleAskDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing question")
		}
	})
}

func TestHandleSearchDocuments(t *testing.T) {
	srv := newTestServer(nil)
	ctx := context.Background()

	t.Run("match", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"query":   "passport expires",
			"user_id": "default",
		}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "File: passport.pdf") {
			t.Errorf("results = %q", text)
		}
	})

	t.Run("filter excludes everything", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"query":   "passport from Walmart",
			"user_id": "default",
		}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text := resultText(t, result); !strings.Contains(text, "No results found") {
			t.Errorf("results = %q", text)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})
}

func TestHandleIndexStatus(t *testing.T) {
	srv := newTestServer(func(context.Context) app.Status {
		return app.Status{Status: "degraded", Mode: "lite", Backend: "keyword", Generation: "templates", SafeMode: true, Error: "snapshot missing"}
	})

	result, err := srv.handleIndexStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"Status: degraded", "Backend: keyword", "Generation: templates", "Safe mode: on", "Error: snapshot missing"} {
		if !strings.Contains(text, want) {
			t.Errorf("status output missing %q:\n%s", want, text)
		}
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/receipt-rag/internal/query"
	"github.com/ziadkadry99/receipt-rag/internal/retrieval"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// handleAskDocuments runs the full question answering pipeline.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	resp := s.engine.Ask(ctx, query.Request{
		Question: question,
		User:     request.GetString("user_id", ""),
		TopK:     request.GetInt("top_k", 0),
	})

	return mcp.NewToolResultText(formatAnswer(resp)), nil
}

// handleSearchDocuments returns ranked chunks for a query.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(q) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	filter, _ := s.engine.Filters(q)
	results, err := s.engine.Backend().Retrieve(ctx, retrieval.Query{
		Text:   q,
		User:   request.GetString("user_id", ""),
		TopK:   limit,
		Filter: filter,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The index may be empty. Run `receiptrag ingest` to add documents."), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

// handleIndexStatus reports the health of the query path.
func (s *Server) handleIndexStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.status == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Backend: %s", s.engine.Backend().Name())), nil
	}
	st := s.status(ctx)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", st.Status)
	fmt.Fprintf(&sb, "Mode: %s\n", st.Mode)
	fmt.Fprintf(&sb, "Backend: %s\n", st.Backend)
	fmt.Fprintf(&sb, "Chunks: %d\n", st.TotalChunks)
	if st.Generation != "" {
		fmt.Fprintf(&sb, "Generation: %s\n", st.Generation)
	}
	if st.SafeMode {
		sb.WriteString("Safe mode: on\n")
	}
	if st.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", st.Error)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatAnswer renders a response as the answer followed by its sources.
func formatAnswer(resp query.Response) string {
	var sb strings.Builder
	sb.WriteString(resp.Answer)
	sb.WriteString("\n")

	if resp.AggregatedAmount != nil {
		fmt.Fprintf(&sb, "\nTotal: $%.2f\n", *resp.AggregatedAmount)
	}

	if len(resp.Sources) > 0 {
		sb.WriteString("\nSources:\n")
		for _, src := range resp.Sources {
			fmt.Fprintf(&sb, "- %s (score: %.3f)\n", src.Filename, src.Score)
		}
	}

	if len(resp.Breakdown) > 0 {
		raw, err := json.MarshalIndent(resp.Breakdown, "", "  ")
		if err == nil {
			sb.WriteString("\nBreakdown:\n")
			sb.Write(raw)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askDocumentsTool defines the ask_documents MCP tool.
var askDocumentsTool = mcp.NewTool("ask_documents",
	mcp.WithDescription("Answer a question about the user's receipts and documents. Spending questions return a computed total with a per-receipt breakdown."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question, in English or Korean"),
	),
	mcp.WithString("user_id",
		mcp.Description("Restrict the answer to this user's documents"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Number of documents to consider (default 5; spending questions use at least 20)"),
	),
)

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Retrieve the documents most relevant to a query without generating an answer. Dates and merchants named in the query become filters."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("user_id",
		mcp.Description("Restrict results to this user's documents"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)

// indexStatusTool defines the index_status MCP tool.
var indexStatusTool = mcp.NewTool("index_status",
	mcp.WithDescription("Report whether the document index is loaded, which retrieval backend is serving and how many chunks it holds."),
)

package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders query results as human-readable text.
func FormatResults(results []QueryResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (score: %.4f) ---\n", i+1, r.Score))

		if name := r.Metadata.GetString(KeyFilename); name != "" {
			sb.WriteString(fmt.Sprintf("File: %s\n", name))
		}
		for _, e := range r.Metadata.Entries() {
			if e.Key == KeyFilename || strings.HasPrefix(e.Key, "_") {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", e.Key, e.Value.String()))
		}

		sb.WriteString("\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

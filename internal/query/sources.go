package query

import (
	"math"
	"unicode/utf8"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

const (
	// sourceExcerptChars bounds a source's chunk text.
	sourceExcerptChars = 200
	unknownFilename    = "Unknown"
)

// sourceMetadataKeys are shown with a source when present.
var sourceMetadataKeys = map[string]bool{
	vectordb.KeyFileType: true,
	vectordb.KeyLocation: true,
	"merchant":           true,
	"store":              true,
	"date":               true,
	"total_amount":       true,
	"amount":             true,
	"payment_method":     true,
	"card_last4":         true,
	"category":           true,
	"currency":           true,
}

// Source is a retrieved chunk as shown to the user.
type Source struct {
	Filename string         `json:"filename"`
	Score    float64        `json:"score"`
	Chunk    string         `json:"chunk"`
	Metadata map[string]any `json:"metadata"`
}

// FormatSources turns results scoring at least minScore into sources.
func FormatSources(results []vectordb.QueryResult, minScore float64) []Source {
	out := make([]Source, 0, len(results))
	for _, r := range results {
		if r.Score < minScore {
			continue
		}
		filename := r.Metadata.GetString(vectordb.KeyFilename)
		if filename == "" {
			filename = unknownFilename
		}
		md := make(map[string]any)
		for _, e := range r.Metadata.Entries() {
			if sourceMetadataKeys[e.Key] {
				md[e.Key] = e.Value.Interface()
			}
		}
		out = append(out, Source{
			Filename: filename,
			Score:    math.Round(r.Score*1000) / 1000,
			Chunk:    excerpt(r.Content, sourceExcerptChars),
			Metadata: md,
		})
	}
	return out
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

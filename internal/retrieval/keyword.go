package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// MaxKeywords caps how many question tokens are scored.
const MaxKeywords = 10

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "of": true, "and": true, "or": true, "but": true,
}

// wordRe matches Unicode words so Korean questions tokenize too.
var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Keywords lowercases question and returns up to MaxKeywords tokens that
// are longer than two characters and not stop words, in question order.
func Keywords(question string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(question), -1) {
		if utf8.RuneCountInString(w) <= 2 || stopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// Keyword scores cached chunks by how many question keywords they contain.
// It serves hosts without an embedding provider.
type Keyword struct {
	source  vectordb.ChunkSource
	timeout time.Duration
}

// NewKeyword returns the keyword overlap strategy over source.
func NewKeyword(source vectordb.ChunkSource, timeout time.Duration) *Keyword {
	return &Keyword{source: source, timeout: timeout}
}

func (k *Keyword) Name() string { return "keyword" }

func (k *Keyword) Retrieve(ctx context.Context, q Query) ([]vectordb.QueryResult, error) {
	return bounded(ctx, k.timeout, func(ctx context.Context) ([]vectordb.QueryResult, error) {
		chunks, err := k.source.Chunks(ctx, q.User)
		if err != nil {
			return nil, err
		}
		return scoreKeywords(chunks, Keywords(q.Text), q.TopK, q.Filter), nil
	})
}

// scoreKeywords ranks chunks by the number of distinct keywords found in
// their lowercased content. Chunks matching none are dropped. Score is
// matches divided by the keyword count.
func scoreKeywords(chunks []vectordb.Chunk, keywords []string, topK int, filter vectordb.Filter) []vectordb.QueryResult {
	if len(keywords) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	type hit struct {
		idx     int
		matches int
	}
	var hits []hit
	for i, c := range chunks {
		if !filter.Matches(c.Metadata) {
			continue
		}
		content := strings.ToLower(c.Content)
		n := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{i, n})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].matches > hits[b].matches })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]vectordb.QueryResult, len(hits))
	for i, h := range hits {
		c := chunks[h.idx]
		out[i] = vectordb.QueryResult{
			ChunkID:  c.ID,
			Content:  c.Content,
			Metadata: c.Metadata,
			Score:    float64(h.matches) / float64(len(keywords)),
		}
	}
	return out
}

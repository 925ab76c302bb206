package query

import (
	"regexp"
	"strings"
)

// Classifier decides whether a question asks for an aggregate over many
// documents rather than a single best match.
type Classifier interface {
	IsAggregation(question string) bool
}

// KeywordClassifier flags a question when it contains any of its keywords.
// Words are matched on word boundaries, ignoring case, and also in their
// plural forms ("costs", "totals", "expenses"). Substrings are
// matched anywhere, for scripts without spaces between morphemes.
type KeywordClassifier struct {
	words      *regexp.Regexp
	substrings []string
}

// NewKeywordClassifier builds a classifier. Multi-word phrases are allowed
// in words.
func NewKeywordClassifier(words, substrings []string) *KeywordClassifier {
	c := &KeywordClassifier{substrings: substrings}
	if len(words) > 0 {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
		}
		c.words = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)(?:e?s)?\b`)
	}
	return c
}

// DefaultClassifier knows English and Korean spending vocabulary.
func DefaultClassifier() *KeywordClassifier {
	return NewKeywordClassifier(
		[]string{
			"how much", "spent", "spend", "spending", "total", "cost", "price",
			"amount", "expense", "expenses", "paid", "money", "sum", "aggregate",
			"count", "how many", "overall",
		},
		[]string{"얼마", "썼", "쓴", "지출", "총", "합계", "비용", "가격", "금액", "결제", "돈", "몇", "전체"},
	)
}

func (c *KeywordClassifier) IsAggregation(question string) bool {
	if c.words != nil && c.words.MatchString(question) {
		return true
	}
	for _, s := range c.substrings {
		if strings.Contains(question, s) {
			return true
		}
	}
	return false
}

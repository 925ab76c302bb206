package query

import (
	"regexp"
	"strings"

	"github.com/ziadkadry99/receipt-rag/internal/llm"
)

const (
	contextMessages       = 4
	contextAssistantChars = 200
)

// referenceRe matches words that point back into the conversation.
var referenceRe = regexp.MustCompile(`(?i)\b(?:it|that|this|there|then)\b`)

// Contextualize rewrites a follow-up question for retrieval by prefixing
// the last exchanges, so "what card did I use there?" finds the store
// named earlier. Questions without a back reference are returned as is.
func Contextualize(question string, history []llm.Message) string {
	if len(history) < 2 || !referenceRe.MatchString(question) {
		return question
	}
	if len(history) > contextMessages {
		history = history[len(history)-contextMessages:]
	}
	var parts []string
	for _, m := range history {
		switch m.Role {
		case llm.RoleUser:
			parts = append(parts, "User asked: "+m.Content)
		case llm.RoleAssistant:
			parts = append(parts, "Assistant mentioned: "+excerptNoMarker(m.Content, contextAssistantChars))
		}
	}
	if len(parts) == 0 {
		return question
	}
	return strings.Join(parts, " ") + ". Now user asks: " + question
}

func excerptNoMarker(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package conversation

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/query"
)

// historyTurns is how many earlier messages accompany a question.
const historyTurns = 4

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, req query.Request) query.Response
}

// Chat answers questions inside a persisted conversation.
type Chat struct {
	store *Store
	asker Asker
}

// NewChat creates a Chat.
func NewChat(store *Store, asker Asker) *Chat {
	return &Chat{store: store, asker: asker}
}

// Store returns the underlying conversation store.
func (c *Chat) Store() *Store { return c.store }

// Send answers question with the conversation's recent history and records
// both turns. An empty conversationID starts a new conversation, whose ID
// is returned.
func (c *Chat) Send(ctx context.Context, conversationID, userID, question string, topK int) (string, query.Response, error) {
	var history []llm.Message
	if conversationID == "" {
		conv, err := c.store.Create(ctx, userID, question)
		if err != nil {
			return "", query.Response{}, err
		}
		conversationID = conv.ID
	} else {
		if _, err := c.store.Get(ctx, conversationID, userID); err != nil {
			return "", query.Response{}, err
		}
		var err error
		history, err = c.store.History(ctx, conversationID, historyTurns)
		if err != nil {
			return "", query.Response{}, fmt.Errorf("loading history: %w", err)
		}
	}

	if _, err := c.store.AddMessage(ctx, conversationID, llm.RoleUser, question, nil); err != nil {
		return "", query.Response{}, err
	}

	resp := c.asker.Ask(ctx, query.Request{
		Question: question,
		User:     userID,
		TopK:     topK,
		History:  history,
	})

	if _, err := c.store.AddMessage(ctx, conversationID, llm.RoleAssistant, resp.Answer, resp.Sources); err != nil {
		return conversationID, resp, err
	}
	return conversationID, resp, nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/receipt-rag/internal/conversation"
	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/query"
)

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Question string  `json:"question"`
	UserID   string  `json:"user_id"`
	TopK     int     `json:"top_k"`
	Timeout  float64 `json:"timeout"`
	// ConversationHistory is ignored when ConversationID is set.
	ConversationHistory []historyMessage `json:"conversation_history"`
	ConversationID      string           `json:"conversation_id"`
}

type conversationRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type conversationResponse struct {
	ConversationID string          `json:"conversation_id"`
	Response       *query.Response `json:"response,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	st := s.status(r.Context())
	code := http.StatusOK
	if st.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx := r.Context()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout*float64(time.Second)))
		defer cancel()
	}

	if req.ConversationID != "" && s.chat != nil {
		id, resp, err := s.chat.Send(ctx, req.ConversationID, req.UserID, req.Question, req.TopK)
		if err != nil {
			writeConversationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversationResponse{ConversationID: id, Response: &resp})
		return
	}

	history := make([]llm.Message, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		role := llm.Role(m.Role)
		if role != llm.RoleUser && role != llm.RoleAssistant {
			writeError(w, http.StatusBadRequest, "conversation_history roles must be user or assistant")
			return
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	resp := s.asker.Ask(ctx, query.Request{
		Question: req.Question,
		User:     req.UserID,
		TopK:     req.TopK,
		History:  history,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		conv, err := s.chat.Store().Create(r.Context(), req.UserID, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, conversationResponse{ConversationID: conv.ID})
		return
	}

	id, resp, err := s.chat.Send(r.Context(), "", req.UserID, req.Question, req.TopK)
	if err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversationResponse{ConversationID: id, Response: &resp})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	id, resp, err := s.chat.Send(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Question, req.TopK)
	if err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{ConversationID: id, Response: &resp})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.Store().Get(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chat.Store().List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.Store().Delete(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("user_id")); err != nil {
		writeConversationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

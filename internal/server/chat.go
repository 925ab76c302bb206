package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/receipt-rag/internal/query"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsRequest is a question sent over the chat socket.
type wsRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Question       string `json:"question"`
	TopK           int    `json:"top_k"`
}

// wsResponse is the reply to one wsRequest.
type wsResponse struct {
	Type           string          `json:"type"` // "answer" or "error"
	ConversationID string          `json:"conversation_id,omitempty"`
	Response       *query.Response `json:"response,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// The socket outlives the router's request timeout.
	ctx := context.WithoutCancel(r.Context())
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		if req.Question == "" {
			sendError(conn, "question is required")
			continue
		}

		id, resp, err := s.chat.Send(ctx, req.ConversationID, req.UserID, req.Question, req.TopK)
		if err != nil {
			sendError(conn, err.Error())
			continue
		}

		if err := conn.WriteJSON(wsResponse{Type: "answer", ConversationID: id, Response: &resp}); err != nil {
			log.Printf("server: websocket write: %v", err)
			return
		}
	}
}

func sendError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(wsResponse{Type: "error", Error: msg}); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

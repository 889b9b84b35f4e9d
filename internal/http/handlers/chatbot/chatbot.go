// Package chatbot serves POST /api/chatbot.
//
// CORS and pre-flight are handled by middleware.CORS in front of the
// router; this handler only decodes, delegates to chat.Proxy and writes
// the reply it returns.
package chatbot

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/smartcampus/campus-api/internal/chat"
	"github.com/smartcampus/campus-api/internal/utils/response"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/chatbot
//
// Request body (JSON):
//
//	{ "message": "Where is the lost and found desk?" }
//
// Success response (200 OK):
//
//	{ "response": "The lost and found desk is ..." }
//
// Error responses always carry both fields so the client can show text:
//
//	429: { "error": "Rate limit exceeded. ...", "response": "..." }
//	402: { "error": "Payment required. ...",    "response": "..." }
//	500: anything else, including an unreadable request body
//
// ─────────────────────────────────────────────────────────────────────────────
func New(proxy *chat.Proxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chat.Request

		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		if err != nil {
			reply := chat.BadRequest(err)
			response.WriteJSON(w, reply.Status, reply.Body)
			return
		}

		reply := proxy.Answer(r.Context(), req.Message)
		response.WriteJSON(w, reply.Status, reply.Body)
	}
}

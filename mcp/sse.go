package mcp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
)

// SSEHandler serves MCP over Server-Sent Events. GET /sse opens a session
// stream whose first event names the message endpoint; POST
// /message?sessionId=<id> accepts a JSON-RPC message with 202 and pushes
// the reply onto that session's stream.
type SSEHandler struct {
	router chi.Router
	sse    *server.SSEServer
}

// NewSSEHandler creates an SSEHandler for s. Sessions end when the client
// disconnects or the request context is canceled.
func NewSSEHandler(s *Server) *SSEHandler {
	h := &SSEHandler{
		router: chi.NewRouter(),
		sse:    server.NewSSEServer(s.mcp),
	}
	h.router.Method(http.MethodGet, "/sse", h.sse.SSEHandler())
	h.router.Method(http.MethodPost, "/message", h.sse.MessageHandler())
	return h
}

// ServeHTTP implements http.Handler.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

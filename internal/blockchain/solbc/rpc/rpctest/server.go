// Package rpctest serves canned Solana JSON-RPC responses for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Handler answers one JSON-RPC method. A non-nil *Error becomes a JSON-RPC error object.
type Handler func(params json.RawMessage) (result any, rpcErr *Error)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Server is an httptest server dispatching JSON-RPC calls by method.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	// Status, when non-zero, is written instead of dispatching.
	status int
}

// NewServer starts a server closed at test cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{handlers: map[string]Handler{}, calls: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Result registers a handler always returning result.
func (s *Server) Result(method string, result any) {
	s.Handle(method, func(json.RawMessage) (any, *Error) { return result, nil })
}

// FailWith makes every request answer with an HTTP status.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Calls returns how many times method was invoked.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	status := s.status
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &Error{Code: -32601, Message: "Method not found"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Context wraps a value the way RPC methods returning RpcResponse<T> do.
func Context(value any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": value}
}

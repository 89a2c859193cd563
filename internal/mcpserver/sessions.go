package mcpserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/voicestudio/internal/history"
)

// Sessions holds one clip history per MCP session. A history exists from
// session registration until the session ends; clips finishing after that
// are not kept.
type Sessions struct {
	mu sync.Mutex
	m  map[string]*history.History
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*history.History)}
}

// Open returns the history for id, creating it if needed.
func (s *Sessions) Open(id string) *history.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.m[id]
	if !ok {
		h = history.New()
		s.m[id] = h
	}
	return h
}

// Append adds rec to an open session's history and reports whether it did.
// Calls outside any MCP session (empty id) share one history.
func (s *Sessions) Append(id string, rec history.ClipRecord) bool {
	var h *history.History
	if id == "" {
		h = s.Open(id)
	} else {
		var ok bool
		if h, ok = s.Peek(id); !ok {
			return false
		}
	}
	h.Append(rec)
	return true
}

// Peek returns the history for id without creating one.
func (s *Sessions) Peek(id string) (*history.History, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.m[id]
	return h, ok
}

// Drop forgets a session's history.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Hooks opens a history when a session registers and drops it when the
// session unregisters.
func (s *Sessions) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		s.Open(session.SessionID())
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		s.Drop(session.SessionID())
	})
	return hooks
}

// Handler drops a session's history once next accepts a DELETE for it.
// Streamable HTTP terminates sessions that way without unregistering them.
func (s *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		if id := r.Header.Get(server.HeaderKeySessionID); id != "" && rw.status == http.StatusOK {
			s.Drop(id)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// sessionID names the calling MCP session; calls outside a session share
// the empty ID.
func sessionID(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		return cs.SessionID()
	}
	return ""
}

package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/golovatskygroup/compliance-mcp/pkg/mcp"
)

// session is one open SSE stream. Responses to messages posted for it are
// queued on out and written by the stream's handler.
type session struct {
	id     string
	out    chan *mcp.Response
	ctx    context.Context
	cancel context.CancelFunc
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (st *sessionStore) open(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:     uuid.NewString(),
		out:    make(chan *mcp.Response, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *sessionStore) close(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.cancel()
	}
}

func (st *sessionStore) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// deliver queues resp for the stream. It gives up when the session ends.
func (s *session) deliver(resp *mcp.Response) bool {
	select {
	case s.out <- resp:
		return true
	case <-s.ctx.Done():
		return false
	}
}

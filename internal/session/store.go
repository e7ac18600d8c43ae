// Package session persists per-browser authenticated state. The store is
// injected wherever tokens are needed so tests can swap in a fake.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uiowa-coph/roomres/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the session token store: one record per authenticated browser
// session, keyed by session id.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Set(ctx context.Context, s *domain.Session) error
	Invalidate(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory. Used in tests and for local
// development without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := sess
	return &cp, nil
}

func (s *MemoryStore) Set(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

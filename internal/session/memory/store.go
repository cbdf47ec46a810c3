// Package memory keeps sessions in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/fastplay/tokenarcade/internal/session"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

func New() *Store {
	return &Store{sessions: make(map[string]session.Session)}
}

var _ session.Store = (*Store)(nil)

func (s *Store) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = *sess

	return nil
}

func (s *Store) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}

	out := sess

	return &out, nil
}

func (s *Store) Update(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}

	s.sessions[sess.ID] = *sess

	return nil
}

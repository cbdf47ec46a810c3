package session

import "context"

// Store persists sessions. Implementations return ErrSessionNotFound for
// unknown ids; they do not enforce transition rules, the Manager does.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
}

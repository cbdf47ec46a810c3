// Package redisstore keeps sessions in Redis as JSON values. Live sessions
// carry a generous TTL so an abandoned client cannot grow the keyspace
// forever; terminal sessions are kept shorter, for audit reads only.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastplay/tokenarcade/internal/session"
)

const (
	ttlLive     = 24 * time.Hour
	ttlTerminal = time.Hour
)

type Store struct{ rdb *redis.Client }

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

var _ session.Store = (*Store)(nil)

func key(id string) string { return "sess:" + id }

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	return s.write(ctx, sess)
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess session.Session

	err = json.Unmarshal(raw, &sess)
	if err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &sess, nil
}

func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	exists, err := s.rdb.Exists(ctx, key(sess.ID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return session.ErrSessionNotFound
	}

	return s.write(ctx, sess)
}

func (s *Store) write(ctx context.Context, sess *session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := ttlLive
	if sess.Status.Terminal() {
		ttl = ttlTerminal
	}

	err = s.rdb.Set(ctx, key(sess.ID), raw, ttl).Err()
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

// Package events publishes wallet audit events. Publishing is best-effort:
// a failed publish is logged by the caller and never fails the request that
// produced it.
package events

import (
	"context"
	"time"
)

// Publisher emits one event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event any) error
	Close() error
}

// StakeLocked is emitted after a session locks its stake.
type StakeLocked struct {
	SessionID  string    `json:"session_id"`
	AccountID  uint64    `json:"account_id"`
	GameID     string    `json:"game_id"`
	Stake      int64     `json:"stake"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionSettled is emitted after a session reaches its terminal result.
type SessionSettled struct {
	SessionID  string    `json:"session_id"`
	AccountID  uint64    `json:"account_id"`
	GameID     string    `json:"game_id"`
	Status     string    `json:"status"`
	Payout     int64     `json:"payout"`
	Rounds     int       `json:"rounds"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, any) error { return nil }
func (Noop) Close() error                       { return nil }

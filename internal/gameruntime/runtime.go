// Package gameruntime is the boundary minigames call through. A runtime
// exposes exactly three capabilities — report a win, report a loss, request
// a paid retry — and holds no ledger state of its own, so a minigame stays
// a pure function of elapsed time and input events.
package gameruntime

import (
	"context"
	"sync"

	"github.com/fastplay/tokenarcade/internal/session"
)

// SessionOps is the slice of the session manager a runtime needs.
type SessionOps interface {
	ChargeRound(ctx context.Context, accountID uint64, sessionID string, round int) (int64, int, error)
	Settle(ctx context.Context, accountID uint64, sessionID string, won bool, payoutHint int64) (session.Result, error)
	Abandon(ctx context.Context, accountID uint64, sessionID string) (*session.Session, error)
}

// Callbacks is what a minigame receives. It never sees the session manager
// or the ledger behind them.
type Callbacks struct {
	OnWin         func() (session.Result, error)
	OnLose        func() (session.Result, error)
	OnChargeRound func() error
}

// Runtime binds one session to the three game-facing capabilities.
type Runtime struct {
	ops       SessionOps
	accountID uint64
	sessionID string

	mu    sync.Mutex
	round int
}

func New(ops SessionOps, accountID uint64, sessionID string) *Runtime {
	return &Runtime{ops: ops, accountID: accountID, sessionID: sessionID}
}

func (r *Runtime) ReportWin(ctx context.Context) (session.Result, error) {
	return r.ops.Settle(ctx, r.accountID, r.sessionID, true, 0)
}

func (r *Runtime) ReportLose(ctx context.Context) (session.Result, error) {
	return r.ops.Settle(ctx, r.accountID, r.sessionID, false, 0)
}

// RequestChargedRetry pays the fixed retry fee for the next round. The
// runtime tracks the round index so a game that calls this after a network
// retry cannot pay twice for the same round.
func (r *Runtime) RequestChargedRetry(ctx context.Context) error {
	r.mu.Lock()
	round := r.round
	r.mu.Unlock()

	_, next, err := r.ops.ChargeRound(ctx, r.accountID, r.sessionID, round)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.round = next
	r.mu.Unlock()

	return nil
}

// Teardown aborts the session on client disconnect before any result.
func (r *Runtime) Teardown(ctx context.Context) error {
	_, err := r.ops.Abandon(ctx, r.accountID, r.sessionID)

	return err
}

// Callbacks adapts the runtime to the shape minigames consume.
func (r *Runtime) Callbacks(ctx context.Context) Callbacks {
	return Callbacks{
		OnWin:         func() (session.Result, error) { return r.ReportWin(ctx) },
		OnLose:        func() (session.Result, error) { return r.ReportLose(ctx) },
		OnChargeRound: func() error { return r.RequestChargedRetry(ctx) },
	}
}

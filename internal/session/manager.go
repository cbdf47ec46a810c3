package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastplay/tokenarcade/internal/events"
	"github.com/fastplay/tokenarcade/internal/games"
	"github.com/fastplay/tokenarcade/internal/ledger"
	"github.com/fastplay/tokenarcade/internal/settle"
)

// Manager drives the per-attempt state machine. Calls for the same session
// are serialized; the ledger additionally serializes per account, so a
// duplicate or concurrent client request can never double-apply an economic
// effect.
type Manager struct {
	ledger    *ledger.Service
	store     Store
	policy    *settle.Policy
	validator settle.OutcomeValidator
	publisher events.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(l *ledger.Service, store Store, policy *settle.Policy, opts ...Option) *Manager {
	m := &Manager{
		ledger:    l,
		store:     store,
		policy:    policy,
		validator: settle.TrustClient{},
		publisher: events.Noop{},
		locks:     make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type Option func(*Manager)

// WithPublisher emits audit events after stake locks and settlements.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithValidator plugs in server-side outcome verification.
func WithValidator(v settle.OutcomeValidator) Option {
	return func(m *Manager) { m.validator = v }
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}

	return l
}

// Start creates a session and locks the stake. Not idempotent: every call
// that passes validation produces a fresh session, so callers must not
// blindly retry it.
func (m *Manager) Start(ctx context.Context, accountID uint64, gameID string, stake int64) (*Session, int64, error) {
	if !games.Exists(gameID) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownGame, gameID)
	}
	if stake <= 0 {
		return nil, 0, fmt.Errorf("stake must be positive: %w", ErrInvalidStake)
	}

	balance, err := m.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return nil, 0, fmt.Errorf("check balance: %w", err)
	}
	if stake > balance {
		return nil, 0, fmt.Errorf("stake %d exceeds balance %d: %w", stake, balance, ErrInvalidStake)
	}

	s := &Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		GameID:    gameID,
		Stake:     stake,
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC(),
	}

	err = m.store.Create(ctx, s)
	if err != nil {
		return nil, 0, fmt.Errorf("create session: %w", err)
	}

	newBalance, _, err := m.ledger.ApplyEntry(ctx, ledger.ApplyRequest{
		AccountID:      accountID,
		SessionID:      s.ID,
		Amount:         -stake,
		Reason:         ledger.ReasonLock,
		IdempotencyKey: s.ID + ":lock",
	})
	if err != nil {
		// Lost the race against a concurrent debit; the session never held
		// any funds, so it ends aborted.
		s.Status = StatusAborted

		uerr := m.store.Update(ctx, s)
		if uerr != nil {
			slog.Error("abort unfunded session", "session", s.ID, "error", uerr)
		}

		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, 0, fmt.Errorf("stake exceeds balance: %w", ErrInvalidStake)
		}

		return nil, 0, fmt.Errorf("lock stake: %w", err)
	}

	s.Status = StatusActive

	err = m.store.Update(ctx, s)
	if err != nil {
		return nil, 0, fmt.Errorf("activate session: %w", err)
	}

	m.publish(ctx, events.StakeLocked{
		SessionID:  s.ID,
		AccountID:  accountID,
		GameID:     gameID,
		Stake:      stake,
		OccurredAt: time.Now().UTC(),
	})

	return s, newBalance, nil
}

// ChargeRound debits one fixed-fee retry (amount = session stake). round is
// the zero-based index of the round being paid for; a retried request with
// the same index replays the recorded result instead of charging again, and
// RoundCount never advances twice for one index.
func (m *Manager) ChargeRound(ctx context.Context, accountID uint64, sessionID string, round int) (int64, int, error) {
	l := m.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	s, err := m.load(ctx, accountID, sessionID)
	if err != nil {
		return 0, 0, err
	}

	if s.Status.Terminal() || s.Status == StatusSettling {
		return 0, 0, fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrSessionNotActive)
	}

	if round < 0 || round > s.RoundCount {
		return 0, 0, fmt.Errorf("round %d out of sequence (next is %d): %w", round, s.RoundCount, ErrRoundOutOfSequence)
	}

	balance, applied, err := m.ledger.ApplyEntry(ctx, ledger.ApplyRequest{
		AccountID:      accountID,
		SessionID:      s.ID,
		Amount:         -s.Stake,
		Reason:         ledger.ReasonRoundCharge,
		IdempotencyKey: s.ID + ":round:" + strconv.Itoa(round),
	})
	if err != nil {
		// Failed charge leaves the session active and the balance untouched.
		return 0, s.RoundCount, fmt.Errorf("charge round: %w", err)
	}

	// round < RoundCount is a pure replay: the ledger returned the recorded
	// balance and the count already reflects the charge. round == RoundCount
	// advances it, whether the entry was applied just now or on an earlier
	// attempt that died before this update.
	if applied || round == s.RoundCount {
		s.RoundCount = round + 1

		err = m.store.Update(ctx, s)
		if err != nil {
			return 0, 0, fmt.Errorf("update round count: %w", err)
		}
	}

	return balance, s.RoundCount, nil
}

// Settle applies the terminal outcome exactly once. A repeated call for a
// settled session returns the stored result; it is never a hard failure.
func (m *Manager) Settle(ctx context.Context, accountID uint64, sessionID string, won bool, payoutHint int64) (Result, error) {
	l := m.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	s, err := m.load(ctx, accountID, sessionID)
	if err != nil {
		return Result{}, err
	}

	if s.Status == StatusSettled {
		return settledResult(s), nil
	}
	if s.Status == StatusAborted {
		return Result{}, fmt.Errorf("session %s is aborted: %w", s.ID, ErrSessionNotActive)
	}

	err = m.validator.Validate(s.ID, s.GameID, won)
	if err != nil {
		return Result{}, fmt.Errorf("validate outcome: %w", err)
	}

	if !m.policy.HintInBounds(s.Stake, payoutHint, won) {
		slog.Warn("payout hint out of policy bounds",
			"session", s.ID, "account", accountID, "stake", s.Stake,
			"won", won, "hint", payoutHint)
	}

	s.Status = StatusSettling

	err = m.store.Update(ctx, s)
	if err != nil {
		return Result{}, fmt.Errorf("mark settling: %w", err)
	}

	payout := m.policy.Payout(s.Stake, won)

	var balance int64

	if payout > 0 {
		var applied bool

		balance, applied, err = m.ledger.ApplyEntry(ctx, ledger.ApplyRequest{
			AccountID:      accountID,
			SessionID:      s.ID,
			Amount:         payout,
			Reason:         ledger.ReasonPayout,
			IdempotencyKey: s.ID + ":settle",
		})
		if err != nil {
			return Result{}, fmt.Errorf("apply payout: %w", err)
		}

		if !applied {
			// An earlier attempt paid out and died before recording the
			// session; the entry, not the fresh draw, is authoritative.
			payout, err = m.recordedPayout(ctx, accountID, s.ID)
			if err != nil {
				return Result{}, err
			}
		}
	} else {
		balance, err = m.ledger.GetBalance(ctx, accountID)
		if err != nil {
			return Result{}, fmt.Errorf("read balance: %w", err)
		}
	}

	now := time.Now().UTC()
	s.Status = StatusSettled
	s.Won = won
	s.Payout = payout
	s.FinalBalance = balance
	s.SettledAt = &now

	err = m.store.Update(ctx, s)
	if err != nil {
		return Result{}, fmt.Errorf("mark settled: %w", err)
	}

	res := settledResult(s)

	m.publish(ctx, events.SessionSettled{
		SessionID:  s.ID,
		AccountID:  accountID,
		GameID:     s.GameID,
		Status:     res.Status,
		Payout:     payout,
		Rounds:     s.RoundCount,
		OccurredAt: now,
	})

	return res, nil
}

// Abandon ends a session without any ledger effect; the locked stake is
// forfeited. Abandoning twice is a no-op.
func (m *Manager) Abandon(ctx context.Context, accountID uint64, sessionID string) (*Session, error) {
	l := m.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	s, err := m.load(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}

	if s.Status == StatusAborted {
		return s, nil
	}
	if s.Status == StatusSettled || s.Status == StatusSettling {
		return nil, fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrSessionNotActive)
	}

	s.Status = StatusAborted

	err = m.store.Update(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("abort session: %w", err)
	}

	return s, nil
}

// Get returns a session owned by the account.
func (m *Manager) Get(ctx context.Context, accountID uint64, sessionID string) (*Session, error) {
	return m.load(ctx, accountID, sessionID)
}

// recordedPayout reads back the payout entry a previous settle attempt
// wrote for the session.
func (m *Manager) recordedPayout(ctx context.Context, accountID uint64, sessionID string) (int64, error) {
	entries, err := m.ledger.Entries(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("read payout entry: %w", err)
	}

	for _, e := range entries {
		if e.SessionID == sessionID && e.Reason == ledger.ReasonPayout {
			return e.Amount, nil
		}
	}

	return 0, fmt.Errorf("payout entry for session %s missing", sessionID)
}

// load fetches the session and enforces ownership: a session belonging to a
// different account is reported as not found.
func (m *Manager) load(ctx context.Context, accountID uint64, sessionID string) (*Session, error) {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if s.AccountID != accountID {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	return s, nil
}

func (m *Manager) publish(ctx context.Context, event any) {
	err := m.publisher.Publish(ctx, event)
	if err != nil {
		slog.Error("publish event", "error", err)
	}
}

func settledResult(s *Session) Result {
	status := "lost"
	if s.Won {
		status = "won"
	}

	return Result{Status: status, Balance: s.FinalBalance, Payout: s.Payout}
}

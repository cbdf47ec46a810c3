package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service serializes all mutations for a given account: two concurrent
// ApplyEntry calls for the same account never interleave, calls for
// different accounts run in parallel. The store below still guarantees
// atomicity of each single application.
type Service struct {
	store Store

	mu    sync.Mutex // protects locks
	locks map[uint64]*sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: make(map[uint64]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}

	return l
}

// ApplyRequest describes one balance mutation.
type ApplyRequest struct {
	AccountID      uint64
	SessionID      string // empty for wallet-level entries
	Amount         int64
	Reason         Reason
	IdempotencyKey string
}

// ApplyEntry applies the request at most once. A repeated idempotency key
// returns the balance recorded at first application with applied=false.
// A debit exceeding the current balance fails with ErrInsufficientFunds
// and writes nothing.
func (s *Service) ApplyEntry(ctx context.Context, req ApplyRequest) (int64, bool, error) {
	if req.IdempotencyKey == "" {
		return 0, false, ErrMissingKey
	}
	if req.Amount == 0 {
		return 0, false, fmt.Errorf("zero amount: %w", ErrInvalidAmount)
	}

	l := s.accountLock(req.AccountID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.Apply(ctx, Entry{
		ID:             uuid.NewString(),
		AccountID:      req.AccountID,
		SessionID:      req.SessionID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return 0, false, fmt.Errorf("apply entry: %w", err)
	}

	return res.Balance, res.Applied, nil
}

// Purchase credits freshly bought tokens to the account.
func (s *Service) Purchase(ctx context.Context, accountID uint64, amount int64, purchaseID string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("purchase amount must be positive: %w", ErrInvalidAmount)
	}

	balance, _, err := s.ApplyEntry(ctx, ApplyRequest{
		AccountID:      accountID,
		Amount:         amount,
		Reason:         ReasonPurchase,
		IdempotencyKey: "purchase:" + purchaseID,
	})
	if err != nil {
		return 0, fmt.Errorf("purchase: %w", err)
	}

	return balance, nil
}

// GetBalance returns the current balance without locking.
func (s *Service) GetBalance(ctx context.Context, accountID uint64) (int64, error) {
	balance, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// Entries returns the account's entry history, oldest first.
func (s *Service) Entries(ctx context.Context, accountID uint64) ([]Entry, error) {
	entries, err := s.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return entries, nil
}

// Package memory holds the ledger in process memory. Used by tests and by
// single-node dev setups that run without Postgres.
package memory

import (
	"context"
	"sync"

	"github.com/fastplay/tokenarcade/internal/ledger"
)

// replayKey scopes idempotency keys to the owning account, so a
// client-chosen key reused by another account applies normally instead
// of replaying a stranger's entry.
type replayKey struct {
	accountID uint64
	key       string
}

type Store struct {
	mu       sync.Mutex
	balances map[uint64]int64
	byKey    map[replayKey]ledger.Entry
	entries  []ledger.Entry
}

func New() *Store {
	return &Store{
		balances: make(map[uint64]int64),
		byKey:    make(map[replayKey]ledger.Entry),
	}
}

var _ ledger.Store = (*Store)(nil)

// Seed creates an account with an initial balance. Test and dev helper;
// production accounts are provisioned by migrations.
func (s *Store) Seed(accountID uint64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[accountID] = balance
}

func (s *Store) GetBalance(_ context.Context, accountID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}

	return balance, nil
}

func (s *Store) Apply(_ context.Context, e ledger.Entry) (ledger.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[e.AccountID]
	if !ok {
		return ledger.ApplyResult{}, ledger.ErrAccountNotFound
	}

	rk := replayKey{accountID: e.AccountID, key: e.IdempotencyKey}
	if prev, ok := s.byKey[rk]; ok {
		return ledger.ApplyResult{Balance: prev.BalanceAfter, Applied: false}, nil
	}

	if e.Amount < 0 && balance+e.Amount < 0 {
		return ledger.ApplyResult{}, ledger.ErrInsufficientFunds
	}

	balance += e.Amount
	e.BalanceAfter = balance

	s.balances[e.AccountID] = balance
	s.byKey[rk] = e
	s.entries = append(s.entries, e)

	return ledger.ApplyResult{Balance: balance, Applied: true}, nil
}

func (s *Store) EntriesByAccount(_ context.Context, accountID uint64) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[accountID]; !ok {
		return nil, ledger.ErrAccountNotFound
	}

	var out []ledger.Entry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}

	return out, nil
}

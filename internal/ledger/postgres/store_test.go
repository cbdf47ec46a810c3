package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastplay/tokenarcade/internal/infra/pgtestutil"
	"github.com/fastplay/tokenarcade/internal/ledger"
)

func seedAccount(t *testing.T, db *sql.DB, id uint64, balance int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO accounts (id, balance) VALUES ($1, $2)`, id, balance)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func newEntry(account uint64, amount int64, key string) ledger.Entry {
	return ledger.Entry{
		ID:             uuid.NewString(),
		AccountID:      account,
		Amount:         amount,
		Reason:         ledger.ReasonRoundCharge,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestApply_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		seed        func(t *testing.T, db *sql.DB, s *Store)
		apply       ledger.Entry
		wantBalance int64
		wantApplied bool
		wantErr     error
	}{
		{
			name: "debit_applies",
			seed: func(t *testing.T, db *sql.DB, _ *Store) {
				seedAccount(t, db, 1, 100)
			},
			apply:       newEntry(1, -30, "k1"),
			wantBalance: 70,
			wantApplied: true,
		},
		{
			name: "debit_over_balance_rejected",
			seed: func(t *testing.T, db *sql.DB, _ *Store) {
				seedAccount(t, db, 1, 20)
			},
			apply:   newEntry(1, -30, "k1"),
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name: "replay_returns_recorded_balance",
			seed: func(t *testing.T, db *sql.DB, s *Store) {
				seedAccount(t, db, 1, 100)

				_, err := s.Apply(context.Background(), newEntry(1, -30, "dup"))
				if err != nil {
					t.Fatalf("seed entry: %v", err)
				}
				_, err = s.Apply(context.Background(), newEntry(1, -30, "other"))
				if err != nil {
					t.Fatalf("seed entry: %v", err)
				}
			},
			apply:       newEntry(1, -30, "dup"),
			wantBalance: 70,
			wantApplied: false,
		},
		{
			name:    "unknown_account",
			seed:    func(*testing.T, *sql.DB, *Store) {},
			apply:   newEntry(99, 10, "k1"),
			wantErr: ledger.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			store := New(db)
			tt.seed(t, db, store)

			res, err := store.Apply(context.Background(), tt.apply)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Balance != tt.wantBalance {
				t.Fatalf("balance: want %d, got %d", tt.wantBalance, res.Balance)
			}
			if res.Applied != tt.wantApplied {
				t.Fatalf("applied: want %v, got %v", tt.wantApplied, res.Applied)
			}
		})
	}
}

func TestApply_AtomicOnRejection(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	store := New(db)
	seedAccount(t, db, 1, 10)

	_, err := store.Apply(context.Background(), newEntry(1, -50, "reject"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want insufficient funds, got %v", err)
	}

	// neither side of the write may exist
	var n int

	err = db.QueryRow(`SELECT count(*) FROM ledger_entries WHERE account_id = 1`).Scan(&n)
	if err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if n != 0 {
		t.Fatalf("rejected apply left %d entries", n)
	}

	balance, err := store.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("balance: want 10, got %d", balance)
	}
}

func TestEntriesByAccount_OrderAndSessionTag(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	store := New(db)
	seedAccount(t, db, 1, 100)

	sid := uuid.NewString()

	first := newEntry(1, -30, sid+":lock")
	first.SessionID = sid
	first.Reason = ledger.ReasonLock

	if _, err := store.Apply(context.Background(), first); err != nil {
		t.Fatalf("apply lock: %v", err)
	}

	second := newEntry(1, 60, sid+":settle")
	second.SessionID = sid
	second.Reason = ledger.ReasonPayout

	if _, err := store.Apply(context.Background(), second); err != nil {
		t.Fatalf("apply payout: %v", err)
	}

	entries, err := store.EntriesByAccount(context.Background(), 1)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries: want 2, got %d", len(entries))
	}
	if entries[0].Reason != ledger.ReasonLock || entries[1].Reason != ledger.ReasonPayout {
		t.Fatalf("order wrong: %v then %v", entries[0].Reason, entries[1].Reason)
	}
	if entries[0].SessionID != sid {
		t.Fatalf("session id: want %s, got %s", sid, entries[0].SessionID)
	}
	if entries[0].BalanceAfter != 70 || entries[1].BalanceAfter != 130 {
		t.Fatalf("balance_after: got %d then %d", entries[0].BalanceAfter, entries[1].BalanceAfter)
	}
}

// Idempotency keys are unique per account, not globally: a key already
// used by one account must apply normally for another.
func TestApply_SameKeyDifferentAccounts(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	store := New(db)
	seedAccount(t, db, 1, 0)
	seedAccount(t, db, 2, 0)

	ctx := context.Background()

	e := newEntry(1, 100, "shared")
	e.Reason = ledger.ReasonPurchase

	res, err := store.Apply(ctx, e)
	if err != nil || !res.Applied {
		t.Fatalf("first account: applied=%v, err=%v", res.Applied, err)
	}

	e = newEntry(2, 100, "shared")
	e.Reason = ledger.ReasonPurchase

	res, err = store.Apply(ctx, e)
	if err != nil {
		t.Fatalf("second account: %v", err)
	}
	if !res.Applied {
		t.Fatal("second account's entry was swallowed as a replay")
	}
	if res.Balance != 100 {
		t.Fatalf("second account balance: want 100, got %d", res.Balance)
	}

	balance, err := store.GetBalance(ctx, 2)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("second account holds %d after a 100 credit", balance)
	}
}

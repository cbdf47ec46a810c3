package ledger

import "context"

// ApplyResult reports the outcome of a store Apply call. Applied is false
// when the idempotency key had already been used; Balance then carries the
// BalanceAfter recorded at first application.
type ApplyResult struct {
	Balance int64
	Applied bool
}

// Store persists accounts and entries. Apply must perform the replay check,
// the funds check, the entry insert and the balance update as one atomic
// unit: a partially applied entry must be impossible.
type Store interface {
	GetBalance(ctx context.Context, accountID uint64) (int64, error)
	Apply(ctx context.Context, e Entry) (ApplyResult, error)
	EntriesByAccount(ctx context.Context, accountID uint64) ([]Entry, error)
}

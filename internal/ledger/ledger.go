// Package ledger owns account balances and the append-only history of
// balance-changing entries. Nothing else in the service is allowed to
// mutate a balance.
package ledger

import (
	"errors"
	"time"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrMissingKey        = errors.New("missing idempotency key")
)

// Reason tags why an entry changed a balance.
type Reason string

const (
	ReasonPurchase    Reason = "purchase"
	ReasonLock        Reason = "lock"
	ReasonRoundCharge Reason = "round_charge"
	ReasonPayout      Reason = "payout"
	ReasonRefund      Reason = "refund"
)

// Entry is an immutable, reason-tagged balance delta. BalanceAfter is the
// account balance recorded at the moment the entry was applied; replays of
// the same idempotency key return it instead of re-applying.
type Entry struct {
	ID             string    `json:"id"`
	AccountID      uint64    `json:"accountId"`
	SessionID      string    `json:"sessionId,omitempty"`
	Amount         int64     `json:"amount"` // minor units, signed
	Reason         Reason    `json:"reason"`
	IdempotencyKey string    `json:"idempotencyKey"`
	BalanceAfter   int64     `json:"balanceAfter"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Package session tracks one bounded minigame attempt through a fixed state
// machine and is the only component that talks to the ledger on behalf of a
// game. Session state never regresses.
package session

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session not active")
	ErrInvalidStake       = errors.New("invalid stake")
	ErrUnknownGame        = errors.New("unknown game")
	ErrRoundOutOfSequence = errors.New("round out of sequence")
)

// Status of a session. Transitions only move forward:
// created -> locked -> active -> settling -> settled | aborted.
type Status string

const (
	StatusCreated  Status = "created"
	StatusLocked   Status = "locked"
	StatusActive   Status = "active"
	StatusSettling Status = "settling"
	StatusSettled  Status = "settled"
	StatusAborted  Status = "aborted"
)

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusAborted
}

var statusRank = map[Status]int{
	StatusCreated:  0,
	StatusLocked:   1,
	StatusActive:   2,
	StatusSettling: 3,
	StatusSettled:  4,
	StatusAborted:  4,
}

// CanAdvance reports whether moving from s to next respects the forward-only
// order.
func (s Status) CanAdvance(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// Session is one attempt at a minigame. Owned exclusively by the Manager;
// the ledger only ever sees its id on entries for audit.
type Session struct {
	ID         string `json:"id"`
	AccountID  uint64 `json:"accountId"`
	GameID     string `json:"gameId"`
	Stake      int64  `json:"stake"`
	Status     Status `json:"status"`
	RoundCount int    `json:"roundCount"`
	Won        bool   `json:"won"`
	Payout     int64  `json:"payout"`
	// FinalBalance is the balance recorded when the session settled; replayed
	// settle calls return it unchanged.
	FinalBalance int64      `json:"finalBalance"`
	CreatedAt    time.Time  `json:"createdAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// Result is what a settle call reports back to the client.
type Result struct {
	Status  string `json:"status"` // "won" or "lost"
	Balance int64  `json:"balance"`
	Payout  int64  `json:"payout"`
}

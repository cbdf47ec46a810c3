// Package postgres implements the ledger store on Postgres. Each Apply runs
// in a single transaction with the account row locked FOR UPDATE, so the
// replay check, the funds check, the entry insert and the balance update
// commit or roll back together.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastplay/tokenarcade/internal/infra/pgutils"
	"github.com/fastplay/tokenarcade/internal/ledger"
)

const uniqueViolation = "23505"

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) GetBalance(ctx context.Context, accountID uint64) (int64, error) {
	var balance int64

	err := s.db.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (s *Store) Apply(ctx context.Context, e ledger.Entry) (ledger.ApplyResult, error) {
	var res ledger.ApplyResult

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		balance, err := lockAndGetBalance(tx, e.AccountID)
		if err != nil {
			return err
		}

		// Replay check under the row lock. Keys are scoped per account;
		// another account reusing the same client-chosen key must not
		// match here.
		var recorded int64

		err = tx.QueryRow(`
			SELECT balance_after
			FROM ledger_entries
			WHERE account_id = $1 AND idempotency_key = $2
		`, e.AccountID, e.IdempotencyKey).Scan(&recorded)
		if err == nil {
			res = ledger.ApplyResult{Balance: recorded, Applied: false}
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("replay check: %w", err)
		}

		if e.Amount < 0 && balance+e.Amount < 0 {
			return ledger.ErrInsufficientFunds
		}

		balance += e.Amount

		_, err = tx.Exec(`
			UPDATE accounts
			SET balance = $2
			WHERE id = $1
		`, e.AccountID, balance)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO ledger_entries
				(id, account_id, session_id, amount, reason, idempotency_key, balance_after, created_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		`, e.ID, e.AccountID, e.SessionID, e.Amount, e.Reason, e.IdempotencyKey, balance, e.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				// The replay check runs under the account row lock, so a
				// duplicate (account_id, idempotency_key) insert should be
				// unreachable.
				return fmt.Errorf("duplicate idempotency key for account: %w", err)
			}

			return fmt.Errorf("insert entry: %w", err)
		}

		res = ledger.ApplyResult{Balance: balance, Applied: true}

		return nil
	})
	if err != nil {
		return ledger.ApplyResult{}, err
	}

	return res, nil
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID uint64) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, COALESCE(session_id::text, ''), amount, reason,
		       idempotency_key, balance_after, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry

	for rows.Next() {
		var e ledger.Entry

		err = rows.Scan(&e.ID, &e.AccountID, &e.SessionID, &e.Amount, &e.Reason,
			&e.IdempotencyKey, &e.BalanceAfter, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return out, nil
}

func lockAndGetBalance(tx *sql.Tx, accountID uint64) (int64, error) {
	var balance int64

	err := tx.QueryRow(`
		SELECT balance
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrAccountNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

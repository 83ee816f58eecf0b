package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientBalance is returned by Debit when the caller's balance
// would go negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceStore tracks per-caller prepaid balances in whole cents. It is
// driver-agnostic: callers supply an already-open *sql.DB.
type BalanceStore struct {
	db *sql.DB
}

// NewBalanceStore wraps db and creates the balances table if needed.
func NewBalanceStore(db *sql.DB) (*BalanceStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS balances (
		caller_id     TEXT PRIMARY KEY,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		updated_at    TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate balances schema: %w", err)
	}
	return &BalanceStore{db: db}, nil
}

// Get returns the caller's balance in cents. Unknown callers have a
// zero balance.
func (b *BalanceStore) Get(ctx context.Context, callerID string) (int64, error) {
	var cents int64
	err := b.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM balances WHERE caller_id = ?`, callerID,
	).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance for %s: %w", callerID, err)
	}
	return cents, nil
}

// Credit adds cents to the caller's balance, creating the row if needed.
func (b *BalanceStore) Credit(ctx context.Context, callerID string, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", cents)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO balances (caller_id, balance_cents, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(caller_id) DO UPDATE SET
			balance_cents = balance_cents + excluded.balance_cents,
			updated_at = excluded.updated_at`,
		callerID, cents, now,
	)
	if err != nil {
		return fmt.Errorf("credit balance for %s: %w", callerID, err)
	}
	return nil
}

// Debit subtracts cents from the caller's balance atomically. It returns
// ErrInsufficientBalance if the balance would go negative; the balance
// is left untouched in that case.
func (b *BalanceStore) Debit(ctx context.Context, callerID string, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", cents)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := b.db.ExecContext(ctx,
		`UPDATE balances
		 SET balance_cents = balance_cents - ?, updated_at = ?
		 WHERE caller_id = ? AND balance_cents >= ?`,
		cents, now, callerID, cents,
	)
	if err != nil {
		return fmt.Errorf("debit balance for %s: %w", callerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance for %s: %w", callerID, err)
	}
	if n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

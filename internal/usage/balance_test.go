package usage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func setupBalanceStore(t *testing.T) *BalanceStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewBalanceStore(db)
	if err != nil {
		t.Fatalf("new balance store: %v", err)
	}
	return store
}

func TestBalance_UnknownCallerIsZero(t *testing.T) {
	store := setupBalanceStore(t)

	cents, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cents != 0 {
		t.Errorf("balance = %d, want 0", cents)
	}
}

func TestBalance_CreditAndGet(t *testing.T) {
	store := setupBalanceStore(t)
	ctx := context.Background()

	if err := store.Credit(ctx, "caller-1", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := store.Credit(ctx, "caller-1", 250); err != nil {
		t.Fatalf("credit: %v", err)
	}

	cents, err := store.Get(ctx, "caller-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cents != 750 {
		t.Errorf("balance = %d, want 750", cents)
	}
}

func TestBalance_Debit(t *testing.T) {
	store := setupBalanceStore(t)
	ctx := context.Background()

	if err := store.Credit(ctx, "caller-1", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := store.Debit(ctx, "caller-1", 30); err != nil {
		t.Fatalf("debit: %v", err)
	}

	cents, err := store.Get(ctx, "caller-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cents != 70 {
		t.Errorf("balance = %d, want 70", cents)
	}
}

func TestBalance_DebitInsufficient(t *testing.T) {
	store := setupBalanceStore(t)
	ctx := context.Background()

	if err := store.Credit(ctx, "caller-1", 50); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := store.Debit(ctx, "caller-1", 51)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("debit err = %v, want ErrInsufficientBalance", err)
	}

	// Balance must be untouched after a failed debit.
	cents, err := store.Get(ctx, "caller-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cents != 50 {
		t.Errorf("balance = %d, want 50", cents)
	}
}

func TestBalance_DebitUnknownCaller(t *testing.T) {
	store := setupBalanceStore(t)

	err := store.Debit(context.Background(), "nobody", 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("debit err = %v, want ErrInsufficientBalance", err)
	}
}

func TestBalance_RejectsNonPositiveAmounts(t *testing.T) {
	store := setupBalanceStore(t)
	ctx := context.Background()

	if err := store.Credit(ctx, "caller-1", 0); err == nil {
		t.Error("Credit(0) should fail")
	}
	if err := store.Credit(ctx, "caller-1", -5); err == nil {
		t.Error("Credit(-5) should fail")
	}
	if err := store.Debit(ctx, "caller-1", 0); err == nil {
		t.Error("Debit(0) should fail")
	}
}

package usage

import (
	"testing"

	"github.com/torqueworks/torque/internal/config"
)

func testPricing() map[string]config.PricingEntry {
	return map[string]config.PricingEntry{
		"claude-sonnet-4-20250514": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
		"claude-haiku-3-5-20241022": {InputPerMillion: 0.8, OutputPerMillion: 4.0},
	}
}

func TestLedger_AccumulatesTurns(t *testing.T) {
	var l Ledger

	l.AddTurn(1000, 200)
	l.AddTurn(1500, 300)
	l.AddTurn(500, 800)

	if l.InputTokens() != 3000 {
		t.Errorf("InputTokens = %d, want 3000", l.InputTokens())
	}
	if l.OutputTokens() != 1300 {
		t.Errorf("OutputTokens = %d, want 1300", l.OutputTokens())
	}
	if l.ModelCalls() != 3 {
		t.Errorf("ModelCalls = %d, want 3", l.ModelCalls())
	}
}

func TestLedger_ZeroValue(t *testing.T) {
	var l Ledger
	if l.InputTokens() != 0 || l.OutputTokens() != 0 || l.ModelCalls() != 0 {
		t.Errorf("zero ledger = %d/%d/%d, want all zero",
			l.InputTokens(), l.OutputTokens(), l.ModelCalls())
	}
}

func TestComputeCostUSD(t *testing.T) {
	pricing := testPricing()

	got := ComputeCostUSD("claude-sonnet-4-20250514", 1_000_000, 1_000_000, pricing)
	if got != 18.0 {
		t.Errorf("cost = %f, want 18.0", got)
	}

	got = ComputeCostUSD("claude-sonnet-4-20250514", 1000, 500, pricing)
	want := 0.0105
	if got < want-1e-9 || got > want+1e-9 {
		t.Errorf("cost = %f, want %f", got, want)
	}
}

func TestComputeCostUSD_UnknownModelIsFree(t *testing.T) {
	if got := ComputeCostUSD("mystery-model", 1_000_000, 1_000_000, testPricing()); got != 0 {
		t.Errorf("cost = %f, want 0 for unknown model", got)
	}
}

func TestComputeCostCents_RoundsUp(t *testing.T) {
	pricing := testPricing()

	// 1000 input + 500 output on sonnet is $0.0105, which must round
	// up to 2 cents, never down to 1 or truncate to free.
	if got := ComputeCostCents("claude-sonnet-4-20250514", 1000, 500, pricing); got != 2 {
		t.Errorf("cents = %d, want 2", got)
	}

	// A tiny exchange still costs at least 1 cent.
	if got := ComputeCostCents("claude-haiku-3-5-20241022", 10, 5, pricing); got != 1 {
		t.Errorf("cents = %d, want 1", got)
	}

	// Exact whole-cent amounts do not round up further.
	if got := ComputeCostCents("claude-sonnet-4-20250514", 1_000_000, 1_000_000, pricing); got != 1800 {
		t.Errorf("cents = %d, want 1800", got)
	}

	// Zero usage is free.
	if got := ComputeCostCents("claude-sonnet-4-20250514", 0, 0, pricing); got != 0 {
		t.Errorf("cents = %d, want 0", got)
	}
}

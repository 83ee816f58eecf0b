// Package usage provides token accounting for exchanges: an in-memory
// per-exchange ledger, a fixed pricing table conversion, an append-only
// SQLite record store, and the caller balance store.
package usage

// Ledger accumulates token usage across every model call in one
// exchange, including the evidence enforcement pass. It is owned by a
// single exchange and needs no locking.
type Ledger struct {
	inputTokens  int
	outputTokens int
	modelCalls   int
}

// AddTurn records one model call's token usage.
func (l *Ledger) AddTurn(inputTokens, outputTokens int) {
	l.inputTokens += inputTokens
	l.outputTokens += outputTokens
	l.modelCalls++
}

// InputTokens returns the accumulated input token count.
func (l *Ledger) InputTokens() int { return l.inputTokens }

// OutputTokens returns the accumulated output token count.
func (l *Ledger) OutputTokens() int { return l.outputTokens }

// ModelCalls returns how many model calls have been recorded.
func (l *Ledger) ModelCalls() int { return l.modelCalls }

package usage

import (
	"math"

	"github.com/torqueworks/torque/internal/config"
)

// ComputeCostUSD calculates the USD cost for a model's token usage based
// on the pricing table. Models not in the table are treated as free.
func ComputeCostUSD(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) float64 {
	entry, ok := pricing[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens) / 1_000_000.0 * entry.InputPerMillion
	cost += float64(outputTokens) / 1_000_000.0 * entry.OutputPerMillion
	return cost
}

// ComputeCostCents converts the same calculation to whole cents, rounding
// up so fractional-cent exchanges are never free.
func ComputeCostCents(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) int64 {
	usd := ComputeCostUSD(model, inputTokens, outputTokens, pricing)
	return int64(math.Ceil(usd * 100))
}

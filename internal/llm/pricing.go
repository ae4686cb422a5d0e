package llm

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

type modelRate struct {
	input  decimal.Decimal // USD per 1M input tokens
	output decimal.Decimal // USD per 1M output tokens
}

// Pricing is the process-wide per-model rate table, resolved once at startup
// and injected into the client.
type Pricing struct {
	rates map[string]modelRate
}

var million = decimal.NewFromInt(1_000_000)

func DefaultPricing() *Pricing {
	return &Pricing{rates: map[string]modelRate{
		"claude-sonnet-4-20250514": {
			input:  decimal.NewFromFloat(3.00),
			output: decimal.NewFromFloat(15.00),
		},
		"claude-haiku-3-5-20250514": {
			input:  decimal.NewFromFloat(0.80),
			output: decimal.NewFromFloat(4.00),
		},
		"claude-3-haiku-20240307": {
			input:  decimal.NewFromFloat(0.25),
			output: decimal.NewFromFloat(1.25),
		},
	}}
}

// Cost prices a completed call. Unknown models price at zero with a warning;
// pricing fails open so an outdated table never blocks an interview.
func (p *Pricing) Cost(model string, inputTokens, outputTokens int) decimal.Decimal {
	rate, ok := p.rates[model]
	if !ok {
		slog.Warn("no pricing for model, costing at zero", "model", model)
		return decimal.Zero
	}
	inputCost := decimal.NewFromInt(int64(inputTokens)).Div(million).Mul(rate.input)
	outputCost := decimal.NewFromInt(int64(outputTokens)).Div(million).Mul(rate.output)
	return inputCost.Add(outputCost)
}

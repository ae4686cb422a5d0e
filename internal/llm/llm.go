// Package llm is the single choke-point for calls to the external model
// provider. A Provider executes exactly one attempt; Client layers the
// cross-cutting concerns on top: per-call timeout, retry with exponential
// backoff, the per-session cost ceiling and the model-call audit log.
package llm

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinari/interviewer/internal/domain"
)

type Request struct {
	Model       string
	System      string
	UserMessage string
	MaxTokens   int
	Temperature float64
	AgentTag    domain.AgentTag
	SessionID   uuid.UUID
}

type Completion struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CostUSD      decimal.Decimal
}

// CallLog is the slice of the session store the invoker reads cost from and
// audits through. Callers pass their transaction-scoped store so the audit
// row commits together with the rest of the turn.
type CallLog interface {
	InsertModelCall(ctx context.Context, c *domain.ModelCall) error
	SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
}

// Invoker is what the agents consume.
type Invoker interface {
	Complete(ctx context.Context, log CallLog, req Request) (*Completion, error)
}

// Provider executes a single provider attempt. No retries, no logging, no
// cost accounting.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*ProviderResult, error)
}

type ProviderResult struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AgentTag string

const (
	AgentFollowUp AgentTag = "follow_up"
	AgentSummary  AgentTag = "summary"
)

// ModelCall is the append-only audit record of one provider attempt that
// produced a response. It is the sole source of truth for per-session cost
// ceiling checks.
type ModelCall struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	AgentTag     AgentTag
	Model        string
	Provider     string
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	ResponseText string
	FinishReason string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CostUSD      decimal.Decimal
	CreatedAt    time.Time
}

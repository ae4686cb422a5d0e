package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinari/interviewer/internal/domain"
)

// Options are the injected invoker tunables. Zero values fall back to the
// defaults noted per field.
type Options struct {
	Timeout     time.Duration   // per-attempt deadline; default 30s
	MaxRetries  int             // attempts including the first; default 3
	CostCeiling decimal.Decimal // per-session spend ceiling in USD
	BackoffBase time.Duration   // backoff unit, 2^attempt multiples; default 1s
}

// Client is the resilient invoker: timeout, retry with exponential backoff,
// pre-call cost-ceiling enforcement and audit logging around one Provider.
type Client struct {
	provider Provider
	pricing  *Pricing
	opts     Options
}

var _ Invoker = (*Client)(nil)

func NewClient(provider Provider, pricing *Pricing, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	return &Client{provider: provider, pricing: pricing, opts: opts}
}

// Complete runs one provider completion with retries. The ceiling check and
// the audit write both go through log, so they share the caller's
// transaction and per-session serialization boundary.
func (c *Client) Complete(ctx context.Context, log CallLog, req Request) (*Completion, error) {
	spent, err := log.SessionCostUSD(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sum session cost: %w", err)
	}
	if spent.GreaterThanOrEqual(c.opts.CostCeiling) {
		slog.Warn("session cost ceiling reached, rejecting call",
			"session_id", req.SessionID, "spent_usd", spent, "ceiling_usd", c.opts.CostCeiling)
		return nil, domain.ErrCostLimitExceeded
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		res, err := c.provider.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			latencyMs := time.Since(start).Milliseconds()
			cost := c.pricing.Cost(req.Model, res.InputTokens, res.OutputTokens)
			if err := c.audit(ctx, log, req, res.Text, res.FinishReason,
				res.InputTokens, res.OutputTokens, latencyMs, cost); err != nil {
				return nil, err
			}
			slog.Info("model call completed",
				"model", req.Model, "agent", req.AgentTag, "session_id", req.SessionID,
				"input_tokens", res.InputTokens, "output_tokens", res.OutputTokens,
				"latency_ms", latencyMs, "cost_usd", cost, "attempts", attempt)
			return &Completion{
				Text:         res.Text,
				FinishReason: res.FinishReason,
				InputTokens:  res.InputTokens,
				OutputTokens: res.OutputTokens,
				LatencyMs:    latencyMs,
				CostUSD:      cost,
			}, nil
		}

		class := classify(err)
		if class == classFatal {
			if auditErr := c.auditFailure(ctx, log, req, err, time.Since(start).Milliseconds()); auditErr != nil {
				return nil, auditErr
			}
			return nil, err
		}

		lastErr = err
		if attempt < c.opts.MaxRetries {
			wait := backoffFor(attempt, class, c.opts.BackoffBase)
			slog.Warn("model call failed, retrying",
				"model", req.Model, "attempt", attempt, "wait", wait, "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	// Retries exhausted. If the final error carried a provider response,
	// record the attempt in the audit log before propagating.
	if auditErr := c.auditFailure(ctx, log, req, lastErr, time.Since(start).Milliseconds()); auditErr != nil {
		return nil, auditErr
	}
	slog.Error("model call failed after retries",
		"model", req.Model, "attempts", c.opts.MaxRetries, "error", lastErr)
	return nil, lastErr
}

func (c *Client) audit(ctx context.Context, log CallLog, req Request,
	responseText, finishReason string, inputTokens, outputTokens int,
	latencyMs int64, cost decimal.Decimal) error {

	call := &domain.ModelCall{
		ID:           uuid.New(),
		SessionID:    req.SessionID,
		AgentTag:     req.AgentTag,
		Model:        req.Model,
		Provider:     c.provider.Name(),
		Prompt:       req.UserMessage,
		SystemPrompt: req.System,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		ResponseText: responseText,
		FinishReason: finishReason,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		LatencyMs:    latencyMs,
		CostUSD:      cost,
		CreatedAt:    time.Now().UTC(),
	}
	if err := log.InsertModelCall(ctx, call); err != nil {
		return fmt.Errorf("audit model call: %w", err)
	}
	return nil
}

// auditFailure logs attempts that reached the provider and ended in a
// terminal failure. Transport timeouts never produced a response and leave
// no audit row.
func (c *Client) auditFailure(ctx context.Context, log CallLog, req Request, attemptErr error, latencyMs int64) error {
	var pe *ProviderError
	if !errors.As(attemptErr, &pe) {
		return nil
	}
	return c.audit(ctx, log, req, pe.Body, "error", 0, 0, latencyMs, decimal.Zero)
}

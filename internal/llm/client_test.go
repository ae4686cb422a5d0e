package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/config"
	"github.com/opinari/interviewer/internal/domain"
)

// scriptedProvider returns one scripted outcome per attempt, in order. The
// last outcome repeats once the script runs out.
type scriptedProvider struct {
	results []*ProviderResult
	errs    []error
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req Request) (*ProviderResult, error) {
	i := p.calls
	if i >= len(p.errs) {
		i = len(p.errs) - 1
	}
	p.calls++
	return p.results[i], p.errs[i]
}

type recordingLog struct {
	spent decimal.Decimal
	calls []*domain.ModelCall
}

func (l *recordingLog) InsertModelCall(ctx context.Context, c *domain.ModelCall) error {
	l.calls = append(l.calls, c)
	return nil
}

func (l *recordingLog) SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	return l.spent, nil
}

func testRequest() Request {
	return Request{
		Model:       "claude-sonnet-4-20250514",
		System:      "system",
		UserMessage: "hello",
		MaxTokens:   100,
		Temperature: 0.7,
		AgentTag:    domain.AgentFollowUp,
		SessionID:   uuid.New(),
	}
}

func fastOptions() Options {
	return Options{
		Timeout:     time.Second,
		MaxRetries:  3,
		CostCeiling: decimal.NewFromFloat(0.50),
		BackoffBase: time.Millisecond,
	}
}

func TestClientRetriesTimeoutsThenSucceeds(t *testing.T) {
	ok := &ProviderResult{Text: "done", FinishReason: "end_turn", InputTokens: 1000, OutputTokens: 500}
	provider := &scriptedProvider{
		results: []*ProviderResult{nil, nil, ok},
		errs:    []error{context.DeadlineExceeded, context.DeadlineExceeded, nil},
	}
	log := &recordingLog{}
	client := NewClient(provider, DefaultPricing(), fastOptions())

	completion, err := client.Complete(context.Background(), log, testRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, "done", completion.Text)

	// Two timed-out attempts produced no provider response; only the
	// successful attempt leaves an audit row.
	require.Len(t, log.calls, 1)
	call := log.calls[0]
	assert.Equal(t, "done", call.ResponseText)
	assert.Equal(t, 1000, call.InputTokens)
	assert.True(t, call.CostUSD.GreaterThan(decimal.Zero))
	assert.Equal(t, call.CostUSD, completion.CostUSD)
}

func TestClientFatalProviderErrorNoRetry(t *testing.T) {
	provider := &scriptedProvider{
		results: []*ProviderResult{nil},
		errs:    []error{&ProviderError{StatusCode: http.StatusBadRequest, Body: "bad request"}},
	}
	log := &recordingLog{}
	client := NewClient(provider, DefaultPricing(), fastOptions())

	_, err := client.Complete(context.Background(), log, testRequest())
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, 1, provider.calls)

	// Fatal replies still reached the provider and get an audit row.
	require.Len(t, log.calls, 1)
	assert.Equal(t, "error", log.calls[0].FinishReason)
	assert.True(t, log.calls[0].CostUSD.IsZero())
}

func TestClientExhaustsRetriesOnServerErrors(t *testing.T) {
	provider := &scriptedProvider{
		results: []*ProviderResult{nil},
		errs:    []error{&ProviderError{StatusCode: http.StatusInternalServerError, Body: "boom"}},
	}
	log := &recordingLog{}
	client := NewClient(provider, DefaultPricing(), fastOptions())

	_, err := client.Complete(context.Background(), log, testRequest())
	require.Error(t, err)
	assert.Equal(t, 3, provider.calls)
	require.Len(t, log.calls, 1)
	assert.Equal(t, "error", log.calls[0].FinishReason)
}

func TestClientExhaustsRetriesOnTimeoutsNoAuditRow(t *testing.T) {
	provider := &scriptedProvider{
		results: []*ProviderResult{nil},
		errs:    []error{context.DeadlineExceeded},
	}
	log := &recordingLog{}
	client := NewClient(provider, DefaultPricing(), fastOptions())

	_, err := client.Complete(context.Background(), log, testRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, provider.calls)
	assert.Empty(t, log.calls)
}

func TestClientRejectsCallAtCostCeiling(t *testing.T) {
	provider := &scriptedProvider{
		results: []*ProviderResult{{Text: "ok"}},
		errs:    []error{nil},
	}
	log := &recordingLog{spent: decimal.NewFromFloat(0.50)}
	client := NewClient(provider, DefaultPricing(), fastOptions())

	_, err := client.Complete(context.Background(), log, testRequest())
	require.ErrorIs(t, err, domain.ErrCostLimitExceeded)
	assert.Equal(t, 0, provider.calls, "ceiling check must run before any provider call")
	assert.Empty(t, log.calls)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failureClass
	}{
		{"rate limit", &ProviderError{StatusCode: http.StatusTooManyRequests}, classRateLimit},
		{"server error", &ProviderError{StatusCode: http.StatusBadGateway}, classServerError},
		{"client error", &ProviderError{StatusCode: http.StatusUnauthorized}, classFatal},
		{"deadline", context.DeadlineExceeded, classTimeout},
		{"cancel", context.Canceled, classFatal},
		{"unknown", errors.New("weird"), classFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestBackoffGrowthAndCaps(t *testing.T) {
	base := time.Second

	assert.Equal(t, 2*time.Second, backoffFor(1, classServerError, base))
	assert.Equal(t, 4*time.Second, backoffFor(2, classServerError, base))
	assert.Equal(t, 8*time.Second, backoffFor(3, classTimeout, base))

	// Transient failures cap at 30s, rate limits at 60s.
	assert.Equal(t, config.TransientBackoffCap, backoffFor(10, classServerError, base))
	assert.Equal(t, config.RateLimitBackoffCap, backoffFor(10, classRateLimit, base))
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/llm"
)

// stubInvoker returns a fixed completion or error and counts calls.
type stubInvoker struct {
	text  string
	err   error
	calls int
}

func (s *stubInvoker) Complete(ctx context.Context, log llm.CallLog, req llm.Request) (*llm.Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Completion{Text: s.text, FinishReason: "end_turn"}, nil
}

type nopLog struct{}

func (nopLog) InsertModelCall(ctx context.Context, c *domain.ModelCall) error { return nil }
func (nopLog) SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func testQuestion() *domain.Question {
	return &domain.Question{
		ID:   uuid.New(),
		Type: domain.QuestionFreeText,
		Text: "What matters most to you about this issue?",
	}
}

func TestDecideSkipsModelForNonAnswer(t *testing.T) {
	inv := &stubInvoker{}
	a := NewFollowupAgent(inv, 3)

	decision, err := a.Decide(context.Background(), nopLog{}, FollowupInput{
		SessionID: uuid.New(),
		Question:  testQuestion(),
		Answer:    "Prefer not to answer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionMoveOn, decision.Action)
	assert.Equal(t, domain.ConfidenceHigh, decision.Confidence)
	assert.Equal(t, 0, inv.calls)
}

func TestDecideSkipsModelAtProbeCeiling(t *testing.T) {
	inv := &stubInvoker{}
	a := NewFollowupAgent(inv, 3)

	decision, err := a.Decide(context.Background(), nopLog{}, FollowupInput{
		SessionID:  uuid.New(),
		Question:   testQuestion(),
		Answer:     "A detailed answer that would otherwise invite a probe.",
		ProbeCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionMoveOn, decision.Action)
	assert.Equal(t, "Maximum probes reached", decision.Reason)
	assert.Equal(t, 0, inv.calls)
}

func TestDecideParsesAskFollowup(t *testing.T) {
	inv := &stubInvoker{text: `{
		"action": "ask_followup",
		"followup_question": "What led you to that view?",
		"reason": "Answer lacks motivation",
		"confidence": "medium",
		"probe_count": 1
	}`}
	a := NewFollowupAgent(inv, 3)

	decision, err := a.Decide(context.Background(), nopLog{}, FollowupInput{
		SessionID: uuid.New(),
		Question:  testQuestion(),
		Answer:    "It just seems right.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAskFollowup, decision.Action)
	assert.Equal(t, "What led you to that view?", decision.FollowupQuestion)
	assert.Equal(t, domain.ConfidenceMedium, decision.Confidence)
	assert.Equal(t, 1, inv.calls)
}

func TestDecideDegradesOnInvokerFailure(t *testing.T) {
	inv := &stubInvoker{err: errors.New("provider down")}
	a := NewFollowupAgent(inv, 3)

	decision, err := a.Decide(context.Background(), nopLog{}, FollowupInput{
		SessionID: uuid.New(),
		Question:  testQuestion(),
		Answer:    "Something substantive.",
	})
	require.NoError(t, err, "transport failures are absorbed")
	assert.Equal(t, domain.ActionMoveOn, decision.Action)
	assert.Equal(t, domain.ConfidenceLow, decision.Confidence)
}

func TestDecideSurfacesCostLimit(t *testing.T) {
	inv := &stubInvoker{err: domain.ErrCostLimitExceeded}
	a := NewFollowupAgent(inv, 3)

	decision, err := a.Decide(context.Background(), nopLog{}, FollowupInput{
		SessionID: uuid.New(),
		Question:  testQuestion(),
		Answer:    "Something substantive.",
	})
	require.ErrorIs(t, err, domain.ErrCostLimitExceeded)
	assert.Equal(t, domain.ActionMoveOn, decision.Action, "decision stays usable")
}

func TestDecodeFollowupReply(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		action  domain.DecisionAction
	}{
		{
			name:   "move on",
			text:   `{"action":"move_on","followup_question":null,"reason":"done","confidence":"high","probe_count":0}`,
			action: domain.ActionMoveOn,
		},
		{
			name:   "fenced json",
			text:   "```json\n{\"action\":\"move_on\",\"reason\":\"done\",\"confidence\":\"high\"}\n```",
			action: domain.ActionMoveOn,
		},
		{
			name:    "ask without question",
			text:    `{"action":"ask_followup","followup_question":"","reason":"r","confidence":"low"}`,
			wantErr: true,
		},
		{
			name:    "unknown action",
			text:    `{"action":"escalate","reason":"r","confidence":"low"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			text:    "I think you should move on.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := decodeFollowupReply(tt.text, 0)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, decision.Action)
		})
	}
}

func TestDecodeNormalizesUnknownConfidence(t *testing.T) {
	decision, err := decodeFollowupReply(
		`{"action":"move_on","reason":"r","confidence":"certain"}`, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfidenceLow, decision.Confidence)
}

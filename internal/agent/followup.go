// Package agent holds the two model-backed decision agents: the follow-up
// policy and the running summarizer. Both degrade to safe defaults on any
// provider or decode failure; a broken model must never stall an interview.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opinari/interviewer/internal/config"
	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/llm"
)

type FollowupAgent struct {
	invoker   llm.Invoker
	maxProbes int
}

func NewFollowupAgent(invoker llm.Invoker, maxProbes int) *FollowupAgent {
	return &FollowupAgent{invoker: invoker, maxProbes: maxProbes}
}

type FollowupInput struct {
	SessionID          uuid.UUID
	Question           *domain.Question
	Answer             string
	SelectedOptionText string
	Thread             []Exchange
	ProbeCount         int
}

// Decide returns ask-followup or move-on for an answer. The returned
// decision is always usable; the error is informational and only ever
// domain.ErrCostLimitExceeded, surfaced so the caller can flag the session.
func (a *FollowupAgent) Decide(ctx context.Context, log llm.CallLog, in FollowupInput) (domain.FollowupDecision, error) {
	if strings.Contains(strings.ToLower(in.Answer), "prefer not to answer") {
		return domain.MoveOn("Respondent opted not to answer", domain.ConfidenceHigh, in.ProbeCount), nil
	}
	if in.ProbeCount >= a.maxProbes {
		return domain.MoveOn("Maximum probes reached", domain.ConfidenceMedium, in.ProbeCount), nil
	}

	prompt := renderFollowupPrompt(in.Question, in.Answer, in.SelectedOptionText,
		in.Thread, in.ProbeCount, a.maxProbes)

	completion, err := a.invoker.Complete(ctx, log, llm.Request{
		Model:       config.FollowupModel,
		System:      followupSystemPrompt,
		UserMessage: prompt,
		MaxTokens:   config.FollowupMaxTokens,
		Temperature: config.FollowupTemperature,
		AgentTag:    domain.AgentFollowUp,
		SessionID:   in.SessionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCostLimitExceeded) {
			return domain.MoveOn("Session cost limit reached", domain.ConfidenceLow, in.ProbeCount), err
		}
		slog.Error("follow-up policy call failed, moving on", "session_id", in.SessionID, "error", err)
		return domain.MoveOn("System temporarily unavailable", domain.ConfidenceLow, in.ProbeCount), nil
	}

	decision, err := decodeFollowupReply(completion.Text, in.ProbeCount)
	if err != nil {
		slog.Error("follow-up reply decode failed, moving on", "session_id", in.SessionID, "error", err)
		return domain.MoveOn("Model reply could not be parsed", domain.ConfidenceLow, in.ProbeCount), nil
	}

	slog.Info("follow-up decision",
		"session_id", in.SessionID, "action", decision.Action,
		"confidence", decision.Confidence, "probe_count", decision.ProbeCount)
	return decision, nil
}

type followupReply struct {
	Action           string  `json:"action"`
	FollowupQuestion *string `json:"followup_question"`
	Reason           string  `json:"reason"`
	Confidence       string  `json:"confidence"`
	ProbeCount       int     `json:"probe_count"`
}

// decodeFollowupReply maps the model's JSON onto the closed decision type.
// Anything non-conforming is an error; the caller substitutes the safe
// default.
func decodeFollowupReply(text string, probeCount int) (domain.FollowupDecision, error) {
	var reply followupReply
	if err := json.Unmarshal([]byte(stripFences(text)), &reply); err != nil {
		return domain.FollowupDecision{}, fmt.Errorf("decode follow-up reply: %w", err)
	}

	confidence := domain.Confidence(reply.Confidence)
	switch confidence {
	case domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
	default:
		confidence = domain.ConfidenceLow
	}

	switch domain.DecisionAction(reply.Action) {
	case domain.ActionMoveOn:
		return domain.FollowupDecision{
			Action:     domain.ActionMoveOn,
			Reason:     reply.Reason,
			Confidence: confidence,
			ProbeCount: probeCount,
		}, nil
	case domain.ActionAskFollowup:
		if reply.FollowupQuestion == nil || strings.TrimSpace(*reply.FollowupQuestion) == "" {
			return domain.FollowupDecision{}, fmt.Errorf("ask_followup reply without a question")
		}
		return domain.FollowupDecision{
			Action:           domain.ActionAskFollowup,
			FollowupQuestion: strings.TrimSpace(*reply.FollowupQuestion),
			Reason:           reply.Reason,
			Confidence:       confidence,
			ProbeCount:       reply.ProbeCount,
		}, nil
	default:
		return domain.FollowupDecision{}, fmt.Errorf("unknown action %q", reply.Action)
	}
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the instructions.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

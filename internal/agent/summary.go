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

type SummaryAgent struct {
	invoker llm.Invoker
}

func NewSummaryAgent(invoker llm.Invoker) *SummaryAgent {
	return &SummaryAgent{invoker: invoker}
}

type SummaryInput struct {
	SessionID         uuid.UUID
	CurrentSummary    string
	QuestionText      string
	Answer            string
	FollowupQuestions []string
	FollowupAnswers   []string
}

// Update folds the just-finished exchange into the running summary. On any
// failure it returns the prior summary unchanged with no themes; the error
// is informational and only ever domain.ErrCostLimitExceeded.
func (a *SummaryAgent) Update(ctx context.Context, log llm.CallLog, in SummaryInput) (domain.SummaryUpdate, error) {
	unchanged := domain.SummaryUpdate{Summary: in.CurrentSummary}

	prompt := renderSummaryPrompt(in.CurrentSummary, in.QuestionText, in.Answer,
		in.FollowupQuestions, in.FollowupAnswers)

	completion, err := a.invoker.Complete(ctx, log, llm.Request{
		Model:       config.SummaryModel,
		System:      summarySystemPrompt,
		UserMessage: prompt,
		MaxTokens:   config.SummaryMaxTokens,
		Temperature: config.SummaryTemperature,
		AgentTag:    domain.AgentSummary,
		SessionID:   in.SessionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCostLimitExceeded) {
			return unchanged, err
		}
		slog.Error("summary call failed, keeping previous summary", "session_id", in.SessionID, "error", err)
		return unchanged, nil
	}

	update, err := decodeSummaryReply(completion.Text)
	if err != nil {
		slog.Error("summary reply decode failed, keeping previous summary", "session_id", in.SessionID, "error", err)
		return unchanged, nil
	}

	slog.Info("summary updated", "session_id", in.SessionID, "themes", update.Themes)
	return update, nil
}

type summaryReply struct {
	Summary   string   `json:"summary"`
	KeyThemes []string `json:"key_themes"`
}

func decodeSummaryReply(text string) (domain.SummaryUpdate, error) {
	var reply summaryReply
	if err := json.Unmarshal([]byte(stripFences(text)), &reply); err != nil {
		return domain.SummaryUpdate{}, fmt.Errorf("decode summary reply: %w", err)
	}
	if strings.TrimSpace(reply.Summary) == "" {
		return domain.SummaryUpdate{}, fmt.Errorf("summary reply without text")
	}
	themes := reply.KeyThemes
	if len(themes) > config.MaxThemes {
		themes = themes[:config.MaxThemes]
	}
	return domain.SummaryUpdate{Summary: reply.Summary, Themes: themes}, nil
}

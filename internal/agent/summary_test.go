package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/domain"
)

func TestSummaryUpdateParsesReply(t *testing.T) {
	inv := &stubInvoker{text: `{"summary":"Respondent values affordability.","key_themes":["economic concerns","pragmatism"]}`}
	a := NewSummaryAgent(inv)

	update, err := a.Update(context.Background(), nopLog{}, SummaryInput{
		SessionID:      uuid.New(),
		CurrentSummary: domain.InitialSummaryText,
		QuestionText:   "What matters most?",
		Answer:         "Costs, mostly.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Respondent values affordability.", update.Summary)
	assert.Equal(t, []string{"economic concerns", "pragmatism"}, update.Themes)
}

func TestSummaryUpdateKeepsPriorOnFailure(t *testing.T) {
	inv := &stubInvoker{err: errors.New("provider down")}
	a := NewSummaryAgent(inv)

	update, err := a.Update(context.Background(), nopLog{}, SummaryInput{
		SessionID:      uuid.New(),
		CurrentSummary: "Existing summary.",
		QuestionText:   "Q",
		Answer:         "A",
	})
	require.NoError(t, err)
	assert.Equal(t, "Existing summary.", update.Summary)
	assert.Empty(t, update.Themes)
}

func TestSummaryUpdateKeepsPriorOnBadJSON(t *testing.T) {
	inv := &stubInvoker{text: "not even close to json"}
	a := NewSummaryAgent(inv)

	update, err := a.Update(context.Background(), nopLog{}, SummaryInput{
		SessionID:      uuid.New(),
		CurrentSummary: "Existing summary.",
		QuestionText:   "Q",
		Answer:         "A",
	})
	require.NoError(t, err)
	assert.Equal(t, "Existing summary.", update.Summary)
}

func TestSummaryUpdateSurfacesCostLimit(t *testing.T) {
	inv := &stubInvoker{err: domain.ErrCostLimitExceeded}
	a := NewSummaryAgent(inv)

	update, err := a.Update(context.Background(), nopLog{}, SummaryInput{
		SessionID:      uuid.New(),
		CurrentSummary: "Existing summary.",
	})
	require.ErrorIs(t, err, domain.ErrCostLimitExceeded)
	assert.Equal(t, "Existing summary.", update.Summary)
}

func TestDecodeSummaryReplyBoundsThemes(t *testing.T) {
	update, err := decodeSummaryReply(
		`{"summary":"s","key_themes":["a","b","c","d","e","f"]}`)
	require.NoError(t, err)
	assert.Len(t, update.Themes, 4)
}

func TestDecodeSummaryReplyRejectsEmptySummary(t *testing.T) {
	_, err := decodeSummaryReply(`{"summary":"  ","key_themes":[]}`)
	require.Error(t, err)
}

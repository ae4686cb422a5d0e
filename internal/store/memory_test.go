package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/domain"
)

func TestMemoryNextSequence(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	sessionID := uuid.New()

	seq, err := st.NextSequence(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.InsertMessage(ctx, &domain.Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			Kind:      domain.MessageUserAnswer,
			Sequence:  i,
		}))
	}

	seq, err = st.NextSequence(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, seq)

	n, err := st.CountMessages(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryMessagesByQuestionFilters(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	sessionID := uuid.New()
	q1, q2 := uuid.New(), uuid.New()

	for i, qid := range []uuid.UUID{q1, q2, q1} {
		id := qid
		require.NoError(t, st.InsertMessage(ctx, &domain.Message{
			ID:         uuid.New(),
			SessionID:  sessionID,
			QuestionID: &id,
			Sequence:   i + 1,
		}))
	}

	msgs, err := st.MessagesByQuestion(ctx, sessionID, q1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMemoryAbandonIdleSessions(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	now := time.Now().UTC()

	stale := &domain.InterviewSession{
		ID: uuid.New(), Status: domain.SessionActive,
		StartedAt: now.Add(-2 * time.Hour), LastActivityAt: now.Add(-time.Hour),
	}
	fresh := &domain.InterviewSession{
		ID: uuid.New(), Status: domain.SessionActive,
		StartedAt: now, LastActivityAt: now,
	}
	done := &domain.InterviewSession{
		ID: uuid.New(), Status: domain.SessionCompleted,
		StartedAt: now.Add(-2 * time.Hour), LastActivityAt: now.Add(-time.Hour),
	}
	for _, sess := range []*domain.InterviewSession{stale, fresh, done} {
		require.NoError(t, st.InsertSession(ctx, sess))
	}

	n, err := st.AbandonIdleSessions(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := st.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAbandoned, got.Status)

	got, err = st.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)

	got, err = st.GetSession(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status, "terminal sessions are untouched")
}

func TestMemorySessionCostSumsCalls(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	sessionID := uuid.New()

	total, err := st.SessionCostUSD(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	for _, cents := range []float64{0.012, 0.003} {
		require.NoError(t, st.InsertModelCall(ctx, &domain.ModelCall{
			ID:        uuid.New(),
			SessionID: sessionID,
			CostUSD:   decimal.NewFromFloat(cents),
		}))
	}

	total, err = st.SessionCostUSD(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromFloat(0.015)))
}

func TestMemoryGetMissingRowsReturnSentinels(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_, err := st.GetSession(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = st.GetSummary(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSummaryNotFound)

	_, err = st.GetQuestion(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	_, err = st.GetSurveyByName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSurveyNotFound)
}

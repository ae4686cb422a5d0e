package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/store"
)

func TestIngestCreatesVersionedSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewSurveyService(st)

	res, err := svc.Ingest(ctx, testDefinition())
	require.NoError(t, err)
	assert.Equal(t, 1, res.VersionNumber)
	assert.Equal(t, 3, res.Questions)

	questions, err := st.QuestionsByVersion(ctx, res.VersionID)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, domain.QuestionSingleChoice, questions[0].Type)
	assert.Len(t, questions[0].Options, 2)
	for i, q := range questions {
		assert.Equal(t, i, q.Position)
	}
}

func TestReingestDemotesPreviousVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewSurveyService(st)

	first, err := svc.Ingest(ctx, testDefinition())
	require.NoError(t, err)

	second, err := svc.Ingest(ctx, testDefinition())
	require.NoError(t, err)
	assert.Equal(t, first.SurveyID, second.SurveyID)
	assert.Equal(t, 2, second.VersionNumber)

	_, version, err := svc.CurrentVersion(ctx, "community-pulse")
	require.NoError(t, err)
	assert.Equal(t, second.VersionID, version.ID)

	// The demoted version keeps its questions for running sessions.
	questions, err := st.QuestionsByVersion(ctx, first.VersionID)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestIngestRejectsInvalidDefinitions(t *testing.T) {
	ctx := context.Background()
	svc := NewSurveyService(store.NewMemory())

	noName := testDefinition()
	noName.Survey.Name = ""
	_, err := svc.Ingest(ctx, noName)
	require.Error(t, err)

	noQuestions := testDefinition()
	noQuestions.Questions = nil
	_, err = svc.Ingest(ctx, noQuestions)
	require.ErrorIs(t, err, domain.ErrEmptySurvey)

	badType := testDefinition()
	badType.Questions[0].Type = "essay"
	_, err = svc.Ingest(ctx, badType)
	require.Error(t, err)
}

func TestCurrentVersionResolvesByNameAndID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewSurveyService(st)

	res, err := svc.Ingest(ctx, testDefinition())
	require.NoError(t, err)

	byName, _, err := svc.CurrentVersion(ctx, "community-pulse")
	require.NoError(t, err)
	assert.Equal(t, res.SurveyID, byName.ID)

	byID, _, err := svc.CurrentVersion(ctx, res.SurveyID.String())
	require.NoError(t, err)
	assert.Equal(t, res.SurveyID, byID.ID)

	_, _, err = svc.CurrentVersion(ctx, "no-such-survey")
	require.ErrorIs(t, err, domain.ErrSurveyNotFound)
}

// Package store is the durable session store: surveys and their versioned
// question sets, interview sessions, the append-only message transcript,
// running summaries and the model-call audit log.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinari/interviewer/internal/domain"
)

// Store is the storage contract the orchestrator and agents write through.
// All writes of one interview turn go through a single RunInTx closure so
// they commit as one atomic unit.
type Store interface {
	// RunInTx runs fn against a transaction-scoped Store. A nested call
	// reuses the enclosing transaction.
	RunInTx(ctx context.Context, fn func(Store) error) error

	// Survey catalog
	InsertSurvey(ctx context.Context, s *domain.Survey) error
	GetSurveyByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error)
	GetSurveyByName(ctx context.Context, name string) (*domain.Survey, error)
	InsertSurveyVersion(ctx context.Context, v *domain.SurveyVersion) error
	MaxVersionNumber(ctx context.Context, surveyID uuid.UUID) (int, error)
	DemoteOtherVersions(ctx context.Context, surveyID, keepID uuid.UUID) error
	GetCurrentVersion(ctx context.Context, surveyID uuid.UUID) (*domain.SurveyVersion, error)
	LockVersion(ctx context.Context, versionID uuid.UUID) error
	InsertQuestion(ctx context.Context, q *domain.Question) error
	InsertQuestionOption(ctx context.Context, o *domain.QuestionOption) error
	QuestionsByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*domain.Question, error)
	GetOption(ctx context.Context, id uuid.UUID) (*domain.QuestionOption, error)
	CountQuestions(ctx context.Context, versionID uuid.UUID) (int, error)

	// Sessions
	InsertSession(ctx context.Context, s *domain.InterviewSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*domain.InterviewSession, error)
	UpdateSession(ctx context.Context, s *domain.InterviewSession) error
	AbandonIdleSessions(ctx context.Context, idleSince time.Time) (int64, error)

	// Messages (append-only)
	NextSequence(ctx context.Context, sessionID uuid.UUID) (int, error)
	InsertMessage(ctx context.Context, m *domain.Message) error
	MessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error)
	MessagesByQuestion(ctx context.Context, sessionID, questionID uuid.UUID) ([]domain.Message, error)
	CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error)

	// Summaries
	InsertSummary(ctx context.Context, s *domain.SessionSummary) error
	GetSummary(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error)
	UpdateSummary(ctx context.Context, s *domain.SessionSummary) error

	// Model call audit log (append-only)
	InsertModelCall(ctx context.Context, c *domain.ModelCall) error
	ModelCallsBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.ModelCall, error)
	SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
}

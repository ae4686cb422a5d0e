package domain

import (
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionFreeText       QuestionType = "free_text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
)

type Survey struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SurveyVersion is an immutable snapshot of a survey's question set. Exactly
// one version per survey is current; a version locks once any session starts
// against it.
type SurveyVersion struct {
	ID            uuid.UUID
	SurveyID      uuid.UUID
	VersionNumber int
	IsCurrent     bool
	IsLocked      bool
	CreatedAt     time.Time
}

type Question struct {
	ID              uuid.UUID
	SurveyVersionID uuid.UUID
	Type            QuestionType
	Text            string
	Position        int
	Required        bool
	AllowsNonAnswer bool
	Options         []QuestionOption
	CreatedAt       time.Time
}

func (q *Question) HasOptions() bool {
	return q.Type == QuestionSingleChoice || q.Type == QuestionMultipleChoice
}

type QuestionOption struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	Position   int
	Score      *int
	CreatedAt  time.Time
}

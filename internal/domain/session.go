package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// InterviewSession holds all session-scoped control state: the current
// question pointer, the probe counter for that question and the
// follow-up-pending flag. Completed and abandoned are terminal.
type InterviewSession struct {
	ID                uuid.UUID
	SurveyVersionID   uuid.UUID
	RespondentToken   string
	Status            SessionStatus
	CurrentQuestionID *uuid.UUID
	CurrentPosition   int
	ProbeCount        int
	FollowUpPending   bool
	StartedAt         time.Time
	CompletedAt       *time.Time
	LastActivityAt    time.Time
}

func (s *InterviewSession) IsTerminal() bool {
	return s.Status != SessionActive
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageSurveyQuestion    MessageKind = "survey_question"
	MessageUserAnswer        MessageKind = "user_answer"
	MessageFollowUpQuestion  MessageKind = "follow_up_question"
	MessageFollowUpAnswer    MessageKind = "follow_up_answer"
	MessageSystem            MessageKind = "system_message"
	MessagePreferNotToAnswer MessageKind = "prefer_not_to_answer"
)

// Message is an append-only transcript entry. Sequence numbers per session
// start at 1 and are strictly increasing with no gaps; rows are never
// mutated or deleted. ParentMessageID threads follow-ups under the answer
// that triggered them.
type Message struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	Kind             MessageKind
	QuestionID       *uuid.UUID
	Text             string
	SelectedOptionID *uuid.UUID
	IsFollowUp       bool
	ParentMessageID  *uuid.UUID
	FollowupReason   string
	Sequence         int
	CreatedAt        time.Time
}

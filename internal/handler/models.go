package handler

import (
	"github.com/google/uuid"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/service"
)

type startSessionRequest struct {
	Survey          string `json:"survey"`
	RespondentToken string `json:"respondent_token"`
}

type questionPayload struct {
	ID              uuid.UUID       `json:"id"`
	Type            string          `json:"type"`
	Text            string          `json:"text"`
	Position        int             `json:"position"`
	AllowsNonAnswer bool            `json:"allows_non_answer"`
	Options         []optionPayload `json:"options,omitempty"`
}

type optionPayload struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
}

type startSessionResponse struct {
	SessionID      uuid.UUID        `json:"session_id"`
	SurveyName     string           `json:"survey_name"`
	TotalQuestions int              `json:"total_questions"`
	Question       *questionPayload `json:"question"`
}

type answerRequest struct {
	Kind             string     `json:"kind"`
	QuestionID       *uuid.UUID `json:"question_id,omitempty"`
	Text             string     `json:"text,omitempty"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id,omitempty"`
	ParentMessageID  *uuid.UUID `json:"parent_message_id,omitempty"`
}

type progressPayload struct {
	CurrentPosition int  `json:"current_position"`
	TotalQuestions  int  `json:"total_questions"`
	FollowUpPending bool `json:"follow_up_pending"`
}

type answerResponse struct {
	Reply        string           `json:"reply"`
	Question     *questionPayload `json:"question,omitempty"`
	FollowupText string           `json:"followup_text,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	CostLimited  bool             `json:"cost_limited,omitempty"`
	Progress     progressPayload  `json:"progress"`
}

type endSessionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type endSessionResponse struct {
	Status            string `json:"status"`
	Summary           string `json:"summary"`
	QuestionsAnswered int    `json:"questions_answered"`
	TotalQuestions    int    `json:"total_questions"`
	DurationSeconds   int    `json:"duration_seconds"`
}

type ingestSurveyResponse struct {
	SurveyID      uuid.UUID `json:"survey_id"`
	VersionID     uuid.UUID `json:"version_id"`
	VersionNumber int       `json:"version_number"`
	Questions     int       `json:"questions"`
}

func toQuestionPayload(q *domain.Question) *questionPayload {
	if q == nil {
		return nil
	}
	p := &questionPayload{
		ID:              q.ID,
		Type:            string(q.Type),
		Text:            q.Text,
		Position:        q.Position,
		AllowsNonAnswer: q.AllowsNonAnswer,
	}
	for _, o := range q.Options {
		p.Options = append(p.Options, optionPayload{ID: o.ID, Text: o.Text, Position: o.Position})
	}
	return p
}

func toProgressPayload(p service.Progress) progressPayload {
	return progressPayload{
		CurrentPosition: p.CurrentPosition,
		TotalQuestions:  p.TotalQuestions,
		FollowUpPending: p.FollowUpPending,
	}
}

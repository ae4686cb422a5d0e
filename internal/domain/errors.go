package domain

import "errors"

var (
	ErrSurveyNotFound    = errors.New("survey not found")
	ErrNoCurrentVersion  = errors.New("survey has no current version")
	ErrEmptySurvey       = errors.New("survey version has no questions")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrOptionNotFound    = errors.New("question option not found")
	ErrNoFollowUpPending = errors.New("no follow-up pending for session")
	ErrInvalidAnswerKind = errors.New("invalid answer kind")
	ErrSummaryNotFound   = errors.New("session summary not found")
	ErrCostLimitExceeded = errors.New("session cost limit exceeded")
)

// Package service holds the interview session state machine and the survey
// catalog. The state machine is the only component with session-scoped
// control state; everything it writes in one turn commits atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opinari/interviewer/internal/agent"
	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/store"
)

type AnswerKind string

const (
	AnswerPrimary           AnswerKind = "answer"
	AnswerFollowUp          AnswerKind = "follow_up_answer"
	AnswerPreferNotToAnswer AnswerKind = "prefer_not_to_answer"
)

// Reply types returned to the caller after a turn.
const (
	ReplyFollowUpQuestion = "follow_up_question"
	ReplySurveyQuestion   = "survey_question"
	ReplyCompleted        = "completed"
)

type InterviewService struct {
	store       store.Store
	catalog     *SurveyService
	followup    *agent.FollowupAgent
	summary     *agent.SummaryAgent
	maxProbes   int
	idleTimeout time.Duration
	locks       *sessionLocks
}

func NewInterviewService(st store.Store, catalog *SurveyService,
	followup *agent.FollowupAgent, summary *agent.SummaryAgent,
	maxProbes int, idleTimeout time.Duration) *InterviewService {

	return &InterviewService{
		store:       st,
		catalog:     catalog,
		followup:    followup,
		summary:     summary,
		maxProbes:   maxProbes,
		idleTimeout: idleTimeout,
		locks:       newSessionLocks(),
	}
}

type StartResult struct {
	SessionID      uuid.UUID
	SurveyName     string
	TotalQuestions int
	FirstQuestion  *domain.Question
}

type SubmitInput struct {
	SessionID        uuid.UUID
	Kind             AnswerKind
	QuestionID       *uuid.UUID
	Text             string
	SelectedOptionID *uuid.UUID
	ParentMessageID  *uuid.UUID
}

type Progress struct {
	CurrentPosition int
	TotalQuestions  int
	FollowUpPending bool
}

type SubmitResult struct {
	Reply        string
	Question     *domain.Question // next baseline question, for ReplySurveyQuestion
	FollowupText string           // for ReplyFollowUpQuestion
	Reason       string
	CostLimited  bool // the session hit its provider spend ceiling this turn
	Progress     Progress
}

type EndResult struct {
	Status            domain.SessionStatus
	SummaryText       string
	QuestionsAnswered int
	TotalQuestions    int
	DurationSeconds   int
}

// Start creates a session against the survey's current version, locking the
// version on first use.
func (s *InterviewService) Start(ctx context.Context, surveyRef, respondentToken string) (*StartResult, error) {
	survey, version, err := s.catalog.CurrentVersion(ctx, surveyRef)
	if err != nil {
		return nil, err
	}

	var out *StartResult
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		questions, err := tx.QuestionsByVersion(ctx, version.ID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return domain.ErrEmptySurvey
		}

		now := time.Now().UTC()
		sess := &domain.InterviewSession{
			ID:                uuid.New(),
			SurveyVersionID:   version.ID,
			RespondentToken:   respondentToken,
			Status:            domain.SessionActive,
			CurrentQuestionID: &questions[0].ID,
			StartedAt:         now,
			LastActivityAt:    now,
		}
		if err := tx.InsertSession(ctx, sess); err != nil {
			return err
		}

		if err := tx.InsertSummary(ctx, &domain.SessionSummary{
			ID:        uuid.New(),
			SessionID: sess.ID,
			Text:      domain.InitialSummaryText,
			Themes:    []string{},
			UpdatedAt: now,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if !version.IsLocked {
			if err := tx.LockVersion(ctx, version.ID); err != nil {
				return err
			}
		}

		out = &StartResult{
			SessionID:      sess.ID,
			SurveyName:     survey.Name,
			TotalQuestions: len(questions),
			FirstQuestion:  &questions[0],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("session started",
		"session_id", out.SessionID, "survey", survey.Name, "questions", out.TotalQuestions)
	return out, nil
}

// Submit processes one inbound answer: records it, consults the follow-up
// policy, and either emits a probe or summarizes and advances. Turns for the
// same session are serialized; the whole turn commits as one transaction.
func (s *InterviewService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	release := s.locks.acquire(in.SessionID)
	defer release()

	var out *SubmitResult
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		sess, err := tx.GetSession(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if sess.IsTerminal() {
			return domain.ErrSessionNotActive
		}

		switch in.Kind {
		case AnswerPreferNotToAnswer:
			out, err = s.handleNonAnswer(ctx, tx, sess)
		case AnswerFollowUp:
			out, err = s.handleFollowupAnswer(ctx, tx, sess, in)
		case AnswerPrimary:
			out, err = s.handlePrimaryAnswer(ctx, tx, sess, in)
		default:
			return fmt.Errorf("%w: %q", domain.ErrInvalidAnswerKind, in.Kind)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// handleNonAnswer records the opt-out and advances directly: no policy
// consultation and no summary update for this question.
func (s *InterviewService) handleNonAnswer(ctx context.Context, tx store.Store, sess *domain.InterviewSession) (*SubmitResult, error) {
	if sess.CurrentQuestionID == nil {
		return nil, domain.ErrQuestionNotFound
	}
	question, err := tx.GetQuestion(ctx, *sess.CurrentQuestionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(ctx, tx, sess, &domain.Message{
		Kind:       domain.MessagePreferNotToAnswer,
		QuestionID: &question.ID,
		Text:       "Prefer not to answer",
	}); err != nil {
		return nil, err
	}

	return s.advance(ctx, tx, sess, question, true, false)
}

func (s *InterviewService) handleFollowupAnswer(ctx context.Context, tx store.Store, sess *domain.InterviewSession, in SubmitInput) (*SubmitResult, error) {
	if !sess.FollowUpPending {
		return nil, domain.ErrNoFollowUpPending
	}
	if sess.CurrentQuestionID == nil {
		return nil, domain.ErrQuestionNotFound
	}
	question, err := tx.GetQuestion(ctx, *sess.CurrentQuestionID)
	if err != nil {
		return nil, err
	}

	parentID := in.ParentMessageID
	if parentID == nil {
		parentID, err = s.lastFollowupQuestionID(ctx, tx, sess.ID, question.ID)
		if err != nil {
			return nil, err
		}
	}

	answerMsg, err := s.appendMessage(ctx, tx, sess, &domain.Message{
		Kind:            domain.MessageFollowUpAnswer,
		QuestionID:      &question.ID,
		Text:            in.Text,
		IsFollowUp:      true,
		ParentMessageID: parentID,
	})
	if err != nil {
		return nil, err
	}

	thread, err := s.buildThread(ctx, tx, sess.ID, question.ID)
	if err != nil {
		return nil, err
	}

	decision, decideErr := s.followup.Decide(ctx, tx, agent.FollowupInput{
		SessionID:  sess.ID,
		Question:   question,
		Answer:     in.Text,
		Thread:     thread,
		ProbeCount: sess.ProbeCount,
	})
	costLimited := errors.Is(decideErr, domain.ErrCostLimitExceeded)

	if decision.Action == domain.ActionAskFollowup && sess.ProbeCount < s.maxProbes {
		return s.askFollowup(ctx, tx, sess, question, answerMsg, decision, costLimited)
	}
	return s.advance(ctx, tx, sess, question, false, costLimited)
}

func (s *InterviewService) handlePrimaryAnswer(ctx context.Context, tx store.Store, sess *domain.InterviewSession, in SubmitInput) (*SubmitResult, error) {
	questionID := sess.CurrentQuestionID
	if in.QuestionID != nil {
		questionID = in.QuestionID
	}
	if questionID == nil {
		return nil, domain.ErrQuestionNotFound
	}
	question, err := tx.GetQuestion(ctx, *questionID)
	if err != nil {
		return nil, err
	}
	if question.SurveyVersionID != sess.SurveyVersionID {
		return nil, domain.ErrQuestionNotFound
	}

	answerText := in.Text
	optionText := ""
	if in.SelectedOptionID != nil {
		option, err := tx.GetOption(ctx, *in.SelectedOptionID)
		if err != nil {
			return nil, err
		}
		if option.QuestionID != question.ID {
			return nil, domain.ErrOptionNotFound
		}
		optionText = option.Text
		answerText = option.Text
	}

	answerMsg, err := s.appendMessage(ctx, tx, sess, &domain.Message{
		Kind:             domain.MessageUserAnswer,
		QuestionID:       &question.ID,
		Text:             answerText,
		SelectedOptionID: in.SelectedOptionID,
	})
	if err != nil {
		return nil, err
	}

	thread, err := s.buildThread(ctx, tx, sess.ID, question.ID)
	if err != nil {
		return nil, err
	}

	decision, decideErr := s.followup.Decide(ctx, tx, agent.FollowupInput{
		SessionID:          sess.ID,
		Question:           question,
		Answer:             answerText,
		SelectedOptionText: optionText,
		Thread:             thread,
		ProbeCount:         sess.ProbeCount,
	})
	costLimited := errors.Is(decideErr, domain.ErrCostLimitExceeded)

	if decision.Action == domain.ActionAskFollowup && sess.ProbeCount < s.maxProbes {
		return s.askFollowup(ctx, tx, sess, question, answerMsg, decision, costLimited)
	}
	return s.advance(ctx, tx, sess, question, false, costLimited)
}

// askFollowup records the probe and holds the position; the next inbound
// answer must be a follow-up answer.
func (s *InterviewService) askFollowup(ctx context.Context, tx store.Store, sess *domain.InterviewSession,
	question *domain.Question, answerMsg *domain.Message, decision domain.FollowupDecision, costLimited bool) (*SubmitResult, error) {

	if _, err := s.appendMessage(ctx, tx, sess, &domain.Message{
		Kind:            domain.MessageFollowUpQuestion,
		QuestionID:      &question.ID,
		Text:            decision.FollowupQuestion,
		IsFollowUp:      true,
		ParentMessageID: &answerMsg.ID,
		FollowupReason:  decision.Reason,
	}); err != nil {
		return nil, err
	}

	sess.ProbeCount++
	sess.FollowUpPending = true
	sess.LastActivityAt = time.Now().UTC()
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	total, err := tx.CountQuestions(ctx, sess.SurveyVersionID)
	if err != nil {
		return nil, err
	}

	slog.Info("follow-up asked",
		"session_id", sess.ID, "question_id", question.ID, "probe", sess.ProbeCount)

	return &SubmitResult{
		Reply:        ReplyFollowUpQuestion,
		FollowupText: decision.FollowupQuestion,
		Reason:       decision.Reason,
		CostLimited:  costLimited,
		Progress:     s.progress(sess, total),
	}, nil
}

// advance closes out the current question: updates the running summary
// (unless skipped for a non-answer), resets probe state, and moves to the
// next question or completes the session.
func (s *InterviewService) advance(ctx context.Context, tx store.Store, sess *domain.InterviewSession,
	question *domain.Question, skipSummary, costLimited bool) (*SubmitResult, error) {

	if !skipSummary {
		cl, err := s.updateSummary(ctx, tx, sess, question)
		if err != nil {
			return nil, err
		}
		costLimited = costLimited || cl
	}

	questions, err := tx.QuestionsByVersion(ctx, sess.SurveyVersionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess.ProbeCount = 0
	sess.FollowUpPending = false
	sess.LastActivityAt = now

	next := sess.CurrentPosition + 1
	if next >= len(questions) {
		sess.Status = domain.SessionCompleted
		sess.CompletedAt = &now
		sess.CurrentPosition = next
		sess.CurrentQuestionID = nil
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return nil, err
		}
		slog.Info("session completed", "session_id", sess.ID)
		return &SubmitResult{
			Reply:       ReplyCompleted,
			CostLimited: costLimited,
			Progress:    s.progress(sess, len(questions)),
		}, nil
	}

	nextQuestion := questions[next]
	sess.CurrentPosition = next
	sess.CurrentQuestionID = &nextQuestion.ID
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Reply:       ReplySurveyQuestion,
		Question:    &nextQuestion,
		CostLimited: costLimited,
		Progress:    s.progress(sess, len(questions)),
	}, nil
}

func (s *InterviewService) updateSummary(ctx context.Context, tx store.Store, sess *domain.InterviewSession, question *domain.Question) (bool, error) {
	summary, err := tx.GetSummary(ctx, sess.ID)
	if err != nil {
		return false, err
	}

	msgs, err := tx.MessagesByQuestion(ctx, sess.ID, question.ID)
	if err != nil {
		return false, err
	}

	var answer string
	var followupQuestions, followupAnswers []string
	for _, m := range msgs {
		switch m.Kind {
		case domain.MessageUserAnswer:
			answer = m.Text
		case domain.MessageFollowUpQuestion:
			followupQuestions = append(followupQuestions, m.Text)
		case domain.MessageFollowUpAnswer:
			followupAnswers = append(followupAnswers, m.Text)
		}
	}

	update, updateErr := s.summary.Update(ctx, tx, agent.SummaryInput{
		SessionID:         sess.ID,
		CurrentSummary:    summary.Text,
		QuestionText:      question.Text,
		Answer:            answer,
		FollowupQuestions: followupQuestions,
		FollowupAnswers:   followupAnswers,
	})
	costLimited := errors.Is(updateErr, domain.ErrCostLimitExceeded)

	reflected, err := tx.CountMessages(ctx, sess.ID)
	if err != nil {
		return false, err
	}

	summary.Text = update.Summary
	summary.Themes = update.Themes
	summary.MessageCount = reflected
	summary.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateSummary(ctx, summary); err != nil {
		return false, err
	}
	return costLimited, nil
}

// End forces completion from any non-terminal state, including while a
// follow-up is pending. Idempotent: an already-ended session returns the
// same payload without rewriting its completion time.
func (s *InterviewService) End(ctx context.Context, sessionID uuid.UUID, reason string) (*EndResult, error) {
	release := s.locks.acquire(sessionID)
	defer release()

	var out *EndResult
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		if !sess.IsTerminal() {
			now := time.Now().UTC()
			sess.Status = domain.SessionCompleted
			sess.CompletedAt = &now
			sess.FollowUpPending = false
			sess.LastActivityAt = now
			if err := tx.UpdateSession(ctx, sess); err != nil {
				return err
			}
			slog.Info("session ended", "session_id", sess.ID, "reason", reason)
		}

		summaryText := ""
		summary, err := tx.GetSummary(ctx, sess.ID)
		if err == nil {
			summaryText = summary.Text
		} else if !errors.Is(err, domain.ErrSummaryNotFound) {
			return err
		}

		total, err := tx.CountQuestions(ctx, sess.SurveyVersionID)
		if err != nil {
			return err
		}

		endedAt := sess.LastActivityAt
		if sess.CompletedAt != nil {
			endedAt = *sess.CompletedAt
		}

		answered := sess.CurrentPosition
		if answered > total {
			answered = total
		}

		out = &EndResult{
			Status:            sess.Status,
			SummaryText:       summaryText,
			QuestionsAnswered: answered,
			TotalQuestions:    total,
			DurationSeconds:   int(endedAt.Sub(sess.StartedAt).Seconds()),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AbandonIdle marks active sessions idle past the configured timeout as
// abandoned. Called from the background sweep.
func (s *InterviewService) AbandonIdle(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.idleTimeout)
	n, err := s.store.AbandonIdleSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("idle sessions abandoned", "count", n)
	}
	return n, nil
}

func (s *InterviewService) appendMessage(ctx context.Context, tx store.Store, sess *domain.InterviewSession, m *domain.Message) (*domain.Message, error) {
	seq, err := tx.NextSequence(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	m.ID = uuid.New()
	m.SessionID = sess.ID
	m.Sequence = seq
	m.CreatedAt = time.Now().UTC()
	if err := tx.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// buildThread derives the per-question follow-up exchange from the flat
// message log; the log stays the single source of truth.
func (s *InterviewService) buildThread(ctx context.Context, tx store.Store, sessionID, questionID uuid.UUID) ([]agent.Exchange, error) {
	msgs, err := tx.MessagesByQuestion(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}

	var thread []agent.Exchange
	pendingQuestion := ""
	for _, m := range msgs {
		if !m.IsFollowUp {
			continue
		}
		switch m.Kind {
		case domain.MessageFollowUpQuestion:
			pendingQuestion = m.Text
		case domain.MessageFollowUpAnswer:
			if pendingQuestion != "" {
				thread = append(thread, agent.Exchange{Question: pendingQuestion, Answer: m.Text})
				pendingQuestion = ""
			}
		}
	}
	return thread, nil
}

func (s *InterviewService) lastFollowupQuestionID(ctx context.Context, tx store.Store, sessionID, questionID uuid.UUID) (*uuid.UUID, error) {
	msgs, err := tx.MessagesByQuestion(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == domain.MessageFollowUpQuestion {
			id := msgs[i].ID
			return &id, nil
		}
	}
	return nil, nil
}

func (s *InterviewService) progress(sess *domain.InterviewSession, total int) Progress {
	position := sess.CurrentPosition + 1
	if position > total {
		position = total
	}
	return Progress{
		CurrentPosition: position,
		TotalQuestions:  total,
		FollowUpPending: sess.FollowUpPending,
	}
}

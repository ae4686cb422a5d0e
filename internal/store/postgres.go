package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/opinari/interviewer/internal/domain"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Store over a pgx pool. A transaction-scoped copy is
// produced by RunInTx.
type Postgres struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) q() querier {
	if p.tx != nil {
		return p.tx
	}
	return p.pool
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(Store) error) error {
	if p.tx != nil {
		return fn(p)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &Postgres{pool: p.pool, tx: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Survey catalog

func (p *Postgres) InsertSurvey(ctx context.Context, s *domain.Survey) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO surveys (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		s.ID, s.Name, s.Description, s.IsActive, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (p *Postgres) GetSurveyByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error) {
	return p.scanSurvey(p.q().QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM surveys WHERE id = $1`, id))
}

func (p *Postgres) GetSurveyByName(ctx context.Context, name string) (*domain.Survey, error) {
	return p.scanSurvey(p.q().QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM surveys WHERE name = $1`, name))
}

func (p *Postgres) scanSurvey(row pgx.Row) (*domain.Survey, error) {
	var s domain.Survey
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return &s, nil
}

func (p *Postgres) InsertSurveyVersion(ctx context.Context, v *domain.SurveyVersion) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO survey_versions (id, survey_id, version_number, is_current, is_locked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.SurveyID, v.VersionNumber, v.IsCurrent, v.IsLocked, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert survey version: %w", err)
	}
	return nil
}

func (p *Postgres) MaxVersionNumber(ctx context.Context, surveyID uuid.UUID) (int, error) {
	var n int
	err := p.q().QueryRow(ctx, `
		SELECT COALESCE(MAX(version_number), 0) FROM survey_versions WHERE survey_id = $1`,
		surveyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return n, nil
}

func (p *Postgres) DemoteOtherVersions(ctx context.Context, surveyID, keepID uuid.UUID) error {
	_, err := p.q().Exec(ctx, `
		UPDATE survey_versions SET is_current = FALSE WHERE survey_id = $1 AND id <> $2`,
		surveyID, keepID)
	if err != nil {
		return fmt.Errorf("demote versions: %w", err)
	}
	return nil
}

func (p *Postgres) GetCurrentVersion(ctx context.Context, surveyID uuid.UUID) (*domain.SurveyVersion, error) {
	var v domain.SurveyVersion
	err := p.q().QueryRow(ctx, `
		SELECT id, survey_id, version_number, is_current, is_locked, created_at
		FROM survey_versions WHERE survey_id = $1 AND is_current`, surveyID).
		Scan(&v.ID, &v.SurveyID, &v.VersionNumber, &v.IsCurrent, &v.IsLocked, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoCurrentVersion
	}
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}
	return &v, nil
}

func (p *Postgres) LockVersion(ctx context.Context, versionID uuid.UUID) error {
	_, err := p.q().Exec(ctx, `
		UPDATE survey_versions SET is_locked = TRUE WHERE id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("lock version: %w", err)
	}
	return nil
}

func (p *Postgres) InsertQuestion(ctx context.Context, q *domain.Question) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO questions (id, survey_version_id, question_type, question_text,
			position, is_required, allow_prefer_not_to_answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.SurveyVersionID, q.Type, q.Text, q.Position, q.Required,
		q.AllowsNonAnswer, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (p *Postgres) InsertQuestionOption(ctx context.Context, o *domain.QuestionOption) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO question_options (id, question_id, option_text, position, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.QuestionID, o.Text, o.Position, o.Score, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question option: %w", err)
	}
	return nil
}

func (p *Postgres) QuestionsByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error) {
	rows, err := p.q().Query(ctx, `
		SELECT id, survey_version_id, question_type, question_text, position,
			is_required, allow_prefer_not_to_answer, created_at
		FROM questions WHERE survey_version_id = $1 ORDER BY position`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	byID := map[uuid.UUID]int{}
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.SurveyVersionID, &q.Type, &q.Text, &q.Position,
			&q.Required, &q.AllowsNonAnswer, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		byID[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	optRows, err := p.q().Query(ctx, `
		SELECT o.id, o.question_id, o.option_text, o.position, o.score, o.created_at
		FROM question_options o
		JOIN questions q ON q.id = o.question_id
		WHERE q.survey_version_id = $1
		ORDER BY o.question_id, o.position`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list question options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o domain.QuestionOption
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Position, &o.Score, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question option: %w", err)
		}
		if i, ok := byID[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("list question options: %w", err)
	}

	return questions, nil
}

func (p *Postgres) GetQuestion(ctx context.Context, id uuid.UUID) (*domain.Question, error) {
	var q domain.Question
	err := p.q().QueryRow(ctx, `
		SELECT id, survey_version_id, question_type, question_text, position,
			is_required, allow_prefer_not_to_answer, created_at
		FROM questions WHERE id = $1`, id).
		Scan(&q.ID, &q.SurveyVersionID, &q.Type, &q.Text, &q.Position,
			&q.Required, &q.AllowsNonAnswer, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}

	rows, err := p.q().Query(ctx, `
		SELECT id, question_id, option_text, position, score, created_at
		FROM question_options WHERE question_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list question options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o domain.QuestionOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Position, &o.Score, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question option: %w", err)
		}
		q.Options = append(q.Options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list question options: %w", err)
	}

	return &q, nil
}

func (p *Postgres) GetOption(ctx context.Context, id uuid.UUID) (*domain.QuestionOption, error) {
	var o domain.QuestionOption
	err := p.q().QueryRow(ctx, `
		SELECT id, question_id, option_text, position, score, created_at
		FROM question_options WHERE id = $1`, id).
		Scan(&o.ID, &o.QuestionID, &o.Text, &o.Position, &o.Score, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get option: %w", err)
	}
	return &o, nil
}

func (p *Postgres) CountQuestions(ctx context.Context, versionID uuid.UUID) (int, error) {
	var n int
	err := p.q().QueryRow(ctx, `
		SELECT COUNT(*) FROM questions WHERE survey_version_id = $1`, versionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// Sessions

func (p *Postgres) InsertSession(ctx context.Context, s *domain.InterviewSession) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO sessions (id, survey_version_id, respondent_token, status,
			current_question_id, current_question_position, current_probe_count,
			is_follow_up_pending, started_at, completed_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.SurveyVersionID, s.RespondentToken, s.Status, nullableUUID(s.CurrentQuestionID),
		s.CurrentPosition, s.ProbeCount, s.FollowUpPending, s.StartedAt, s.CompletedAt,
		s.LastActivityAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*domain.InterviewSession, error) {
	var s domain.InterviewSession
	var currentQuestion uuid.NullUUID
	err := p.q().QueryRow(ctx, `
		SELECT id, survey_version_id, COALESCE(respondent_token, ''), status,
			current_question_id, current_question_position, current_probe_count,
			is_follow_up_pending, started_at, completed_at, last_activity_at
		FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.SurveyVersionID, &s.RespondentToken, &s.Status,
			&currentQuestion, &s.CurrentPosition, &s.ProbeCount,
			&s.FollowUpPending, &s.StartedAt, &s.CompletedAt, &s.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if currentQuestion.Valid {
		s.CurrentQuestionID = &currentQuestion.UUID
	}
	return &s, nil
}

func (p *Postgres) UpdateSession(ctx context.Context, s *domain.InterviewSession) error {
	_, err := p.q().Exec(ctx, `
		UPDATE sessions SET status = $2, current_question_id = $3,
			current_question_position = $4, current_probe_count = $5,
			is_follow_up_pending = $6, completed_at = $7, last_activity_at = $8
		WHERE id = $1`,
		s.ID, s.Status, nullableUUID(s.CurrentQuestionID), s.CurrentPosition,
		s.ProbeCount, s.FollowUpPending, s.CompletedAt, s.LastActivityAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (p *Postgres) AbandonIdleSessions(ctx context.Context, idleSince time.Time) (int64, error) {
	tag, err := p.q().Exec(ctx, `
		UPDATE sessions SET status = 'abandoned'
		WHERE status = 'active' AND last_activity_at < $1`, idleSince)
	if err != nil {
		return 0, fmt.Errorf("abandon idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Messages

func (p *Postgres) NextSequence(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var max int
	err := p.q().QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) FROM session_messages WHERE session_id = $1`,
		sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return max + 1, nil
}

func (p *Postgres) InsertMessage(ctx context.Context, m *domain.Message) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO session_messages (id, session_id, message_type, question_id,
			message_text, selected_option_id, is_follow_up, parent_message_id,
			followup_reason, sequence_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.SessionID, m.Kind, nullableUUID(m.QuestionID), m.Text,
		nullableUUID(m.SelectedOptionID), m.IsFollowUp, nullableUUID(m.ParentMessageID),
		m.FollowupReason, m.Sequence, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (p *Postgres) MessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	return p.queryMessages(ctx, `
		SELECT id, session_id, message_type, question_id, message_text,
			selected_option_id, is_follow_up, parent_message_id,
			COALESCE(followup_reason, ''), sequence_number, created_at
		FROM session_messages WHERE session_id = $1 ORDER BY sequence_number`, sessionID)
}

func (p *Postgres) MessagesByQuestion(ctx context.Context, sessionID, questionID uuid.UUID) ([]domain.Message, error) {
	return p.queryMessages(ctx, `
		SELECT id, session_id, message_type, question_id, message_text,
			selected_option_id, is_follow_up, parent_message_id,
			COALESCE(followup_reason, ''), sequence_number, created_at
		FROM session_messages WHERE session_id = $1 AND question_id = $2
		ORDER BY sequence_number`, sessionID, questionID)
}

func (p *Postgres) queryMessages(ctx context.Context, sql string, args ...any) ([]domain.Message, error) {
	rows, err := p.q().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var questionID, optionID, parentID uuid.NullUUID
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &questionID, &m.Text,
			&optionID, &m.IsFollowUp, &parentID, &m.FollowupReason,
			&m.Sequence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if questionID.Valid {
			m.QuestionID = &questionID.UUID
		}
		if optionID.Valid {
			m.SelectedOptionID = &optionID.UUID
		}
		if parentID.Valid {
			m.ParentMessageID = &parentID.UUID
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (p *Postgres) CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := p.q().QueryRow(ctx, `
		SELECT COUNT(*) FROM session_messages WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Summaries

func (p *Postgres) InsertSummary(ctx context.Context, s *domain.SessionSummary) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO session_summaries (id, session_id, summary_text, key_themes,
			message_count, last_updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.SessionID, s.Text, s.Themes, s.MessageCount, s.UpdatedAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (p *Postgres) GetSummary(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	var s domain.SessionSummary
	err := p.q().QueryRow(ctx, `
		SELECT id, session_id, summary_text, key_themes, message_count,
			last_updated_at, created_at
		FROM session_summaries WHERE session_id = $1`, sessionID).
		Scan(&s.ID, &s.SessionID, &s.Text, &s.Themes, &s.MessageCount,
			&s.UpdatedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &s, nil
}

func (p *Postgres) UpdateSummary(ctx context.Context, s *domain.SessionSummary) error {
	_, err := p.q().Exec(ctx, `
		UPDATE session_summaries SET summary_text = $2, key_themes = $3,
			message_count = $4, last_updated_at = $5
		WHERE session_id = $1`,
		s.SessionID, s.Text, s.Themes, s.MessageCount, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}

// Model calls

func (p *Postgres) InsertModelCall(ctx context.Context, c *domain.ModelCall) error {
	_, err := p.q().Exec(ctx, `
		INSERT INTO model_calls (id, session_id, agent_type, model_name, provider,
			prompt_text, system_prompt, temperature, max_tokens, response_text,
			finish_reason, input_tokens, output_tokens, latency_ms, cost_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.SessionID, c.AgentTag, c.Model, c.Provider, c.Prompt, c.SystemPrompt,
		c.Temperature, c.MaxTokens, c.ResponseText, c.FinishReason, c.InputTokens,
		c.OutputTokens, c.LatencyMs, c.CostUSD, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert model call: %w", err)
	}
	return nil
}

func (p *Postgres) ModelCallsBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.ModelCall, error) {
	rows, err := p.q().Query(ctx, `
		SELECT id, session_id, agent_type, model_name, provider, prompt_text,
			COALESCE(system_prompt, ''), temperature, max_tokens, response_text,
			COALESCE(finish_reason, ''), input_tokens, output_tokens, latency_ms,
			cost_usd, created_at
		FROM model_calls WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list model calls: %w", err)
	}
	defer rows.Close()

	var calls []domain.ModelCall
	for rows.Next() {
		var c domain.ModelCall
		if err := rows.Scan(&c.ID, &c.SessionID, &c.AgentTag, &c.Model, &c.Provider,
			&c.Prompt, &c.SystemPrompt, &c.Temperature, &c.MaxTokens, &c.ResponseText,
			&c.FinishReason, &c.InputTokens, &c.OutputTokens, &c.LatencyMs,
			&c.CostUSD, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan model call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list model calls: %w", err)
	}
	return calls, nil
}

func (p *Postgres) SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := p.q().QueryRow(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0) FROM model_calls WHERE session_id = $1`,
		sessionID).Scan(&cost)
	if err != nil {
		return decimal.Zero, fmt.Errorf("session cost: %w", err)
	}
	return cost, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinari/interviewer/internal/domain"
)

// Memory is an in-process Store used by tests and by local development
// without Postgres. RunInTx does not simulate rollback; turn atomicity under
// failure is only a property of the Postgres store. Serialization of
// concurrent turns is the orchestrator's per-session lock, not the store's.
type Memory struct {
	mu sync.RWMutex

	surveys       map[uuid.UUID]domain.Survey
	surveysByName map[string]uuid.UUID
	versions      map[uuid.UUID]domain.SurveyVersion
	questions     map[uuid.UUID]domain.Question
	options       map[uuid.UUID]domain.QuestionOption
	sessions      map[uuid.UUID]domain.InterviewSession
	messages      map[uuid.UUID][]domain.Message
	summaries     map[uuid.UUID]domain.SessionSummary
	calls         map[uuid.UUID][]domain.ModelCall
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		surveys:       map[uuid.UUID]domain.Survey{},
		surveysByName: map[string]uuid.UUID{},
		versions:      map[uuid.UUID]domain.SurveyVersion{},
		questions:     map[uuid.UUID]domain.Question{},
		options:       map[uuid.UUID]domain.QuestionOption{},
		sessions:      map[uuid.UUID]domain.InterviewSession{},
		messages:      map[uuid.UUID][]domain.Message{},
		summaries:     map[uuid.UUID]domain.SessionSummary{},
		calls:         map[uuid.UUID][]domain.ModelCall{},
	}
}

func (s *Memory) RunInTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

// Survey catalog

func (s *Memory) InsertSurvey(ctx context.Context, sv *domain.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[sv.ID] = *sv
	s.surveysByName[sv.Name] = sv.ID
	return nil
}

func (s *Memory) GetSurveyByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, domain.ErrSurveyNotFound
	}
	return &sv, nil
}

func (s *Memory) GetSurveyByName(ctx context.Context, name string) (*domain.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.surveysByName[name]
	if !ok {
		return nil, domain.ErrSurveyNotFound
	}
	sv := s.surveys[id]
	return &sv, nil
}

func (s *Memory) InsertSurveyVersion(ctx context.Context, v *domain.SurveyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = *v
	return nil
}

func (s *Memory) MaxVersionNumber(ctx context.Context, surveyID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, v := range s.versions {
		if v.SurveyID == surveyID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (s *Memory) DemoteOtherVersions(ctx context.Context, surveyID, keepID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.versions {
		if v.SurveyID == surveyID && id != keepID {
			v.IsCurrent = false
			s.versions[id] = v
		}
	}
	return nil
}

func (s *Memory) GetCurrentVersion(ctx context.Context, surveyID uuid.UUID) (*domain.SurveyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions {
		if v.SurveyID == surveyID && v.IsCurrent {
			out := v
			return &out, nil
		}
	}
	return nil, domain.ErrNoCurrentVersion
}

func (s *Memory) LockVersion(ctx context.Context, versionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[versionID]
	if !ok {
		return domain.ErrNoCurrentVersion
	}
	v.IsLocked = true
	s.versions[versionID] = v
	return nil
}

func (s *Memory) InsertQuestion(ctx context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = *q
	return nil
}

func (s *Memory) InsertQuestionOption(ctx context.Context, o *domain.QuestionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[o.ID] = *o
	q, ok := s.questions[o.QuestionID]
	if ok {
		q.Options = append(q.Options, *o)
		sort.Slice(q.Options, func(i, j int) bool { return q.Options[i].Position < q.Options[j].Position })
		s.questions[o.QuestionID] = q
	}
	return nil
}

func (s *Memory) QuestionsByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if q.SurveyVersionID == versionID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Memory) GetQuestion(ctx context.Context, id uuid.UUID) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return &q, nil
}

func (s *Memory) GetOption(ctx context.Context, id uuid.UUID) (*domain.QuestionOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.options[id]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &o, nil
}

func (s *Memory) CountQuestions(ctx context.Context, versionID uuid.UUID) (int, error) {
	qs, _ := s.QuestionsByVersion(ctx, versionID)
	return len(qs), nil
}

// Sessions

func (s *Memory) InsertSession(ctx context.Context, sess *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Memory) GetSession(ctx context.Context, id uuid.UUID) (*domain.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *Memory) UpdateSession(ctx context.Context, sess *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Memory) AbandonIdleSessions(ctx context.Context, idleSince time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.Status == domain.SessionActive && sess.LastActivityAt.Before(idleSince) {
			sess.Status = domain.SessionAbandoned
			s.sessions[id] = sess
			n++
		}
	}
	return n, nil
}

// Messages

func (s *Memory) NextSequence(ctx context.Context, sessionID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, m := range s.messages[sessionID] {
		if m.Sequence > max {
			max = m.Sequence
		}
	}
	return max + 1, nil
}

func (s *Memory) InsertMessage(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return nil
}

func (s *Memory) MessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *Memory) MessagesByQuestion(ctx context.Context, sessionID, questionID uuid.UUID) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages[sessionID] {
		if m.QuestionID != nil && *m.QuestionID == questionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memory) CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[sessionID]), nil
}

// Summaries

func (s *Memory) InsertSummary(ctx context.Context, sum *domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.SessionID] = *sum
	return nil
}

func (s *Memory) GetSummary(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[sessionID]
	if !ok {
		return nil, domain.ErrSummaryNotFound
	}
	return &sum, nil
}

func (s *Memory) UpdateSummary(ctx context.Context, sum *domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[sum.SessionID]; !ok {
		return domain.ErrSummaryNotFound
	}
	s.summaries[sum.SessionID] = *sum
	return nil
}

// Model calls

func (s *Memory) InsertModelCall(ctx context.Context, c *domain.ModelCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.SessionID] = append(s.calls[c.SessionID], *c)
	return nil
}

func (s *Memory) ModelCallsBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.ModelCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ModelCall, len(s.calls[sessionID]))
	copy(out, s.calls[sessionID])
	return out, nil
}

func (s *Memory) SessionCostUSD(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, c := range s.calls[sessionID] {
		total = total.Add(c.CostUSD)
	}
	return total, nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opinari/interviewer/internal/agent"
	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/llm"
	"github.com/opinari/interviewer/internal/service"
	"github.com/opinari/interviewer/internal/store"
)

type scriptedInvoker struct {
	followupText string
	summaryText  string
}

func (s *scriptedInvoker) Complete(ctx context.Context, log llm.CallLog, req llm.Request) (*llm.Completion, error) {
	text := s.summaryText
	if req.AgentTag == domain.AgentFollowUp {
		text = s.followupText
	}
	return &llm.Completion{Text: text, FinishReason: "end_turn"}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	inv := &scriptedInvoker{
		followupText: `{"action":"move_on","followup_question":null,"reason":"done","confidence":"high","probe_count":0}`,
		summaryText:  `{"summary":"Updated summary.","key_themes":["theme"]}`,
	}

	st := store.NewMemory()
	surveys := service.NewSurveyService(st)
	interviews := service.NewInterviewService(st, surveys,
		agent.NewFollowupAgent(inv, 3), agent.NewSummaryAgent(inv), 3, 30*time.Minute)

	srv := httptest.NewServer(New(interviews, surveys).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func surveyDefinition() map[string]any {
	return map[string]any{
		"survey": map[string]any{
			"name":        "onboarding-feedback",
			"description": "Post-onboarding check-in",
		},
		"questions": []map[string]any{
			{
				"type":   "single_choice",
				"prompt": "How smooth was your onboarding?",
				"options": []map[string]any{
					{"text": "Smooth", "position": 0},
					{"text": "Bumpy", "position": 1},
				},
			},
			{
				"type":                       "free_text",
				"prompt":                     "What should we improve?",
				"allow_prefer_not_to_answer": true,
			},
		},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInterviewOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Ingest the survey.
	resp := postJSON(t, srv.URL+"/api/admin/surveys", surveyDefinition())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ingest struct {
		SurveyID      string `json:"survey_id"`
		VersionNumber int    `json:"version_number"`
	}
	decodeBody(t, resp, &ingest)
	assert.Equal(t, 1, ingest.VersionNumber)

	// Start a session.
	resp = postJSON(t, srv.URL+"/api/sessions/start", map[string]string{
		"survey": "onboarding-feedback", "respondent_token": "resp-42",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started struct {
		SessionID      string `json:"session_id"`
		TotalQuestions int    `json:"total_questions"`
		Question       struct {
			Text    string `json:"text"`
			Options []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"options"`
		} `json:"question"`
	}
	decodeBody(t, resp, &started)
	assert.Equal(t, 2, started.TotalQuestions)
	require.Len(t, started.Question.Options, 2)

	// Answer the choice question with an option.
	resp = postJSON(t, srv.URL+"/api/sessions/"+started.SessionID+"/answer", map[string]any{
		"kind":               "answer",
		"selected_option_id": started.Question.Options[0].ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var turn struct {
		Reply    string `json:"reply"`
		Progress struct {
			CurrentPosition int `json:"current_position"`
		} `json:"progress"`
	}
	decodeBody(t, resp, &turn)
	assert.Equal(t, "survey_question", turn.Reply)
	assert.Equal(t, 2, turn.Progress.CurrentPosition)

	// Answer the free-text question; this finishes the survey.
	resp = postJSON(t, srv.URL+"/api/sessions/"+started.SessionID+"/answer", map[string]any{
		"kind": "answer",
		"text": "Clearer documentation for the first week.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &turn)
	assert.Equal(t, "completed", turn.Reply)

	// End returns the final summary and stays idempotent.
	resp = postJSON(t, srv.URL+"/api/sessions/"+started.SessionID+"/end", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended struct {
		Status            string `json:"status"`
		Summary           string `json:"summary"`
		QuestionsAnswered int    `json:"questions_answered"`
	}
	decodeBody(t, resp, &ended)
	assert.Equal(t, "completed", ended.Status)
	assert.Equal(t, "Updated summary.", ended.Summary)
	assert.Equal(t, 2, ended.QuestionsAnswered)
}

func TestStartUnknownSurveyReturns404(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions/start", map[string]string{"survey": "ghost"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnswerInvalidSessionID(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions/not-a-uuid/answer", map[string]string{"text": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnswerAfterEndConflicts(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/admin/surveys", surveyDefinition())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/sessions/start", map[string]string{"survey": "onboarding-feedback"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &started)

	resp = postJSON(t, srv.URL+"/api/sessions/"+started.SessionID+"/end", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/sessions/"+started.SessionID+"/answer", map[string]any{
		"kind": "answer", "text": "too late",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

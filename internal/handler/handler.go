// Package handler exposes the interview flow over HTTP. Handlers are thin
// JSON mappings over the service layer; all state transitions happen there.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/middleware"
	"github.com/opinari/interviewer/internal/service"
)

type Handler struct {
	interviews *service.InterviewService
	surveys    *service.SurveyService
}

func New(interviews *service.InterviewService, surveys *service.SurveyService) *Handler {
	return &Handler{interviews: interviews, surveys: surveys}
}

// Router wires all endpoints behind recovery and request logging.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recover, middleware.Logging)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions/start", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/answer", h.submitAnswer).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/end", h.endSession).Methods(http.MethodPost)
	api.HandleFunc("/admin/surveys", h.ingestSurvey).Methods(http.MethodPost)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Survey == "" {
		writeError(w, http.StatusBadRequest, "survey is required")
		return
	}

	res, err := h.interviews.Start(r.Context(), req.Survey, req.RespondentToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID:      res.SessionID,
		SurveyName:     res.SurveyName,
		TotalQuestions: res.TotalQuestions,
		Question:       toQuestionPayload(res.FirstQuestion),
	})
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := service.AnswerKind(req.Kind)
	if kind == "" {
		kind = service.AnswerPrimary
	}

	res, err := h.interviews.Submit(r.Context(), service.SubmitInput{
		SessionID:        sessionID,
		Kind:             kind,
		QuestionID:       req.QuestionID,
		Text:             req.Text,
		SelectedOptionID: req.SelectedOptionID,
		ParentMessageID:  req.ParentMessageID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Reply:        res.Reply,
		Question:     toQuestionPayload(res.Question),
		FollowupText: res.FollowupText,
		Reason:       res.Reason,
		CostLimited:  res.CostLimited,
		Progress:     toProgressPayload(res.Progress),
	})
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req endSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "user_requested"
	}

	res, err := h.interviews.End(r.Context(), sessionID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, endSessionResponse{
		Status:            string(res.Status),
		Summary:           res.SummaryText,
		QuestionsAnswered: res.QuestionsAnswered,
		TotalQuestions:    res.TotalQuestions,
		DurationSeconds:   res.DurationSeconds,
	})
}

func (h *Handler) ingestSurvey(w http.ResponseWriter, r *http.Request) {
	var def service.SurveyDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.surveys.Ingest(r.Context(), &def)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestSurveyResponse{
		SurveyID:      res.SurveyID,
		VersionID:     res.VersionID,
		VersionNumber: res.VersionNumber,
		Questions:     res.Questions,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps storage and state-machine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSurveyNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrNoCurrentVersion):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrNoFollowUpPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptySurvey),
		errors.Is(err, domain.ErrInvalidAnswerKind):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

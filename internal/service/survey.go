package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opinari/interviewer/internal/domain"
	"github.com/opinari/interviewer/internal/store"
)

// SurveyService is the survey catalog: versioned, immutable question sets
// resolved by survey id or name.
type SurveyService struct {
	store store.Store
}

func NewSurveyService(st store.Store) *SurveyService {
	return &SurveyService{store: st}
}

// SurveyDefinition is the ingest payload: one survey with its ordered
// question list. Each ingest produces a fresh current version; existing
// versions stay untouched so running sessions keep their snapshot.
type SurveyDefinition struct {
	Survey struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"survey"`
	Questions []QuestionDefinition `json:"questions"`
}

type QuestionDefinition struct {
	Type                   string             `json:"type"`
	Prompt                 string             `json:"prompt"`
	Required               bool               `json:"required"`
	AllowPreferNotToAnswer bool               `json:"allow_prefer_not_to_answer"`
	Options                []OptionDefinition `json:"options,omitempty"`
}

type OptionDefinition struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
	Score    *int   `json:"score,omitempty"`
}

func (d *SurveyDefinition) validate() error {
	if d.Survey.Name == "" {
		return fmt.Errorf("survey name is required")
	}
	if len(d.Questions) == 0 {
		return domain.ErrEmptySurvey
	}
	for i, q := range d.Questions {
		switch domain.QuestionType(q.Type) {
		case domain.QuestionSingleChoice, domain.QuestionFreeText, domain.QuestionMultipleChoice:
		default:
			return fmt.Errorf("question %d: unknown type %q", i, q.Type)
		}
		if q.Prompt == "" {
			return fmt.Errorf("question %d: prompt is required", i)
		}
	}
	return nil
}

// IngestResult identifies the version an ingest produced.
type IngestResult struct {
	SurveyID      uuid.UUID
	VersionID     uuid.UUID
	VersionNumber int
	Questions     int
}

// Ingest persists a survey definition as the new current version.
func (s *SurveyService) Ingest(ctx context.Context, def *SurveyDefinition) (*IngestResult, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	var out IngestResult
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		now := time.Now().UTC()

		survey, err := tx.GetSurveyByName(ctx, def.Survey.Name)
		if errors.Is(err, domain.ErrSurveyNotFound) {
			survey = &domain.Survey{
				ID:          uuid.New(),
				Name:        def.Survey.Name,
				Description: def.Survey.Description,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertSurvey(ctx, survey); err != nil {
				return err
			}
			slog.Info("survey created", "survey", survey.Name, "survey_id", survey.ID)
		} else if err != nil {
			return err
		}

		maxVersion, err := tx.MaxVersionNumber(ctx, survey.ID)
		if err != nil {
			return err
		}

		version := &domain.SurveyVersion{
			ID:            uuid.New(),
			SurveyID:      survey.ID,
			VersionNumber: maxVersion + 1,
			IsCurrent:     true,
			CreatedAt:     now,
		}
		if err := tx.InsertSurveyVersion(ctx, version); err != nil {
			return err
		}
		if err := tx.DemoteOtherVersions(ctx, survey.ID, version.ID); err != nil {
			return err
		}

		for pos, qDef := range def.Questions {
			question := &domain.Question{
				ID:              uuid.New(),
				SurveyVersionID: version.ID,
				Type:            domain.QuestionType(qDef.Type),
				Text:            qDef.Prompt,
				Position:        pos,
				Required:        qDef.Required,
				AllowsNonAnswer: qDef.AllowPreferNotToAnswer,
				CreatedAt:       now,
			}
			if err := tx.InsertQuestion(ctx, question); err != nil {
				return err
			}
			for _, oDef := range qDef.Options {
				option := &domain.QuestionOption{
					ID:         uuid.New(),
					QuestionID: question.ID,
					Text:       oDef.Text,
					Position:   oDef.Position,
					Score:      oDef.Score,
					CreatedAt:  now,
				}
				if err := tx.InsertQuestionOption(ctx, option); err != nil {
					return err
				}
			}
		}

		out = IngestResult{
			SurveyID:      survey.ID,
			VersionID:     version.ID,
			VersionNumber: version.VersionNumber,
			Questions:     len(def.Questions),
		}
		slog.Info("survey ingested",
			"survey", survey.Name, "version", version.VersionNumber,
			"questions", len(def.Questions))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest survey: %w", err)
	}
	return &out, nil
}

// CurrentVersion resolves a survey reference (UUID or name) to its current
// version.
func (s *SurveyService) CurrentVersion(ctx context.Context, surveyRef string) (*domain.Survey, *domain.SurveyVersion, error) {
	var survey *domain.Survey
	var err error

	if id, parseErr := uuid.Parse(surveyRef); parseErr == nil {
		survey, err = s.store.GetSurveyByID(ctx, id)
	} else {
		survey, err = s.store.GetSurveyByName(ctx, surveyRef)
	}
	if err != nil {
		return nil, nil, err
	}

	version, err := s.store.GetCurrentVersion(ctx, survey.ID)
	if err != nil {
		return nil, nil, err
	}
	return survey, version, nil
}

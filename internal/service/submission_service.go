package service

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/formresponses/internal/auth"
	"github.com/lshigami/formresponses/internal/dto"
	"github.com/lshigami/formresponses/internal/formsapi"
	"github.com/lshigami/formresponses/internal/metrics"
	"github.com/lshigami/formresponses/internal/model"
	"github.com/lshigami/formresponses/internal/repository"
	"github.com/lshigami/formresponses/pkg/validation"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SubmissionService accepts answers to a form.
type SubmissionService interface {
	// Submit validates every answer against the current schema and stores
	// the response in one transaction. authorization is the raw
	// Authorization header of the caller.
	Submit(ctx context.Context, req dto.SubmitRequest, authorization string) (*dto.ResponseDTO, error)
}

type submissionService struct {
	fetcher      formsapi.Fetcher
	verifier     auth.Verifier
	responseRepo repository.ResponseRepository
	db           *gorm.DB
}

func NewSubmissionService(
	fetcher formsapi.Fetcher,
	verifier auth.Verifier,
	responseRepo repository.ResponseRepository,
	db *gorm.DB,
) SubmissionService {
	return &submissionService{
		fetcher:      fetcher,
		verifier:     verifier,
		responseRepo: responseRepo,
		db:           db,
	}
}

func (s *submissionService) Submit(ctx context.Context, req dto.SubmitRequest, authorization string) (*dto.ResponseDTO, error) {
	resp, outcome, err := s.submit(ctx, req, authorization)
	metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	return resp, err
}

func (s *submissionService) submit(ctx context.Context, req dto.SubmitRequest, authorization string) (*dto.ResponseDTO, string, error) {
	// 1. Current schema
	form, err := s.fetcher.Fetch(ctx, req.FormID, authorization)
	if err != nil {
		return nil, metrics.OutcomeSchemaError, err
	}

	// 2. Lock and anonymity gates, before any answer is looked at
	if form.IsLocked {
		log.Info().Int("formID", req.FormID).Msg("Submit: form is locked")
		return nil, metrics.OutcomeLocked, ErrFormLocked
	}
	identity, authErr := s.verifier.Verify(authorization)
	if !form.AllowAnonymous && authErr != nil {
		log.Info().Err(authErr).Int("formID", req.FormID).Msg("Submit: anonymous submission refused")
		return nil, metrics.OutcomeAuthRequired, ErrAuthRequired
	}

	// 3. Every answer must pass before anything is written
	response := model.Response{FormID: req.FormID}
	if authErr == nil && identity.Subject != "" {
		subject := identity.Subject
		response.Respondent = &subject
		response.RespondentUserID = identity.UserID
	}
	for _, a := range req.Answers {
		q, ok := form.Question(a.QuestionID)
		if !ok {
			return nil, metrics.OutcomeRejected, &ValidationError{
				QuestionID: a.QuestionID,
				Detail:     fmt.Sprintf("Unknown question %d", a.QuestionID),
				Err:        ErrUnknownQuestion,
			}
		}
		if err := validation.Validate(q, a.Value); err != nil {
			return nil, metrics.OutcomeRejected, &ValidationError{QuestionID: q.ID, Detail: err.Error(), Err: err}
		}
		response.Answers = append(response.Answers, model.Answer{QuestionID: q.ID, Value: a.Value})
	}

	// 4. Response and answers become visible together or not at all
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.responseRepo.Create(tx, &response)
	})
	if err != nil {
		log.Error().Err(err).Int("formID", req.FormID).Msg("Submit: failed to persist response")
		return nil, metrics.OutcomeError, fmt.Errorf("persist response: %w", err)
	}

	log.Info().Uint("responseID", response.ID).Int("formID", req.FormID).Int("answers", len(response.Answers)).Msg("Submit: response stored")
	out, err := toResponseDTO(&response)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	return out, metrics.OutcomeAccepted, nil
}

func toResponseDTO(r *model.Response) (*dto.ResponseDTO, error) {
	var out dto.ResponseDTO
	if err := copier.Copy(&out, r); err != nil {
		return nil, fmt.Errorf("map response %d: %w", r.ID, err)
	}
	if out.Answers == nil {
		out.Answers = []dto.AnswerDTO{}
	}
	return &out, nil
}

package service

import (
	"errors"

	"github.com/lshigami/formresponses/internal/dto"
	"github.com/lshigami/formresponses/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ResponseService interface {
	GetResponse(id uint) (*dto.ResponseDTO, error)
	// ListResponses returns a form's responses in submission order.
	ListResponses(formID int) ([]dto.ResponseDTO, error)
}

type responseService struct {
	responseRepo repository.ResponseRepository
}

func NewResponseService(responseRepo repository.ResponseRepository) ResponseService {
	return &responseService{responseRepo: responseRepo}
}

func (s *responseService) GetResponse(id uint) (*dto.ResponseDTO, error) {
	response, err := s.responseRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResponseNotFound
		}
		log.Error().Err(err).Uint("responseID", id).Msg("GetResponse: query failed")
		return nil, err
	}
	return toResponseDTO(response)
}

func (s *responseService) ListResponses(formID int) ([]dto.ResponseDTO, error) {
	responses, err := s.responseRepo.FindByFormID(formID)
	if err != nil {
		log.Error().Err(err).Int("formID", formID).Msg("ListResponses: query failed")
		return nil, err
	}
	out := make([]dto.ResponseDTO, 0, len(responses))
	for i := range responses {
		r, err := toResponseDTO(&responses[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

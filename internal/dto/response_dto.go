package dto

import "github.com/lshigami/formresponses/pkg/value"

type AnswerIn struct {
	QuestionID int         `json:"question_id" binding:"required" example:"12"`
	Value      value.Value `json:"value" swaggertype:"object"`
}

type SubmitRequest struct {
	FormID  int        `json:"form_id" binding:"required" example:"3"`
	Answers []AnswerIn `json:"answers" binding:"required,dive"`
}

type AnswerDTO struct {
	QuestionID int         `json:"question_id"`
	Value      value.Value `json:"value" swaggertype:"object"`
}

type ResponseDTO struct {
	ID      uint        `json:"id"`
	FormID  int         `json:"form_id"`
	Answers []AnswerDTO `json:"answers"`
}

// AggregateDTO maps question id to value key to count. JSON object keys are
// strings, so question ids appear as "12".
type AggregateDTO map[int]map[string]int

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

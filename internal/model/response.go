package model

import (
	"time"

	"github.com/lshigami/formresponses/pkg/value"
)

// Response is one completed submission to a form.
type Response struct {
	ID     uint `gorm:"primarykey" json:"id"`
	FormID int  `json:"form_id" gorm:"not null;index"`
	// Respondent is the verified identity of the submitter, when there was one.
	Respondent *string `json:"respondent,omitempty" gorm:"size:320"`
	// RespondentUserID is the identity service's numeric user id, when the
	// token carried one.
	RespondentUserID *uint     `json:"respondent_user_id,omitempty" gorm:"index"`
	Answers          []Answer  `json:"answers" gorm:"foreignKey:ResponseID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time `json:"created_at"`
}

// Answer holds the value given to one question. The value is stored as its
// JSON text.
type Answer struct {
	ID         uint        `gorm:"primarykey" json:"id"`
	ResponseID uint        `json:"response_id" gorm:"not null;index"`
	QuestionID int         `json:"question_id" gorm:"not null;index"`
	Value      value.Value `json:"value" gorm:"type:text;not null"`
}

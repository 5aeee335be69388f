package repository

import (
	"github.com/lshigami/formresponses/internal/model"
	"gorm.io/gorm"
)

type ResponseRepository interface {
	// Create inserts the response and its answers using tx, which may be a
	// transaction handle.
	Create(tx *gorm.DB, response *model.Response) error
	FindByID(id uint) (*model.Response, error)
	FindByFormID(formID int) ([]model.Response, error)
	FindAnswersByFormID(formID int) ([]model.Answer, error)
}

type responseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

func (r *responseRepository) Create(tx *gorm.DB, response *model.Response) error {
	if tx == nil {
		tx = r.db
	}
	// GORM creates the associated answers in the same statement batch.
	return tx.Create(response).Error
}

func (r *responseRepository) FindByID(id uint) (*model.Response, error) {
	var response model.Response
	err := r.db.
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("answers.id ASC") }).
		First(&response, id).Error
	return &response, err
}

func (r *responseRepository) FindByFormID(formID int) ([]model.Response, error) {
	var responses []model.Response
	err := r.db.
		Where("form_id = ?", formID).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("answers.id ASC") }).
		Order("id ASC").
		Find(&responses).Error
	return responses, err
}

func (r *responseRepository) FindAnswersByFormID(formID int) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.
		Joins("JOIN responses ON responses.id = answers.response_id").
		Where("responses.form_id = ?", formID).
		Order("answers.response_id ASC, answers.id ASC").
		Find(&answers).Error
	return answers, err
}

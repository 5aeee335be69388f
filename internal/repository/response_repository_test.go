package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lshigami/formresponses/internal/model"
	"github.com/lshigami/formresponses/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Response{}, &model.Answer{}))
	return db
}

func TestResponseRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResponseRepository(db)

	resp := &model.Response{
		FormID: 7,
		Answers: []model.Answer{
			{QuestionID: 1, Value: value.NewString("hello")},
			{QuestionID: 2, Value: value.NewList(value.NewString("A"), value.NewString("B"))},
		},
	}
	require.NoError(t, repo.Create(nil, resp))
	require.NotZero(t, resp.ID)

	found, err := repo.FindByID(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, found.FormID)
	require.Len(t, found.Answers, 2)
	assert.Equal(t, 1, found.Answers[0].QuestionID)
	assert.Equal(t, "A, B", found.Answers[1].Value.Display())

	var raw string
	require.NoError(t, db.Raw("SELECT value FROM answers WHERE id = ?", found.Answers[1].ID).Scan(&raw).Error)
	assert.Equal(t, `["A","B"]`, raw)

	_, err = repo.FindByID(resp.ID + 100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestResponseRepository_FindByFormID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResponseRepository(db)

	for _, formID := range []int{1, 2, 1} {
		require.NoError(t, repo.Create(db, &model.Response{
			FormID:  formID,
			Answers: []model.Answer{{QuestionID: 5, Value: value.NewInt(1)}},
		}))
	}

	responses, err := repo.FindByFormID(1)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Less(t, responses[0].ID, responses[1].ID)
	assert.Len(t, responses[0].Answers, 1)

	answers, err := repo.FindAnswersByFormID(1)
	require.NoError(t, err)
	assert.Len(t, answers, 2)

	none, err := repo.FindByFormID(99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResponseRepository_CreateInsideRolledBackTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResponseRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Create(tx, &model.Response{FormID: 3, Answers: []model.Answer{{QuestionID: 1, Value: value.NewInt(1)}}}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	var responses, answers int64
	db.Model(&model.Response{}).Count(&responses)
	db.Model(&model.Answer{}).Count(&answers)
	assert.Zero(t, responses)
	assert.Zero(t, answers)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lshigami/formresponses/config"
	"github.com/lshigami/formresponses/internal/auth"
	"github.com/lshigami/formresponses/internal/dto"
	"github.com/lshigami/formresponses/internal/formsapi"
	"github.com/lshigami/formresponses/internal/model"
	"github.com/lshigami/formresponses/internal/repository"
	"github.com/lshigami/formresponses/pkg/formschema"
	"github.com/lshigami/formresponses/pkg/validation"
	"github.com/lshigami/formresponses/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const surveyJSON = `{"id": 1, "is_locked": false, "allow_anonymous": true, "questions": [
	{"id": 1, "text": "Name", "type": "short_text", "required": true},
	{"id": 2, "text": "Device", "type": "single_choice", "options_json": {"choices": ["Laptop", "Desktop"]}},
	{"id": 3, "text": "Languages", "type": "multi_choice", "options_json": {"choices": ["A", "B", "C"]}},
	{"id": 4, "text": "Score", "type": "numeric", "options_json": {"range": {"start": 0, "end": 10, "step": 3}}},
	{"id": 5, "text": "Notes", "type": "long_text"},
	{"id": 6, "text": "Opt in", "type": "single_choice", "options_json": {"choices": ["Yes", null]}}
]}`

type fakeFetcher struct {
	form  *formschema.Form
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ int, _ string) (*formschema.Form, error) {
	f.calls++
	return f.form, f.err
}

func parseForm(t *testing.T, payload string) *formschema.Form {
	t.Helper()
	form, err := formschema.ParseForm([]byte(payload))
	require.NoError(t, err)
	return form
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Response{}, &model.Answer{}))
	return db
}

func countRows(t *testing.T, db *gorm.DB) (responses, answers int64) {
	t.Helper()
	require.NoError(t, db.Model(&model.Response{}).Count(&responses).Error)
	require.NoError(t, db.Model(&model.Answer{}).Count(&answers).Error)
	return responses, answers
}

func newSubmission(t *testing.T, fetcher formsapi.Fetcher, secret string) (SubmissionService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = secret
	return NewSubmissionService(fetcher, auth.NewVerifier(cfg), repository.NewResponseRepository(db), db), db
}

func answer(qid int, v value.Value) dto.AnswerIn { return dto.AnswerIn{QuestionID: qid, Value: v} }

func TestSubmit_Accepted(t *testing.T) {
	svc, db := newSubmission(t, &fakeFetcher{form: parseForm(t, surveyJSON)}, "")

	langs := value.NewList(value.NewString("A"), value.NewString("B"))
	resp, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{
		answer(1, value.NewString("Ada")),
		answer(2, value.NewString("Laptop")),
		answer(3, langs),
		answer(4, value.NewInt(9)),
		answer(5, value.NewString("")),
		answer(6, value.NewNull()),
	}}, "")
	require.NoError(t, err)
	assert.NotZero(t, resp.ID)
	assert.Equal(t, 1, resp.FormID)
	require.Len(t, resp.Answers, 6)
	assert.True(t, resp.Answers[2].Value.Equal(langs))
	assert.True(t, resp.Answers[5].Value.IsNull())

	responses, answers := countRows(t, db)
	assert.Equal(t, int64(1), responses)
	assert.Equal(t, int64(6), answers)
}

func TestSubmit_FractionalRangeStepKeepsFormUsable(t *testing.T) {
	form := parseForm(t, `{"id": 2, "questions": [
		{"id": 1, "text": "Name", "type": "short_text", "required": true},
		{"id": 2, "text": "Rating", "type": "numeric", "options_json": {"range": {"start": 0, "end": 10, "step": 0.5}}}
	]}`)
	svc, db := newSubmission(t, &fakeFetcher{form: form}, "")

	_, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 2, Answers: []dto.AnswerIn{
		answer(1, value.NewString("Ada")),
	}}, "")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), dto.SubmitRequest{FormID: 2, Answers: []dto.AnswerIn{
		answer(1, value.NewString("Grace")),
		answer(2, value.NewInt(7)),
	}}, "")
	require.NoError(t, err)

	responses, _ := countRows(t, db)
	assert.Equal(t, int64(2), responses)
}

func TestSubmit_LockedFormStoresNothing(t *testing.T) {
	form := parseForm(t, surveyJSON)
	form.IsLocked = true
	svc, db := newSubmission(t, &fakeFetcher{form: form}, "")

	_, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{
		answer(99, value.NewString("not even a question")),
	}}, "")
	assert.ErrorIs(t, err, ErrFormLocked)

	responses, _ := countRows(t, db)
	assert.Zero(t, responses)
}

func TestSubmit_AnonymousGate(t *testing.T) {
	form := parseForm(t, surveyJSON)
	form.AllowAnonymous = false
	svc, db := newSubmission(t, &fakeFetcher{form: form}, "")

	req := dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{answer(1, value.NewString("Ada"))}}

	_, err := svc.Submit(context.Background(), req, "")
	assert.ErrorIs(t, err, ErrAuthRequired)
	_, err = svc.Submit(context.Background(), req, "Basic abc")
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = svc.Submit(context.Background(), req, "bearer some-token")
	require.NoError(t, err)

	responses, _ := countRows(t, db)
	assert.Equal(t, int64(1), responses)
}

func TestSubmit_AnonymousGateVerifiesTokens(t *testing.T) {
	form := parseForm(t, surveyJSON)
	form.AllowAnonymous = false
	svc, db := newSubmission(t, &fakeFetcher{form: form}, "s3cret")

	req := dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{answer(1, value.NewString("Ada"))}}
	_, err := svc.Submit(context.Background(), req, "Bearer forged")
	assert.ErrorIs(t, err, ErrAuthRequired)

	responses, _ := countRows(t, db)
	assert.Zero(t, responses)
}

func TestSubmit_OneBadAnswerStoresNothing(t *testing.T) {
	svc, db := newSubmission(t, &fakeFetcher{form: parseForm(t, surveyJSON)}, "")

	_, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{
		answer(1, value.NewString("Ada")),
		answer(4, value.NewInt(10)),
		answer(2, value.NewString("Laptop")),
	}}, "")

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "numeric value not in range/step", verr.Detail)
	assert.Equal(t, 4, verr.QuestionID)
	var rejection *validation.Rejection
	assert.True(t, errors.As(err, &rejection))

	responses, answers := countRows(t, db)
	assert.Zero(t, responses)
	assert.Zero(t, answers)
}

func TestSubmit_UnknownQuestion(t *testing.T) {
	svc, _ := newSubmission(t, &fakeFetcher{form: parseForm(t, surveyJSON)}, "")

	_, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{
		answer(42, value.NewString("?")),
	}}, "")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
	assert.EqualError(t, err, "Unknown question 42")
}

func TestSubmit_SchemaErrorsPassThrough(t *testing.T) {
	fetchErr := &formsapi.RemoteUnavailableError{Err: errors.New("connection refused")}
	svc, _ := newSubmission(t, &fakeFetcher{err: fetchErr}, "")

	_, err := svc.Submit(context.Background(), dto.SubmitRequest{FormID: 1}, "")
	var unavailable *formsapi.RemoteUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestSubmit_RecordsRespondent(t *testing.T) {
	svc, db := newSubmission(t, &fakeFetcher{form: parseForm(t, surveyJSON)}, "s3cret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ada@example.com", "uid": 7}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	req := dto.SubmitRequest{FormID: 1, Answers: []dto.AnswerIn{answer(1, value.NewString("Ada"))}}
	_, err = svc.Submit(context.Background(), req, "Bearer "+token)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req, "")
	require.NoError(t, err)

	var stored []model.Response
	require.NoError(t, db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].Respondent)
	assert.Equal(t, "ada@example.com", *stored[0].Respondent)
	require.NotNil(t, stored[0].RespondentUserID)
	assert.Equal(t, uint(7), *stored[0].RespondentUserID)
	assert.Nil(t, stored[1].Respondent)
	assert.Nil(t, stored[1].RespondentUserID)
}

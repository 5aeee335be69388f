package service

import "errors"

var (
	ErrFormLocked       = errors.New("Form is locked")
	ErrAuthRequired     = errors.New("Login required")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrResponseNotFound = errors.New("Response not found")
)

// ValidationError rejects a submission because of one answer. Detail is the
// message returned to the client.
type ValidationError struct {
	QuestionID int
	Detail     string
	Err        error
}

func (e *ValidationError) Error() string { return e.Detail }

func (e *ValidationError) Unwrap() error { return e.Err }

// Package validation holds the per-question-type answer rules. The rules are
// shared: the responses service applies Validate to submitted answers and
// CheckOptions mirrors what the forms service enforces on question payloads.
package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/lshigami/formresponses/pkg/formschema"
	"github.com/lshigami/formresponses/pkg/value"
)

const (
	ShortTextMaxLen = 512
	LongTextMaxLen  = 4096
)

// Rejection explains why an answer is not acceptable for its question.
type Rejection struct {
	QuestionID int
	Reason     string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(q formschema.Question, format string, args ...any) error {
	return &Rejection{QuestionID: q.ID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks one submitted value against its question. It has no side
// effects. The type rule runs first; the required rule runs afterwards in
// every case.
func Validate(q formschema.Question, v value.Value) error {
	if err := checkType(q, v); err != nil {
		return err
	}
	if q.Required && v.IsEmpty() {
		return reject(q, "Question %d is required", q.ID)
	}
	return nil
}

func checkType(q formschema.Question, v value.Value) error {
	switch q.Type {
	case formschema.ShortText:
		return checkText(q, v, ShortTextMaxLen)
	case formschema.LongText:
		return checkText(q, v, LongTextMaxLen)
	case formschema.SingleChoice:
		if !value.Contains(q.Options.Choices, v) {
			return reject(q, "single_choice invalid option")
		}
		return nil
	case formschema.MultiChoice:
		return checkMultiChoice(q, v)
	case formschema.Numeric:
		return checkNumeric(q, v)
	case formschema.Date, formschema.Time:
		if v.IsNull() {
			return reject(q, "%s required value", q.Type)
		}
		if s, ok := v.Str(); ok && s == "" {
			return reject(q, "%s required value", q.Type)
		}
		return nil
	default:
		return reject(q, "unsupported question type %q", q.Type)
	}
}

func checkText(q formschema.Question, v value.Value, max int) error {
	s, ok := v.Str()
	if !ok || utf8.RuneCountInString(s) > max {
		return reject(q, "%s max %d chars", q.Type, max)
	}
	return nil
}

func checkMultiChoice(q formschema.Question, v value.Value) error {
	items, ok := v.Items()
	if !ok {
		return reject(q, "multi_choice expects list of valid options")
	}
	for _, item := range items {
		if !value.Contains(q.Options.Choices, item) {
			return reject(q, "multi_choice expects list of valid options")
		}
	}
	if rc := q.Options.RequiredCount; rc != nil && len(items) < *rc {
		return reject(q, "multi_choice requires at least %d selections", *rc)
	}
	return nil
}

func checkNumeric(q formschema.Question, v value.Value) error {
	switch {
	case q.Options.HasList:
		if !value.Contains(q.Options.List, v) {
			return reject(q, "numeric value not in list")
		}
		return nil
	case q.Options.Range != nil:
		n, ok := v.Int()
		if !ok {
			return reject(q, "numeric expects integer")
		}
		if !InRange(*q.Options.Range, n) {
			return reject(q, "numeric value not in range/step")
		}
		return nil
	default:
		if _, ok := v.Int(); !ok {
			return reject(q, "numeric expects integer")
		}
		return nil
	}
}

// InRange reports whether n is one of start, start+step, ... up to end
// (inclusive). A zero step counts by 1; a step pointing away from end yields
// nothing.
func InRange(r formschema.Range, n int64) bool {
	step := r.Step
	if step == 0 {
		step = 1
	}
	// Differences are taken in uint64 so extreme bounds cannot overflow.
	var offset, stride uint64
	if step > 0 {
		if n < r.Start || n > r.End {
			return false
		}
		offset, stride = uint64(n)-uint64(r.Start), uint64(step)
	} else {
		if n > r.Start || n < r.End {
			return false
		}
		offset, stride = uint64(r.Start)-uint64(n), -uint64(step)
	}
	return offset%stride == 0
}

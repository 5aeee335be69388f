// Package formschema describes a published form as the responses service sees
// it: lock and anonymity flags plus the questions answers are checked against.
//
// Payloads from the forms service are loosely typed. Everything is decoded
// eagerly here so later stages never deal with raw JSON.
package formschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lshigami/formresponses/pkg/value"
)

// ErrMalformed wraps every decoding failure of a form payload.
var ErrMalformed = errors.New("malformed form schema")

type QuestionType string

const (
	ShortText    QuestionType = "short_text"
	LongText     QuestionType = "long_text"
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
	Numeric      QuestionType = "numeric"
	Date         QuestionType = "date"
	Time         QuestionType = "time"
)

func (t QuestionType) Valid() bool {
	switch t {
	case ShortText, LongText, SingleChoice, MultiChoice, Numeric, Date, Time:
		return true
	}
	return false
}

// Range is an inclusive integer sequence start, start+step, ... bounded by end.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Step  int64 `json:"step"`
}

// Options is the type-dependent configuration of a question.
type Options struct {
	// Choices comes from "choices", falling back to "options".
	Choices []value.Value
	// RequiredCount is set only when the payload holds a non-negative integer.
	RequiredCount *int
	HasList       bool
	List          []value.Value
	Range         *Range
	// Raw keeps the undecoded payload for authoring-rule checks.
	Raw map[string]json.RawMessage
}

type Question struct {
	ID         int
	Text       string
	Type       QuestionType
	Required   bool
	OrderIndex *int
	ImageURL   *string
	Options    Options
}

type Form struct {
	ID             int
	IsLocked       bool
	AllowAnonymous bool
	// Questions is keyed by question id.
	Questions map[int]Question
	// Order lists question ids as the forms service sent them.
	Order []int
}

// Question looks up a question by id.
func (f *Form) Question(id int) (Question, bool) {
	q, ok := f.Questions[id]
	return q, ok
}

// ParseForm decodes a form payload as returned by either the meta or the plain
// form endpoint of the forms service.
func ParseForm(data []byte) (*Form, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: form payload is not an object: %v", ErrMalformed, err)
	}

	form := &Form{Questions: map[int]Question{}}

	if raw, ok := fields["id"]; ok && !isNull(raw) {
		id, err := intOf(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: form id: %v", ErrMalformed, err)
		}
		form.ID = int(id)
	}

	var err error
	if form.IsLocked, err = truthy(fields["is_locked"], false); err != nil {
		return nil, fmt.Errorf("%w: is_locked: %v", ErrMalformed, err)
	}
	if form.AllowAnonymous, err = truthy(fields["allow_anonymous"], true); err != nil {
		return nil, fmt.Errorf("%w: allow_anonymous: %v", ErrMalformed, err)
	}

	raw, ok := fields["questions"]
	if !ok || isNull(raw) {
		return form, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: questions list: %v", ErrMalformed, err)
	}
	for i, item := range items {
		q, err := ParseQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		if _, dup := form.Questions[q.ID]; !dup {
			form.Order = append(form.Order, q.ID)
		}
		form.Questions[q.ID] = q
	}
	return form, nil
}

// ParseQuestion decodes one question entry. The id must be an integer and the
// type one of the known question types.
func ParseQuestion(data []byte) (Question, error) {
	var wire struct {
		ID         json.RawMessage `json:"id"`
		Text       *string         `json:"text"`
		Type       *string         `json:"type"`
		Required   json.RawMessage `json:"required"`
		OrderIndex *int            `json:"order_index"`
		ImageURL   *string         `json:"image_url"`
		Options    json.RawMessage `json:"options_json"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Question{}, fmt.Errorf("%w: question: %v", ErrMalformed, err)
	}

	if len(wire.ID) == 0 || isNull(wire.ID) {
		return Question{}, fmt.Errorf("%w: question without id", ErrMalformed)
	}
	id, err := intOf(wire.ID)
	if err != nil {
		return Question{}, fmt.Errorf("%w: question id: %v", ErrMalformed, err)
	}

	q := Question{
		ID:         int(id),
		OrderIndex: wire.OrderIndex,
		ImageURL:   wire.ImageURL,
	}
	if wire.Text != nil {
		q.Text = *wire.Text
	}
	if wire.Type != nil {
		q.Type = QuestionType(*wire.Type)
	}
	if !q.Type.Valid() {
		return Question{}, fmt.Errorf("%w: question %d: unknown type %q", ErrMalformed, q.ID, q.Type)
	}
	if q.Required, err = truthy(wire.Required, false); err != nil {
		return Question{}, fmt.Errorf("%w: question %d required: %v", ErrMalformed, q.ID, err)
	}
	if q.Options, err = ParseOptions(wire.Options); err != nil {
		return Question{}, fmt.Errorf("%w: question %d options: %v", ErrMalformed, q.ID, err)
	}
	return q, nil
}

// ParseOptions decodes options_json. The payload may be an object, null, or a
// string holding JSON; a string that does not decode to an object counts as
// no options, as does any other non-object shape.
func ParseOptions(raw json.RawMessage) (Options, error) {
	opts := Options{Raw: map[string]json.RawMessage{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return opts, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return opts, nil
		}
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &opts.Raw); err != nil {
		opts.Raw = map[string]json.RawMessage{}
		return opts, nil
	}

	var err error
	if opts.Choices, err = listOf(opts.Raw["choices"]); err != nil {
		return opts, fmt.Errorf("choices: %w", err)
	}
	if opts.Choices == nil {
		if opts.Choices, err = listOf(opts.Raw["options"]); err != nil {
			return opts, fmt.Errorf("options: %w", err)
		}
	}

	if rc, ok := opts.Raw["required_count"]; ok && len(rc) > 0 && rc[0] != '"' {
		var n json.Number
		if json.Unmarshal(rc, &n) == nil {
			if i, err := n.Int64(); err == nil && i >= 0 {
				c := int(i)
				opts.RequiredCount = &c
			}
		}
	}

	if list, err := listOf(opts.Raw["list"]); err != nil {
		return opts, fmt.Errorf("list: %w", err)
	} else if list != nil {
		opts.HasList = true
		opts.List = list
	}

	if rawRange, ok := opts.Raw["range"]; ok {
		var bounds map[string]json.RawMessage
		if json.Unmarshal(rawRange, &bounds) == nil && bounds != nil {
			r, err := parseRange(bounds)
			if err != nil {
				return opts, fmt.Errorf("range: %w", err)
			}
			opts.Range = &r
		}
	}
	return opts, nil
}

func parseRange(bounds map[string]json.RawMessage) (Range, error) {
	r := Range{Step: 1}
	var err error
	if raw, ok := bounds["start"]; ok {
		if r.Start, err = boundOf(raw); err != nil {
			return r, fmt.Errorf("start: %v", err)
		}
	}
	if raw, ok := bounds["end"]; ok {
		if r.End, err = boundOf(raw); err != nil {
			return r, fmt.Errorf("end: %v", err)
		}
	}
	if raw, ok := bounds["step"]; ok && !isNull(raw) {
		v, err := value.FromJSON(raw)
		if err != nil {
			return r, fmt.Errorf("step: %v", err)
		}
		if !v.IsEmpty() {
			if r.Step, err = truncate(v); err != nil {
				return r, fmt.Errorf("step: %v", err)
			}
		}
	}
	if r.Step == 0 {
		r.Step = 1
	}
	return r, nil
}

func boundOf(raw json.RawMessage) (int64, error) {
	v, err := value.FromJSON(raw)
	if err != nil {
		return 0, err
	}
	return truncate(v)
}

// truncate converts a range bound to an integer, dropping any fraction
// toward zero the way the forms service's int() does. Integer strings are
// accepted too.
func truncate(v value.Value) (int64, error) {
	if i, ok := v.Int(); ok {
		return i, nil
	}
	f, ok := v.Float()
	if !ok || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s is not an integer", v.Key())
	}
	return int64(math.Trunc(f)), nil
}

// listOf returns nil when raw is absent or not a JSON array.
func listOf(raw json.RawMessage) ([]value.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := value.FromJSON(raw)
	if err != nil {
		if errors.Is(err, value.ErrObject) {
			var probe []json.RawMessage
			if json.Unmarshal(raw, &probe) == nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	items, ok := v.Items()
	if !ok {
		return nil, nil
	}
	return items, nil
}

func intOf(raw json.RawMessage) (int64, error) {
	v, err := value.FromJSON(raw)
	if err != nil {
		return 0, err
	}
	i, ok := v.Int()
	if !ok {
		return 0, fmt.Errorf("%s is not an integer", v.Key())
	}
	return i, nil
}

// truthy follows the forms service's loose notion of a flag: absent means
// def, null and empty values mean false.
func truthy(raw json.RawMessage, def bool) (bool, error) {
	if len(raw) == 0 {
		return def, nil
	}
	v, err := value.FromJSON(raw)
	if err != nil {
		return false, err
	}
	if b, ok := v.Boolean(); ok {
		return b, nil
	}
	if f, ok := v.Float(); ok {
		return f != 0, nil
	}
	return !v.IsEmpty(), nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

package validation

import (
	"encoding/json"
	"fmt"

	"github.com/lshigami/formresponses/pkg/formschema"
	"github.com/lshigami/formresponses/pkg/value"
)

// CheckOptions applies the authoring rules for a question's options payload.
// A question that fails here could not have been saved by the forms service.
func CheckOptions(q formschema.Question) error {
	raw := q.Options.Raw
	switch q.Type {
	case formschema.SingleChoice, formschema.MultiChoice:
		choices, ok := raw["choices"]
		if !ok {
			return reject(q, "%s requires options_json.choices", q.Type)
		}
		items, isList := decodeList(choices)
		if !isList || len(items) == 0 {
			return reject(q, "choices must be non-empty list")
		}
		if q.Type == formschema.MultiChoice {
			if rc, ok := raw["required_count"]; ok && string(rc) != "null" && q.Options.RequiredCount == nil {
				return reject(q, "required_count must be >= 0")
			}
		}
	case formschema.Numeric:
		_, hasList := raw["list"]
		_, hasRange := raw["range"]
		if !hasList && !hasRange {
			return reject(q, "numeric requires options_json.list or options_json.range")
		}
		if hasList {
			items, isList := decodeList(raw["list"])
			if !isList || len(items) == 0 {
				return reject(q, "numeric list must be non-empty list")
			}
			for _, item := range items {
				if item.Kind() != value.Number {
					return reject(q, "numeric list must contain only numbers")
				}
			}
		}
		if hasRange {
			var bounds map[string]json.RawMessage
			if err := json.Unmarshal(raw["range"], &bounds); err != nil || !hasKeys(bounds, "start", "end", "step") {
				return reject(q, "range requires start,end,step")
			}
			step, err := value.FromJSON(bounds["step"])
			if f, ok := step.Float(); err != nil || !ok || f == 0 {
				return reject(q, "range.step must be non-zero number")
			}
		}
	}
	return nil
}

func decodeList(raw json.RawMessage) ([]value.Value, bool) {
	v, err := value.FromJSON(raw)
	if err != nil {
		return nil, false
	}
	return v.Items()
}

func hasKeys(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// Drift describes a fetched question that breaks the authoring rules.
type Drift struct {
	QuestionID int
	Problem    string
}

func (d Drift) String() string { return fmt.Sprintf("question %d: %s", d.QuestionID, d.Problem) }

// CheckForm runs CheckOptions over every question of a form in payload order.
func CheckForm(form *formschema.Form) []Drift {
	var drifts []Drift
	for _, id := range form.Order {
		if err := CheckOptions(form.Questions[id]); err != nil {
			drifts = append(drifts, Drift{QuestionID: id, Problem: err.Error()})
		}
	}
	return drifts
}

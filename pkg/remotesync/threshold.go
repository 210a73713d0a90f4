package remotesync

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Threshold decides whether answers carry enough data to be worth syncing.
type Threshold func(model.Answers) bool

// And combines two thresholds.
func (t Threshold) And(other Threshold) Threshold {
	return func(answers model.Answers) bool {
		return t(answers) && other(answers)
	}
}

// RequireAll holds when every field has content.
func RequireAll(ids ...model.FieldID) Threshold {
	return func(answers model.Answers) bool {
		for _, id := range ids {
			if !present(answers.Get(id)) {
				return false
			}
		}
		return true
	}
}

// RequireAny holds when at least one field has content. With no ids it always
// holds.
func RequireAny(ids ...model.FieldID) Threshold {
	return func(answers model.Answers) bool {
		if len(ids) == 0 {
			return true
		}
		for _, id := range ids {
			if present(answers.Get(id)) {
				return true
			}
		}
		return false
	}
}

// DefaultThreshold requires a name plus an email or phone.
func DefaultThreshold() Threshold {
	return RequireAll("name").And(RequireAny("email", "phone"))
}

// FromPolicy builds the threshold declared by a schema. A nil policy yields
// DefaultThreshold.
func FromPolicy(policy *model.SyncPolicy) Threshold {
	if policy == nil {
		return DefaultThreshold()
	}
	return RequireAll(policy.Required...).And(RequireAny(policy.AnyOf...))
}

func present(v model.Value) bool {
	if v.IsMulti() {
		return len(v.Selected()) > 0
	}
	return strings.TrimSpace(v.String()) != ""
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Value is a single answer. Text, number and single choice answers carry one
// string (numbers keep the raw input); multi choice answers carry the selected
// options in selection order. The zero Value is unset.
type Value struct {
	text    string
	choices []string
	multi   bool
}

// Text builds a single-string value.
func Text(s string) Value {
	return Value{text: s}
}

// Choices builds a multi-choice value. A nil or empty selection is still a
// multi-choice value, which differs from an unset answer only in IsMulti.
func Choices(selected ...string) Value {
	return Value{choices: slices.Clone(selected), multi: true}
}

// String returns the single-string payload. Multi-choice values join their
// selection with ", " for display.
func (v Value) String() string {
	if v.multi {
		return strings.Join(v.choices, ", ")
	}
	return v.text
}

// Selected returns a copy of the multi-choice selection.
func (v Value) Selected() []string {
	if !v.multi {
		return nil
	}
	return slices.Clone(v.choices)
}

// IsMulti reports whether the value holds a selection set.
func (v Value) IsMulti() bool {
	return v.multi
}

// IsZero reports whether the value carries no content.
func (v Value) IsZero() bool {
	if v.multi {
		return len(v.choices) == 0
	}
	return v.text == ""
}

// Contains reports whether a multi-choice value selected option, or a single
// value equals it.
func (v Value) Contains(option string) bool {
	if v.multi {
		return slices.Contains(v.choices, option)
	}
	return v.text == option
}

// Equal reports whether two values hold the same payload. go-cmp uses it.
func (v Value) Equal(other Value) bool {
	if v.multi != other.multi {
		return false
	}
	if v.multi {
		return slices.Equal(v.choices, other.choices)
	}
	return v.text == other.text
}

// MarshalJSON encodes single values as a JSON string and selections as an
// array of strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.multi {
		choices := v.choices
		if choices == nil {
			choices = []string{}
		}
		return json.Marshal(choices)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON string, number, array of strings or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case '[':
		var selected []string
		if err := json.Unmarshal(trimmed, &selected); err != nil {
			return fmt.Errorf("model: value array must hold strings: %w", err)
		}
		*v = Choices(selected...)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("model: unsupported value %s", string(trimmed))
		}
		*v = Text(n.String())
		return nil
	}
}

// Answers maps field ids to their current value.
type Answers map[FieldID]Value

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, value := range a {
		if value.multi {
			value.choices = slices.Clone(value.choices)
		}
		out[id] = value
	}
	return out
}

// Get returns the value stored for id, or the zero Value.
func (a Answers) Get(id FieldID) Value {
	if a == nil {
		return Value{}
	}
	return a[id]
}

// Plain converts answers into JSON-friendly primitives (string or []string).
func (a Answers) Plain() map[string]any {
	out := make(map[string]any, len(a))
	for id, value := range a {
		if value.multi {
			out[string(id)] = value.Selected()
			continue
		}
		out[string(id)] = value.text
	}
	return out
}

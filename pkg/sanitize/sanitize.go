// Package sanitize strips markup from free-text answers before they are
// stored or sent anywhere.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/goliatone/go-formflow/pkg/model"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy

	// tagStart matches the opening of an element, end tag, comment or
	// doctype at the start of the input.
	tagStart = regexp.MustCompile(`^(?:</?[A-Za-z][A-Za-z0-9-]*(?:[\s/>]|$)|<!)`)
)

func strictPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes every HTML element, unescapes the entities bluemonday leaves
// behind and normalises to NFC. Angle brackets that do not open a tag, as in
// "Ada <ada@example.com>" or "1 < 2", are kept as typed. Surrounding
// whitespace is preserved so that partially typed answers are not rewritten
// under the user.
func Text(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.ContainsAny(raw, "<>&") {
		raw = html.UnescapeString(strictPolicy().Sanitize(escapeStrayBrackets(raw)))
	}
	return norm.NFC.String(raw)
}

// escapeStrayBrackets entity-encodes every '<' that does not start markup so
// the sanitizer treats it as text.
func escapeStrayBrackets(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		if raw[i] == '<' && !tagStart.MatchString(raw[i:]) {
			b.WriteString("&lt;")
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

// Value sanitises every string carried by v.
func Value(v model.Value) model.Value {
	if v.IsMulti() {
		selected := v.Selected()
		for i, option := range selected {
			selected[i] = Text(option)
		}
		return model.Choices(selected...)
	}
	if v.IsZero() {
		return v
	}
	return model.Text(Text(v.String()))
}

// Answers returns a sanitised copy of answers.
func Answers(answers model.Answers) model.Answers {
	out := make(model.Answers, len(answers))
	for id, value := range answers {
		out[id] = Value(value)
	}
	return out
}

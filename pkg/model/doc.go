// Package model defines the static description of a multi-step form and the
// values a session collects for it.
//
// A FormSchema lists ordered steps and a field table. Every field belongs to
// exactly one step; Validate reports schemas that break that rule, reference
// unknown fields, or declare choice fields without options. Answers are held as
// Value, a small tagged type that is either a single string (text, number and
// single choice input) or a set of selected options (multi choice). Values
// encode to JSON as a plain string or an array of strings so persisted
// snapshots and remote payloads stay readable.
//
// Validation rules follow the canonical identifiers (min/max,
// minLength/maxLength, pattern) with string parameters stored under
// Params["value"] or Params["pattern"].
package model

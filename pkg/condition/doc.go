// Package condition compiles the small expression language used by
// FieldDefinition.VisibleWhen.
//
// Supported forms:
//   - presence checks: `website`
//   - comparisons: `stage == "idea"`, `team_size != 1`, `has_bookkeeper == true`
//   - composition: `a == "x" && (b || !c)`
//
// Identifiers are field ids. Comparing a multi-choice field against a string
// tests membership of that option. Unset fields are falsy and compare equal to
// null.
package condition

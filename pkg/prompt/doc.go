// Package prompt runs a flow.Controller as an interactive terminal wizard.
//
// Each step prompts its visible fields, prefilled with resumed answers, then
// offers navigation: next, back, jump to any step, submit, or save and quit.
// Prompts go through a PromptDriver so the wizard can be scripted in tests;
// NewSurveyDriver is the terminal implementation.
package prompt

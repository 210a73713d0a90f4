package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/registry"
)

// Outcome is how a wizard run ended.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeSaved     Outcome = "saved"
	OutcomeAborted   Outcome = "aborted"
)

// Result reports the end of a run. Final is set for OutcomeSubmitted.
type Result struct {
	Outcome Outcome
	Final   flow.FinalAnswers
}

type action string

const (
	actionNext   action = "Next step"
	actionBack   action = "Previous step"
	actionJump   action = "Jump to step..."
	actionSubmit action = "Submit"
	actionSave   action = "Save and quit"
)

const noSelection = "(no answer)"

// Option configures a Wizard.
type Option func(*Wizard)

// WithDriver overrides the prompt driver.
func WithDriver(driver PromptDriver) Option {
	return func(w *Wizard) {
		if driver != nil {
			w.driver = driver
		}
	}
}

// WithLogger sets the wizard logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSave registers the callback run on "save and quit", typically the
// progress store's Flush.
func WithSave(fn func(context.Context) bool) Option {
	return func(w *Wizard) {
		w.save = fn
	}
}

// Wizard drives a controller from the terminal.
type Wizard struct {
	controller *flow.Controller
	finalizer  *flow.Finalizer
	driver     PromptDriver
	logger     *zap.Logger
	save       func(context.Context) bool
}

// NewWizard returns a wizard over controller. Submissions go through
// finalizer.
func NewWizard(controller *flow.Controller, finalizer *flow.Finalizer, opts ...Option) *Wizard {
	w := &Wizard{
		controller: controller,
		finalizer:  finalizer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.driver == nil {
		w.driver = NewSurveyDriver(nil)
	}
	return w
}

// Run prompts until the form is submitted, saved or aborted. An abort returns
// ErrAborted alongside OutcomeAborted.
func (w *Wizard) Run(ctx context.Context) (Result, error) {
	c := w.controller
	if c.Resumed() {
		resume, err := w.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Saved answers found (%d%% complete). Continue where you left off?", percent(c.Progress())),
			Default: true,
		})
		if err != nil {
			return w.end(err)
		}
		if !resume {
			if err := c.Reset(ctx); err != nil {
				w.logger.Warn("prompt: could not clear saved answers", zap.Error(err))
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := w.renderStep(ctx); err != nil {
			return w.end(err)
		}
		if err := w.askFields(ctx); err != nil {
			return w.end(err)
		}

		act, err := w.chooseAction(ctx)
		if err != nil {
			return w.end(err)
		}
		switch act {
		case actionNext:
			if _, err := c.Next(); err != nil {
				if err := w.info(ctx, "Please complete this step first."); err != nil {
					return w.end(err)
				}
			}
		case actionBack:
			c.Previous()
		case actionJump:
			if err := w.jump(ctx); err != nil {
				return w.end(err)
			}
		case actionSubmit:
			final, err := w.finalizer.Submit(ctx)
			var incomplete *flow.IncompleteFormError
			if errors.As(err, &incomplete) {
				if err := w.reportMissing(ctx, incomplete); err != nil {
					return w.end(err)
				}
				continue
			}
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: OutcomeSubmitted, Final: final}, nil
		case actionSave:
			if w.save != nil {
				w.save(ctx)
			}
			if err := w.info(ctx, "Progress saved. Run the same form again to continue."); err != nil {
				return Result{}, err
			}
			return Result{Outcome: OutcomeSaved}, nil
		}
	}
}

func (w *Wizard) end(err error) (Result, error) {
	if errors.Is(err, ErrAborted) {
		w.logger.Debug("prompt: aborted by user")
		return Result{Outcome: OutcomeAborted}, err
	}
	return Result{}, err
}

func (w *Wizard) info(ctx context.Context, msg string) error {
	return w.driver.Info(ctx, msg)
}

func (w *Wizard) renderStep(ctx context.Context) error {
	c := w.controller
	step := c.Step()
	header := fmt.Sprintf("\n[%d/%d] %s", c.CurrentStep()+1, c.StepCount(), stepTitle(step))
	if err := w.info(ctx, header); err != nil {
		return err
	}
	if step.Description != "" {
		return w.info(ctx, step.Description)
	}
	return nil
}

// askFields prompts every visible field of the current step once. Visibility
// is re-evaluated after each answer so conditional fields appear in place.
func (w *Wizard) askFields(ctx context.Context) error {
	asked := make(map[model.FieldID]bool)
	for {
		var next *model.FieldDefinition
		for _, field := range w.controller.VisibleFields() {
			if !asked[field.ID] {
				next = &field
				break
			}
		}
		if next == nil {
			return nil
		}
		asked[next.ID] = true
		if err := w.askField(ctx, *next); err != nil {
			return err
		}
	}
}

func (w *Wizard) askField(ctx context.Context, field model.FieldDefinition) error {
	c := w.controller
	current := c.Answer(field.ID)
	message := field.DisplayLabel()
	if field.Required {
		message += " *"
	}

	switch field.Kind {
	case model.FieldKindSingleChoice:
		options := displayOptions(field.Options)
		offset := 0
		if !field.Required {
			options = append([]string{noSelection}, options...)
			offset = 1
		}
		def := 0
		for i, option := range field.Options {
			if current.Contains(option) {
				def = i + offset
			}
		}
		idx, err := w.driver.Select(ctx, SelectConfig{Message: message, Options: options, DefaultIndex: def, Help: field.Help})
		if err != nil {
			return err
		}
		if idx < offset || idx >= len(options) {
			return c.ClearAnswer(field.ID)
		}
		return c.SetAnswer(field.ID, model.Text(field.Options[idx-offset]))

	case model.FieldKindMultiChoice:
		var defaults []int
		for i, option := range field.Options {
			if current.Contains(option) {
				defaults = append(defaults, i)
			}
		}
		for {
			picked, err := w.driver.MultiSelect(ctx, SelectConfig{
				Message:  message,
				Options:  displayOptions(field.Options),
				Defaults: defaults,
				Help:     field.Help,
			})
			if err != nil {
				return err
			}
			selected := make([]string, 0, len(picked))
			for _, idx := range picked {
				if idx >= 0 && idx < len(field.Options) {
					selected = append(selected, field.Options[idx])
				}
			}
			value := model.Choices(selected...)
			if err := c.Registry().Check(field, value); err != nil {
				if err := w.info(ctx, "Select at least one option."); err != nil {
					return err
				}
				continue
			}
			return c.SetAnswer(field.ID, value)
		}

	default:
		help := field.Help
		if field.Placeholder != "" && help == "" {
			help = "e.g. " + field.Placeholder
		}
		text, err := w.driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   current.String(),
			Help:      help,
			Validator: w.textValidator(field),
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return c.ClearAnswer(field.ID)
		}
		return c.SetAnswer(field.ID, model.Text(text))
	}
}

// textValidator accepts blank input for optional fields and otherwise defers
// to the registry.
func (w *Wizard) textValidator(field model.FieldDefinition) func(string) error {
	reg := w.controller.Registry()
	return func(s string) error {
		if strings.TrimSpace(s) == "" && !field.Required {
			return nil
		}
		if err := reg.Check(field, model.Text(s)); err != nil {
			return errors.New(registry.Reason(err))
		}
		return nil
	}
}

func (w *Wizard) chooseAction(ctx context.Context) (action, error) {
	c := w.controller
	actions := []action{actionNext, actionBack, actionJump, actionSubmit, actionSave}
	switch {
	case c.IsLast() && c.IsFirst():
		actions = []action{actionSubmit, actionSave}
	case c.IsLast():
		actions = []action{actionSubmit, actionBack, actionJump, actionSave}
	case c.IsFirst():
		actions = []action{actionNext, actionJump, actionSubmit, actionSave}
	}

	labels := make([]string, len(actions))
	for i, a := range actions {
		labels[i] = string(a)
	}
	idx, err := w.driver.Select(ctx, SelectConfig{
		Message: fmt.Sprintf("What next? (%d%% complete)", percent(c.Progress())),
		Options: labels,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(actions) {
		return actionSave, nil
	}
	return actions[idx], nil
}

func (w *Wizard) jump(ctx context.Context) error {
	c := w.controller
	schema := c.Schema()
	labels := make([]string, len(schema.Steps))
	for i, step := range schema.Steps {
		mark := " "
		if c.IsStepComplete(i) {
			mark = "x"
		}
		labels[i] = fmt.Sprintf("[%s] %d. %s", mark, i+1, stepTitle(step))
	}
	idx, err := w.driver.Select(ctx, SelectConfig{
		Message:      "Go to step",
		Options:      labels,
		DefaultIndex: c.CurrentStep(),
	})
	if err != nil {
		return err
	}
	if err := c.GoTo(idx); err != nil {
		return w.info(ctx, err.Error())
	}
	return nil
}

func (w *Wizard) reportMissing(ctx context.Context, incomplete *flow.IncompleteFormError) error {
	lines := []string{"Some required answers are missing:"}
	for _, ref := range incomplete.Missing {
		step, _ := w.controller.Schema().Step(ref.Step)
		lines = append(lines, fmt.Sprintf("  - %s (%s)", ref.Label, stepTitle(step)))
	}
	if err := w.info(ctx, strings.Join(lines, "\n")); err != nil {
		return err
	}
	return w.controller.GoTo(incomplete.FirstStep())
}

func stepTitle(step model.StepDefinition) string {
	if step.Title != "" {
		return step.Title
	}
	return step.ID
}

func displayOptions(options []string) []string {
	out := make([]string, len(options))
	for i, option := range options {
		out[i] = strings.ReplaceAll(option, "_", " ")
	}
	return out
}

func percent(p float64) int {
	return int(p*100 + 0.5)
}

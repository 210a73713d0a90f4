package flow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/registry"
	"github.com/goliatone/go-formflow/pkg/sanitize"
)

// Store is the persistence sink a Controller writes snapshots to.
// *progress.Store satisfies it.
type Store interface {
	Save(snapshot model.Snapshot)
	Load(ctx context.Context, stepCount int) (model.Snapshot, bool)
	Cancel() bool
	Clear(ctx context.Context) error
}

type recordStore interface {
	RecordID(ctx context.Context, session string) (string, bool)
}

// Controller is the step state machine for one form session.
type Controller struct {
	registry *registry.Registry
	store    Store
	logger   *zap.Logger
	clock    clock.Clock

	normalize    func(model.Value) model.Value
	newSessionID func() string
	strict       bool
	observers    []func(Event)

	state    model.FormState
	recordID string
	visited  map[int]bool
	resumed  bool
}

// New builds a Controller over reg. When store holds a usable snapshot the
// session resumes from it; otherwise it starts at step 0 with no answers.
// A nil store keeps the session in memory only.
func New(ctx context.Context, reg *registry.Registry, store Store, opts ...Option) (*Controller, error) {
	if reg == nil {
		return nil, errors.New("flow: registry is required")
	}
	if reg.StepCount() == 0 {
		return nil, fmt.Errorf("%w: schema has no steps", model.ErrInvalidSchema)
	}
	if store == nil {
		store = nopStore{}
	}

	c := &Controller{
		registry:     reg,
		store:        store,
		logger:       zap.NewNop(),
		clock:        clock.Real{},
		normalize:    sanitize.Value,
		newSessionID: newULID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With(zap.String("form", reg.Schema().ID))

	if snap, ok := store.Load(ctx, reg.StepCount()); ok {
		c.restore(snap)
	} else {
		c.start()
	}
	return c, nil
}

func (c *Controller) start() {
	c.state = model.FormState{
		SessionID: c.newSessionID(),
		Answers:   model.Answers{},
	}
	c.recordID = ""
	c.resumed = false
	c.visited = map[int]bool{0: true}
}

func (c *Controller) restore(snap model.Snapshot) {
	answers := make(model.Answers, len(snap.Answers))
	dropped := 0
	for id, value := range snap.Answers {
		if _, ok := c.registry.Field(id); !ok {
			dropped++
			continue
		}
		answers[id] = value
	}
	if dropped > 0 {
		c.logger.Info("flow: dropped restored answers for unknown fields", zap.Int("dropped", dropped))
	}

	sessionID := snap.SessionID
	if sessionID == "" {
		sessionID = c.newSessionID()
	}
	c.state = model.FormState{
		SessionID:   sessionID,
		CurrentStep: snap.CurrentStep,
		Answers:     answers,
	}
	c.recordID = snap.RecordID
	c.resumed = true
	c.visited = make(map[int]bool, snap.CurrentStep+1)
	for i := 0; i <= snap.CurrentStep; i++ {
		c.visited[i] = true
	}
	c.logger.Debug("flow: session resumed",
		zap.String("session", sessionID),
		zap.Int("step", snap.CurrentStep),
		zap.Int("answers", len(answers)),
	)
}

// Resumed reports whether the session was restored from a snapshot.
func (c *Controller) Resumed() bool {
	return c.resumed
}

// Registry returns the field registry the controller validates against.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// Schema returns the form schema.
func (c *Controller) Schema() model.FormSchema {
	return c.registry.Schema()
}

// StepCount returns the number of steps.
func (c *Controller) StepCount() int {
	return c.registry.StepCount()
}

// CurrentStep returns the current step index.
func (c *Controller) CurrentStep() int {
	return c.state.CurrentStep
}

// Step returns the definition of the current step.
func (c *Controller) Step() model.StepDefinition {
	step, _ := c.registry.Schema().Step(c.state.CurrentStep)
	return step
}

// IsFirst reports whether the current step is the first one.
func (c *Controller) IsFirst() bool {
	return c.state.CurrentStep == 0
}

// IsLast reports whether the current step is the last one.
func (c *Controller) IsLast() bool {
	return c.state.CurrentStep == c.registry.StepCount()-1
}

// Next advances one step. It reports false at the last step. Under strict
// navigation an incomplete current step returns ErrStepIncomplete.
func (c *Controller) Next() (bool, error) {
	if c.strict && !c.registry.IsStepComplete(c.state.CurrentStep, c.state.Answers) {
		return false, ErrStepIncomplete
	}
	if c.IsLast() {
		return false, nil
	}
	c.moveTo(c.state.CurrentStep + 1)
	return true, nil
}

// Previous moves back one step. It reports false at the first step.
func (c *Controller) Previous() bool {
	if c.IsFirst() {
		return false
	}
	c.moveTo(c.state.CurrentStep - 1)
	return true
}

// GoTo jumps to any step, complete or not.
func (c *Controller) GoTo(index int) error {
	if index < 0 || index >= c.registry.StepCount() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrStepOutOfRange, index, c.registry.StepCount())
	}
	c.moveTo(index)
	return nil
}

func (c *Controller) moveTo(index int) {
	c.state.CurrentStep = index
	c.visited[index] = true
	c.save()
	c.emit(Event{Kind: EventStep, Step: index})
}

// Visited reports whether the step was shown during this session.
func (c *Controller) Visited(index int) bool {
	return c.visited[index]
}

// SetAnswer stores value for the field after normalising it. The value is not
// validated against the field's rules here; completion checks do that.
func (c *Controller) SetAnswer(id model.FieldID, value model.Value) error {
	field, ok := c.registry.Field(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	if value.IsMulti() != (field.Kind == model.FieldKindMultiChoice) && !value.IsZero() {
		return fmt.Errorf("%w: %s is %s", ErrValueKind, id, field.Kind)
	}
	if c.normalize != nil {
		value = c.normalize(value)
	}
	c.state.Answers[id] = value
	c.save()
	c.emit(Event{Kind: EventAnswer, Step: c.state.CurrentStep, Field: id})
	return nil
}

// ClearAnswer unsets the field.
func (c *Controller) ClearAnswer(id model.FieldID) error {
	if _, ok := c.registry.Field(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	if _, ok := c.state.Answers[id]; !ok {
		return nil
	}
	delete(c.state.Answers, id)
	c.save()
	c.emit(Event{Kind: EventAnswer, Step: c.state.CurrentStep, Field: id})
	return nil
}

// Answer returns the stored value, or the zero Value when unset.
func (c *Controller) Answer(id model.FieldID) model.Value {
	return c.state.Answers.Get(id)
}

// State returns a deep copy of the session state.
func (c *Controller) State() model.FormState {
	return c.state.Clone()
}

// Snapshot returns the state as handed to the store.
func (c *Controller) Snapshot() model.Snapshot {
	return model.Snapshot{
		FormID:    c.registry.Schema().ID,
		RecordID:  c.recordID,
		FormState: c.state.Clone(),
	}
}

// VisibleFields returns the current step's fields that are shown.
func (c *Controller) VisibleFields() []model.FieldDefinition {
	return c.registry.VisibleFields(c.state.CurrentStep, c.state.Answers)
}

// IsStepComplete reports whether step index has every required field satisfied.
func (c *Controller) IsStepComplete(index int) bool {
	return c.registry.IsStepComplete(index, c.state.Answers)
}

// IsFormComplete reports whether every step is complete.
func (c *Controller) IsFormComplete() bool {
	return c.registry.IsFormComplete(c.state.Answers)
}

// Missing lists unsatisfied required fields across all steps.
func (c *Controller) Missing() []registry.FieldRef {
	return c.registry.AllMissing(c.state.Answers)
}

// Progress returns the share of required fields satisfied.
func (c *Controller) Progress() float64 {
	return c.registry.Progress(c.state.Answers)
}

// Reset discards the session: persisted progress is cleared and a fresh
// session starts at step 0. The clear error is informational.
func (c *Controller) Reset(ctx context.Context) error {
	err := c.store.Clear(ctx)
	c.start()
	c.emit(Event{Kind: EventReset})
	return err
}

// Close abandons any snapshot still waiting for the debounce window.
func (c *Controller) Close() {
	if c.store.Cancel() {
		c.logger.Debug("flow: pending save dropped on close", zap.String("session", c.state.SessionID))
	}
}

func (c *Controller) save() {
	c.store.Save(c.Snapshot())
}

func (c *Controller) emit(event Event) {
	for _, fn := range c.observers {
		fn(event)
	}
}

type nopStore struct{}

func (nopStore) Save(model.Snapshot)                              {}
func (nopStore) Load(context.Context, int) (model.Snapshot, bool) { return model.Snapshot{}, false }
func (nopStore) Cancel() bool                                     { return false }
func (nopStore) Clear(context.Context) error                      { return nil }

package flow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/model"
)

// FinalAnswers is the completed answer set handed to the completion callback.
// Answers for fields hidden by their visibility condition are left out.
type FinalAnswers struct {
	SessionID   string        `json:"sessionId"`
	FormID      string        `json:"formId"`
	RecordID    string        `json:"recordId,omitempty"`
	Answers     model.Answers `json:"answers"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

// CompletionFunc receives the final answers after persisted progress was
// cleared.
type CompletionFunc func(FinalAnswers)

// Finalizer is the authoritative submission gate for a Controller.
type Finalizer struct {
	controller *Controller
	store      Store
	onComplete CompletionFunc
}

// NewFinalizer wires the submission gate. A nil store falls back to the
// controller's own store.
func NewFinalizer(controller *Controller, store Store, onComplete CompletionFunc) *Finalizer {
	if store == nil {
		store = controller.store
	}
	return &Finalizer{
		controller: controller,
		store:      store,
		onComplete: onComplete,
	}
}

// Submit completes the form. An incomplete form returns *IncompleteFormError
// and leaves the state and persisted progress untouched. On success persisted
// progress is cleared, the callback runs, and the controller starts a fresh
// session.
func (f *Finalizer) Submit(ctx context.Context) (FinalAnswers, error) {
	c := f.controller
	if !c.IsFormComplete() {
		return FinalAnswers{}, &IncompleteFormError{Missing: c.Missing()}
	}

	final := FinalAnswers{
		SessionID:   c.state.SessionID,
		FormID:      c.registry.Schema().ID,
		RecordID:    f.recordID(ctx),
		Answers:     c.registry.VisibleAnswers(c.state.Answers),
		SubmittedAt: c.clock.Now(),
	}

	f.store.Cancel()
	if err := f.store.Clear(ctx); err != nil {
		c.logger.Warn("flow: clearing progress after submit failed",
			zap.String("session", final.SessionID),
			zap.Error(err),
		)
	}

	if f.onComplete != nil {
		f.onComplete(final)
	}

	c.logger.Info("flow: form submitted",
		zap.String("session", final.SessionID),
		zap.String("record", final.RecordID),
		zap.Int("answers", len(final.Answers)),
	)
	c.start()
	c.emit(Event{Kind: EventSubmit})
	return final, nil
}

func (f *Finalizer) recordID(ctx context.Context) string {
	if rs, ok := f.store.(recordStore); ok {
		if id, ok := rs.RecordID(ctx, f.controller.state.SessionID); ok {
			return id
		}
	}
	return f.controller.recordID
}

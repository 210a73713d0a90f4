package flow

import "github.com/goliatone/go-formflow/pkg/model"

// EventKind names a controller state change.
type EventKind string

const (
	EventAnswer EventKind = "answer"
	EventStep   EventKind = "step"
	EventReset  EventKind = "reset"
	EventSubmit EventKind = "submit"
)

// Event is delivered to observers after the state change was applied.
type Event struct {
	Kind  EventKind
	Step  int
	Field model.FieldID
}

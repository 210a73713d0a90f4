package flow

import (
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNormalizer rewrites every value before it is stored, for example
// sanitize.Value. Nil keeps values as given.
func WithNormalizer(fn func(model.Value) model.Value) Option {
	return func(c *Controller) {
		c.normalize = fn
	}
}

// WithSessionIDs overrides the session id generator.
func WithSessionIDs(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newSessionID = fn
		}
	}
}

// WithStrictNavigation makes Next refuse to leave an incomplete step.
func WithStrictNavigation() Option {
	return func(c *Controller) {
		c.strict = true
	}
}

// WithObserver registers a callback for state changes.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithClock injects the time source used for submission timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func newULID() string {
	return ulid.Make().String()
}

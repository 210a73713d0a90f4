package progress

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
)

// DefaultDebounce is the debounce window applied when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// DefaultNamespace prefixes keys when no namespace is configured.
const DefaultNamespace = "formflow"

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the debounce window. Non-positive durations are
// ignored.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithNamespace sets the key prefix, typically the form id.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if trimmed := strings.TrimSpace(ns); trimmed != "" {
			s.namespace = trimmed
		}
	}
}

// WithClock injects the time source used for debounce timers.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAfterSave registers a hook invoked after every debounced save fires,
// whether or not the local write succeeded. Hooks run on the timer goroutine
// and must not block.
func WithAfterSave(fn func(model.Snapshot)) Option {
	return func(s *Store) {
		if fn != nil {
			s.afterSave = append(s.afterSave, fn)
		}
	}
}

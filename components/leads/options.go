package leads

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultRoutePath    = "/api/leads"
	defaultMaxBodyBytes = 64 << 10
)

type GuardFunc func(r *http.Request) error

type Options struct {
	RoutePath    string
	MaxBodyBytes int64
	Guard        GuardFunc
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() string
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath:    defaultRoutePath,
		MaxBodyBytes: defaultMaxBodyBytes,
		Logger:       zap.NewNop(),
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.RoutePath == "" {
		opts.RoutePath = defaultRoutePath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RoutePath = path
	}
}

func WithMaxBodyBytes(n int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxBodyBytes = n
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithLogger(logger *zap.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Logger = logger
	}
}

// WithClock overrides the timestamp source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Now = now
	}
}

// WithIDGenerator overrides the uuid generator for new leads.
func WithIDGenerator(fn func() string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.NewID = fn
	}
}

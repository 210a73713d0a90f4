package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/progress"
	"github.com/goliatone/go-formflow/pkg/registry"
	"github.com/goliatone/go-formflow/pkg/remotesync"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/storage"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects a custom schema loader.
func WithLoader(loader *schema.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithStorage selects the key-value backend progress is persisted to.
func WithStorage(backend progress.Storage) Option {
	return func(o *Orchestrator) {
		o.storage = backend
	}
}

// WithDebounce overrides the progress debounce window.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.debounce = d
	}
}

// WithClock injects the clock shared by the store and the controller.
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSync enables remote sync of partial answers to endpoint. The schema's
// sync policy becomes the threshold unless opts set one.
func WithSync(endpoint string, opts ...remotesync.Option) Option {
	return func(o *Orchestrator) {
		o.syncEndpoint = endpoint
		o.syncOptions = append(o.syncOptions, opts...)
	}
}

// WithOnComplete registers the callback run after a successful submission.
func WithOnComplete(fn flow.CompletionFunc) Option {
	return func(o *Orchestrator) {
		o.onComplete = fn
	}
}

// WithFlowOptions forwards options to every controller created.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(o *Orchestrator) {
		o.flowOptions = append(o.flowOptions, opts...)
	}
}

// Orchestrator opens form sessions with shared configuration. Missing
// dependencies default to the built-in implementations: an in-memory backend,
// the wall clock and a no-op logger.
type Orchestrator struct {
	loader       *schema.Loader
	storage      progress.Storage
	debounce     time.Duration
	clock        clock.Clock
	logger       *zap.Logger
	syncEndpoint string
	syncOptions  []remotesync.Option
	onComplete   flow.CompletionFunc
	flowOptions  []flow.Option
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		debounce: progress.DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.loader == nil {
		o.loader = schema.NewLoader()
	}
	if o.storage == nil {
		o.storage = storage.NewMemory()
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	return o
}

// Request describes the form a session should run.
type Request struct {
	// Source identifies where the schema document lives. Ignored when Schema
	// is supplied.
	Source schema.Source

	// Schema bypasses the loader when the caller already holds a schema.
	Schema *model.FormSchema
}

// Session bundles the components of one running form. Syncer is nil when
// remote sync is disabled.
type Session struct {
	Registry   *registry.Registry
	Store      *progress.Store
	Controller *flow.Controller
	Finalizer  *flow.Finalizer
	Syncer     *remotesync.Syncer
}

// Open resolves the schema and assembles a session, resuming persisted
// progress when the backend holds any for the form.
func (o *Orchestrator) Open(ctx context.Context, req Request) (*Session, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	form, err := o.resolveSchema(ctx, req)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(form)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	store := progress.New(o.storage,
		progress.WithNamespace(form.ID),
		progress.WithDebounce(o.debounce),
		progress.WithClock(o.clock),
		progress.WithLogger(o.logger.Named("progress")),
	)

	session := &Session{Registry: reg, Store: store}
	if o.syncEndpoint != "" {
		opts := append([]remotesync.Option{
			remotesync.WithThreshold(remotesync.FromPolicy(form.Sync)),
			remotesync.WithLogger(o.logger.Named("remotesync")),
		}, o.syncOptions...)
		syncer, err := remotesync.New(o.syncEndpoint, store, opts...)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		store.OnSave(syncer.Attach())
		session.Syncer = syncer
	}

	flowOpts := append([]flow.Option{
		flow.WithLogger(o.logger.Named("flow")),
		flow.WithClock(o.clock),
	}, o.flowOptions...)
	controller, err := flow.New(ctx, reg, store, flowOpts...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	session.Controller = controller
	session.Finalizer = flow.NewFinalizer(controller, store, o.onComplete)

	o.logger.Debug("orchestrator: session opened",
		zap.String("form", form.ID),
		zap.String("session", controller.State().SessionID),
		zap.Bool("resumed", controller.Resumed()),
		zap.Bool("sync", session.Syncer != nil),
	)
	return session, nil
}

func (o *Orchestrator) resolveSchema(ctx context.Context, req Request) (model.FormSchema, error) {
	if req.Schema != nil {
		return *req.Schema, nil
	}
	if req.Source.Location == "" {
		return model.FormSchema{}, errors.New("orchestrator: source or schema is required")
	}
	form, err := o.loader.LoadSchema(ctx, req.Source)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("orchestrator: load schema: %w", err)
	}
	return form, nil
}

// Close persists any pending progress and waits for in-flight syncs.
func (s *Session) Close(ctx context.Context) {
	if s == nil {
		return
	}
	s.Store.Flush(ctx)
	if s.Syncer != nil {
		s.Syncer.Wait()
	}
}

// Discard drops pending progress without writing it and waits for in-flight
// syncs.
func (s *Session) Discard() {
	if s == nil {
		return
	}
	s.Controller.Close()
	if s.Syncer != nil {
		s.Syncer.Wait()
	}
}

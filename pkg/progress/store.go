package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Storage is the durable key-value store snapshots are written to. Get
// reports a missing key with ok == false and a nil error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

const (
	keyAnswers = "answers"
	keySession = "session"
	keyStep    = "step"
	keyRecord  = "record"
)

// Store debounces snapshot writes to a Storage.
type Store struct {
	storage   Storage
	namespace string
	debounce  time.Duration
	clock     clock.Clock
	logger    *zap.Logger

	hookMu    sync.RWMutex
	afterSave []func(model.Snapshot)

	// writeMu orders timer writes against Flush and Clear so a write that
	// lost the race to Clear can never land after it.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending *model.Snapshot
	timer   clock.Timer
	gen     uint64
}

// New constructs a Store over storage.
func New(storage Storage, options ...Option) *Store {
	s := &Store{
		storage:   storage,
		namespace: DefaultNamespace,
		debounce:  DefaultDebounce,
		clock:     clock.Real{},
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Namespace returns the key prefix.
func (s *Store) Namespace() string {
	return s.namespace
}

// Debounce returns the configured window.
func (s *Store) Debounce() time.Duration {
	return s.debounce
}

// OnSave registers an after-save hook on an existing store. See WithAfterSave.
func (s *Store) OnSave(fn func(model.Snapshot)) {
	if fn == nil {
		return
	}
	s.hookMu.Lock()
	s.afterSave = append(s.afterSave, fn)
	s.hookMu.Unlock()
}

func (s *Store) key(name string) string {
	return s.namespace + ":" + name
}

// Save schedules snapshot to be written once the debounce window elapses
// without another Save. The snapshot is copied.
func (s *Store) Save(snapshot model.Snapshot) {
	snap := snapshot.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		s.fire(gen)
	})
}

// Pending reports whether a snapshot is waiting for its debounce timer.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Store) fire(gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, ok := s.take(func() bool { return gen == s.gen })
	if !ok {
		return
	}
	s.commit(context.Background(), snap)
}

// take removes the pending snapshot when accept holds, invalidating any
// outstanding timer.
func (s *Store) take(accept func() bool) (model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || (accept != nil && !accept()) {
		return model.Snapshot{}, false
	}
	snap := *s.pending
	s.pending = nil
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return snap, true
}

// Flush writes the pending snapshot now, if any. It reports whether a write
// was attempted.
func (s *Store) Flush(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, ok := s.take(nil)
	if !ok {
		return false
	}
	s.commit(ctx, snap)
	return true
}

// Cancel drops the pending snapshot without writing it. It reports whether a
// snapshot was dropped.
func (s *Store) Cancel() bool {
	_, dropped := s.take(nil)
	return dropped
}

func (s *Store) commit(ctx context.Context, snap model.Snapshot) {
	snap.SavedAt = s.clock.Now()
	if err := s.write(ctx, snap); err != nil {
		s.logger.Warn("progress: save failed, continuing in memory",
			zap.String("namespace", s.namespace),
			zap.String("session", snap.SessionID),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("progress: snapshot saved",
			zap.String("namespace", s.namespace),
			zap.String("session", snap.SessionID),
			zap.Int("step", snap.CurrentStep),
			zap.Int("answers", len(snap.Answers)),
		)
	}

	s.hookMu.RLock()
	hooks := slices.Clone(s.afterSave)
	s.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(snap.Clone())
	}
}

func (s *Store) write(ctx context.Context, snap model.Snapshot) error {
	answers := snap.Answers
	if answers == nil {
		answers = model.Answers{}
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("progress: encode answers: %w", err)
	}
	if err := s.storage.Set(ctx, s.key(keyAnswers), string(payload)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := s.storage.Set(ctx, s.key(keySession), snap.SessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := s.storage.Set(ctx, s.key(keyStep), strconv.Itoa(snap.CurrentStep)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Load reads the persisted snapshot. It returns false when nothing usable is
// stored. A step index outside [0, stepCount) is reset to 0 while the answers
// are kept.
func (s *Store) Load(ctx context.Context, stepCount int) (model.Snapshot, bool) {
	raw, ok, err := s.storage.Get(ctx, s.key(keyAnswers))
	if err != nil {
		s.logger.Warn("progress: load failed, starting fresh",
			zap.String("namespace", s.namespace),
			zap.Error(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)),
		)
		return model.Snapshot{}, false
	}
	if !ok {
		return model.Snapshot{}, false
	}

	var answers model.Answers
	if err := json.Unmarshal([]byte(raw), &answers); err != nil || answers == nil {
		if err == nil {
			err = fmt.Errorf("answers payload is %q", raw)
		}
		s.logger.Warn("progress: discarding corrupt snapshot",
			zap.String("namespace", s.namespace),
			zap.Error(fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)),
		)
		return model.Snapshot{}, false
	}

	snap := model.Snapshot{
		FormState: model.FormState{Answers: answers},
	}
	snap.SessionID = s.getString(ctx, keySession)
	if id, ok := s.RecordID(ctx, snap.SessionID); ok {
		snap.RecordID = id
	}

	step, err := strconv.Atoi(strings.TrimSpace(s.getString(ctx, keyStep)))
	if err != nil || step < 0 || step >= stepCount {
		if err == nil {
			s.logger.Info("progress: restored step out of range, starting at first step",
				zap.String("namespace", s.namespace),
				zap.Int("step", step),
				zap.Int("steps", stepCount),
			)
		}
		step = 0
	}
	snap.CurrentStep = step
	return snap, true
}

func (s *Store) getString(ctx context.Context, name string) string {
	value, ok, err := s.storage.Get(ctx, s.key(name))
	if err != nil {
		s.logger.Warn("progress: read failed",
			zap.String("key", s.key(name)),
			zap.Error(err),
		)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

// Clear drops any pending write and removes every persisted key. It is
// idempotent. The returned error is informational; callers may ignore it.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.take(nil)

	var firstErr error
	for _, name := range []string{keyAnswers, keySession, keyStep, keyRecord} {
		if err := s.storage.Remove(ctx, s.key(name)); err != nil {
			s.logger.Warn("progress: clear failed",
				zap.String("key", s.key(name)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
		}
	}
	return firstErr
}

// record is the persisted form of a remote record id. The owning session is
// stored with it so an id written late for a finished session is never
// handed to the next one.
type record struct {
	Session string `json:"session"`
	ID      string `json:"id"`
}

// SetRecordID persists the remote record id of session immediately.
func (s *Store) SetRecordID(ctx context.Context, session, id string) error {
	payload, err := json.Marshal(record{Session: session, ID: id})
	if err != nil {
		return fmt.Errorf("progress: encode record: %w", err)
	}
	if err := s.storage.Set(ctx, s.key(keyRecord), string(payload)); err != nil {
		s.logger.Warn("progress: record id not persisted",
			zap.String("namespace", s.namespace),
			zap.String("session", session),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// RecordID returns the persisted remote record id when it belongs to
// session.
func (s *Store) RecordID(ctx context.Context, session string) (string, bool) {
	raw := s.getString(ctx, keyRecord)
	if raw == "" {
		return "", false
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("progress: discarding corrupt record id",
			zap.String("namespace", s.namespace),
			zap.Error(fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)),
		)
		return "", false
	}
	if rec.ID == "" || rec.Session != session {
		return "", false
	}
	return rec.ID, true
}

package testsupport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/storage"
)

// ErrInjected is returned by FailingStorage.
var ErrInjected = errors.New("testsupport: injected storage failure")

// Write records one Set call.
type Write struct {
	Key   string
	Value string
}

// RecordingStorage wraps an in-memory store and records every write.
type RecordingStorage struct {
	*storage.Memory

	mu     sync.Mutex
	writes []Write
}

// NewRecordingStorage returns an empty recording store.
func NewRecordingStorage() *RecordingStorage {
	return &RecordingStorage{Memory: storage.NewMemory()}
}

func (r *RecordingStorage) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.writes = append(r.writes, Write{Key: key, Value: value})
	r.mu.Unlock()
	return r.Memory.Set(ctx, key, value)
}

// Writes returns the recorded writes whose key ends with suffix (all writes
// when suffix is empty).
func (r *RecordingStorage) Writes(suffix string) []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Write
	for _, w := range r.writes {
		if suffix == "" || strings.HasSuffix(w.Key, suffix) {
			out = append(out, w)
		}
	}
	return out
}

// FailingStorage fails every call with ErrInjected.
type FailingStorage struct{}

func (FailingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrInjected
}

func (FailingStorage) Set(context.Context, string, string) error {
	return ErrInjected
}

func (FailingStorage) Remove(context.Context, string) error {
	return ErrInjected
}

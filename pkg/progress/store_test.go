package progress_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/progress"
	"github.com/goliatone/go-formflow/pkg/storage"
	"github.com/goliatone/go-formflow/pkg/testsupport"
)

func newStore(t *testing.T, backend progress.Storage, opts ...progress.Option) (*progress.Store, *testsupport.FakeClock) {
	t.Helper()
	clk := testsupport.NewFakeClock()
	opts = append([]progress.Option{progress.WithClock(clk), progress.WithNamespace("intake")}, opts...)
	return progress.New(backend, opts...), clk
}

func snapshot(step int, answers model.Answers) model.Snapshot {
	return model.Snapshot{FormState: model.FormState{SessionID: "s-1", CurrentStep: step, Answers: answers}}
}

func TestSave_RapidEditsCollapseIntoOneWrite(t *testing.T) {
	backend := testsupport.NewRecordingStorage()
	store, clk := newStore(t, backend)

	store.Save(snapshot(0, model.Answers{"name": model.Text("A")}))
	clk.Advance(40 * time.Millisecond)
	store.Save(snapshot(0, model.Answers{"name": model.Text("Ad")}))
	clk.Advance(40 * time.Millisecond)
	store.Save(snapshot(0, model.Answers{"name": model.Text("Ada")}))

	if n := len(backend.Writes("")); n != 0 {
		t.Fatalf("expected no write inside the window, got %d", n)
	}
	clk.Advance(499 * time.Millisecond)
	if n := len(backend.Writes("")); n != 0 {
		t.Fatalf("expected window to restart on each save, got %d writes", n)
	}
	clk.Advance(time.Millisecond)

	writes := backend.Writes(":answers")
	if len(writes) != 1 {
		t.Fatalf("expected exactly one answers write, got %d", len(writes))
	}
	if writes[0].Value != `{"name":"Ada"}` {
		t.Fatalf("expected last edit to land, got %s", writes[0].Value)
	}
	if store.Pending() {
		t.Fatalf("expected nothing pending after the timer fired")
	}
}

func TestSave_ConfigurableDebounce(t *testing.T) {
	backend := testsupport.NewRecordingStorage()
	store, clk := newStore(t, backend, progress.WithDebounce(time.Second))
	if store.Debounce() != time.Second {
		t.Fatalf("expected 1s debounce, got %s", store.Debounce())
	}

	store.Save(snapshot(1, model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)
	if len(backend.Writes("")) != 0 {
		t.Fatalf("expected no write at the default window")
	}
	clk.Advance(progress.DefaultDebounce)
	if len(backend.Writes(":answers")) != 1 {
		t.Fatalf("expected write at 1s")
	}
}

func TestLoad_ResumeFidelity(t *testing.T) {
	backend := storage.NewMemory()
	store, clk := newStore(t, backend)

	want := model.FormState{
		SessionID:   "01HXRESUME",
		CurrentStep: 1,
		Answers: model.Answers{
			"name":     model.Text("Ada"),
			"channels": model.Choices("email", "events"),
			"age":      model.Text("34"),
		},
	}
	store.Save(model.Snapshot{FormState: want})
	clk.Advance(progress.DefaultDebounce)

	fresh := progress.New(backend, progress.WithNamespace("intake"))
	got, ok := fresh.Load(testsupport.Context(), 2)
	if !ok {
		t.Fatalf("expected snapshot")
	}
	if diff := cmp.Diff(want, got.FormState); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_OutOfRangeStepResetsToFirst(t *testing.T) {
	for _, step := range []string{"99", "2", "-1", "abc"} {
		t.Run(step, func(t *testing.T) {
			backend := storage.NewMemory()
			ctx := testsupport.Context()
			_ = backend.Set(ctx, "intake:answers", `{"name":"Ada"}`)
			_ = backend.Set(ctx, "intake:step", step)
			_ = backend.Set(ctx, "intake:session", "s-9")

			store := progress.New(backend, progress.WithNamespace("intake"))
			got, ok := store.Load(ctx, 2)
			if !ok {
				t.Fatalf("expected answers to be restored")
			}
			if got.CurrentStep != 0 {
				t.Fatalf("expected step 0, got %d", got.CurrentStep)
			}
			if !got.Answers.Get("name").Equal(model.Text("Ada")) || got.SessionID != "s-9" {
				t.Fatalf("expected answers and session intact, got %+v", got)
			}
		})
	}
}

func TestLoad_MissingOrCorrupt(t *testing.T) {
	ctx := testsupport.Context()
	backend := storage.NewMemory()
	logger, logs := testsupport.ObservedLogger(t)
	store := progress.New(backend, progress.WithNamespace("intake"), progress.WithLogger(logger))

	if _, ok := store.Load(ctx, 2); ok {
		t.Fatalf("expected no snapshot in empty storage")
	}

	for _, payload := range []string{"{not json", "null", `["a"]`} {
		_ = backend.Set(ctx, "intake:answers", payload)
		if _, ok := store.Load(ctx, 2); ok {
			t.Fatalf("expected corrupt payload %q to be discarded", payload)
		}
	}
	if logs.FilterMessage("progress: discarding corrupt snapshot").Len() != 3 {
		t.Fatalf("expected corrupt snapshots to be logged, got %v", logs.All())
	}
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	logger, logs := testsupport.ObservedLogger(t)
	hooked := 0
	store, clk := newStore(t, testsupport.FailingStorage{},
		progress.WithLogger(logger),
		progress.WithAfterSave(func(model.Snapshot) { hooked++ }),
	)

	store.Save(snapshot(0, model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)

	if hooked != 1 {
		t.Fatalf("expected after-save hook to run despite the failed write")
	}
	if logs.FilterMessage("progress: save failed, continuing in memory").Len() != 1 {
		t.Fatalf("expected failed save to be logged")
	}
	if _, ok := store.Load(testsupport.Context(), 2); ok {
		t.Fatalf("expected failing load to report no snapshot")
	}
	err := store.Clear(testsupport.Context())
	if !errors.Is(err, progress.ErrStorageUnavailable) || !errors.Is(err, testsupport.ErrInjected) {
		t.Fatalf("expected wrapped storage error from Clear, got %v", err)
	}
}

func TestCancel_DropsPendingWrite(t *testing.T) {
	backend := testsupport.NewRecordingStorage()
	store, clk := newStore(t, backend)

	store.Save(snapshot(0, model.Answers{"name": model.Text("Ada")}))
	if !store.Cancel() {
		t.Fatalf("expected Cancel to report a dropped snapshot")
	}
	clk.Advance(time.Hour)
	if n := len(backend.Writes("")); n != 0 {
		t.Fatalf("expected cancelled save to never land, got %d writes", n)
	}
	if store.Cancel() {
		t.Fatalf("expected second Cancel to be a no-op")
	}
}

func TestFlush_WritesImmediately(t *testing.T) {
	backend := testsupport.NewRecordingStorage()
	store, clk := newStore(t, backend)

	if store.Flush(testsupport.Context()) {
		t.Fatalf("expected no flush without a pending snapshot")
	}
	store.Save(snapshot(1, model.Answers{"name": model.Text("Ada")}))
	if !store.Flush(testsupport.Context()) {
		t.Fatalf("expected flush to write")
	}
	clk.Advance(time.Hour)
	if n := len(backend.Writes(":answers")); n != 1 {
		t.Fatalf("expected timer invalidated by flush, got %d writes", n)
	}
	steps := backend.Writes(":step")
	if len(steps) != 1 || steps[0].Value != "1" {
		t.Fatalf("unexpected step writes: %+v", steps)
	}
}

func TestClear_IsIdempotentAndBeatsPendingTimer(t *testing.T) {
	backend := storage.NewMemory()
	store, clk := newStore(t, backend)
	ctx := testsupport.Context()

	store.Save(snapshot(0, model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)
	if err := store.SetRecordID(ctx, "s-1", "lead-1"); err != nil {
		t.Fatalf("set record: %v", err)
	}
	if id, ok := store.RecordID(ctx, "s-1"); !ok || id != "lead-1" {
		t.Fatalf("expected record id, got %q %v", id, ok)
	}

	store.Save(snapshot(1, model.Answers{"name": model.Text("Ada Lovelace")}))
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	clk.Advance(time.Hour)

	if backend.Len() != 0 {
		t.Fatalf("expected storage empty, got %v", backend.Snapshot())
	}
	if _, ok := store.Load(ctx, 2); ok {
		t.Fatalf("expected no snapshot after clear")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestRecordID_BelongsToItsSession(t *testing.T) {
	backend := storage.NewMemory()
	store, clk := newStore(t, backend)
	ctx := testsupport.Context()

	store.Save(snapshot(1, model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)
	if err := store.SetRecordID(ctx, "s-1", "lead-1"); err != nil {
		t.Fatalf("set record: %v", err)
	}
	got, ok := store.Load(ctx, 2)
	if !ok || got.RecordID != "lead-1" {
		t.Fatalf("expected record id restored with its session, got %+v", got)
	}

	// A sync for a finished session lands after the next one started.
	if err := store.SetRecordID(ctx, "s-0", "lead-0"); err != nil {
		t.Fatalf("set record: %v", err)
	}
	if id, ok := store.RecordID(ctx, "s-1"); ok {
		t.Fatalf("expected id of another session to be ignored, got %q", id)
	}
	got, ok = store.Load(ctx, 2)
	if !ok || got.RecordID != "" {
		t.Fatalf("expected no record id for s-1, got %+v", got)
	}

	_ = backend.Set(ctx, "intake:record", "lead-raw")
	if _, ok := store.RecordID(ctx, "s-1"); ok {
		t.Fatalf("expected undecodable record to be ignored")
	}
}

func TestAfterSave_ReceivesCommittedSnapshot(t *testing.T) {
	var got []model.Snapshot
	store, clk := newStore(t, storage.NewMemory())
	store.OnSave(func(s model.Snapshot) { got = append(got, s) })

	store.Save(snapshot(0, model.Answers{"name": model.Text("A")}))
	store.Save(snapshot(1, model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)

	if len(got) != 1 {
		t.Fatalf("expected one hook call, got %d", len(got))
	}
	if got[0].CurrentStep != 1 || got[0].SavedAt.IsZero() {
		t.Fatalf("unexpected hook snapshot: %+v", got[0])
	}
}

func TestNamespaceDefaults(t *testing.T) {
	store := progress.New(storage.NewMemory())
	if store.Namespace() != progress.DefaultNamespace || store.Debounce() != progress.DefaultDebounce {
		t.Fatalf("unexpected defaults: %q %s", store.Namespace(), store.Debounce())
	}
}

package remotesync_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/progress"
	"github.com/goliatone/go-formflow/pkg/remotesync"
	"github.com/goliatone/go-formflow/pkg/storage"
	"github.com/goliatone/go-formflow/pkg/testsupport"
)

type leadServer struct {
	*httptest.Server

	mu       sync.Mutex
	payloads []remotesync.Payload
	status   int
	nextID   string
}

func newLeadServer(t *testing.T) *leadServer {
	t.Helper()
	ls := &leadServer{status: http.StatusOK, nextID: "lead-1"}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p remotesync.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ls.mu.Lock()
		ls.payloads = append(ls.payloads, p)
		status, id := ls.status, ls.nextID
		ls.mu.Unlock()

		if p.ID != "" {
			id = p.ID
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(remotesync.Response{ID: id})
	}))
	t.Cleanup(func() {
		ls.Client().CloseIdleConnections()
		ls.Close()
	})
	return ls
}

func (ls *leadServer) received() []remotesync.Payload {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]remotesync.Payload(nil), ls.payloads...)
}

func (ls *leadServer) fail(status int) {
	ls.mu.Lock()
	ls.status = status
	ls.mu.Unlock()
}

func leadSnapshot(answers model.Answers) model.Snapshot {
	return model.Snapshot{
		FormID:    "lead",
		FormState: model.FormState{SessionID: "s-1", CurrentStep: 1, Answers: answers},
	}
}

func TestThresholds(t *testing.T) {
	def := remotesync.DefaultThreshold()
	assert.False(t, def(nil))
	assert.False(t, def(model.Answers{"name": model.Text("Ada")}))
	assert.False(t, def(model.Answers{"name": model.Text("  "), "email": model.Text("a@b.c")}))
	assert.True(t, def(model.Answers{"name": model.Text("Ada"), "phone": model.Text("555")}))

	policy := remotesync.FromPolicy(&model.SyncPolicy{Required: []model.FieldID{"company"}})
	assert.True(t, policy(model.Answers{"company": model.Text("Acme")}))
	assert.False(t, policy(model.Answers{"company": model.Choices()}))
	assert.True(t, remotesync.RequireAll("tags")(model.Answers{"tags": model.Choices("x")}))
}

func TestNew_RejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "ftp://example.com/leads"} {
		_, err := remotesync.New(endpoint, nil)
		assert.Error(t, err, endpoint)
	}
}

func TestSyncNow_FirstSyncAssignsRecordAndLaterSyncsReuseIt(t *testing.T) {
	srv := newLeadServer(t)
	ctx := testsupport.Context()
	store := progress.New(storage.NewMemory(), progress.WithNamespace("lead"))

	s, err := remotesync.New(srv.URL, store, remotesync.WithHTTPClient(srv.Client()), remotesync.WithHeader("X-Api-Key", "k"))
	require.NoError(t, err)

	answers := model.Answers{"name": model.Text("Ada"), "email": model.Text("ada@example.com")}
	id, err := s.SyncNow(ctx, leadSnapshot(answers))
	require.NoError(t, err)
	assert.Equal(t, "lead-1", id)

	stored, ok := store.RecordID(ctx, "s-1")
	require.True(t, ok)
	assert.Equal(t, "lead-1", stored)

	answers["phone"] = model.Text("555")
	_, err = s.SyncNow(ctx, leadSnapshot(answers))
	require.NoError(t, err)

	got := srv.received()
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ID)
	assert.Equal(t, "lead-1", got[1].ID)
	assert.Equal(t, "s-1", got[1].SessionID)
	assert.Equal(t, "lead", got[1].FormID)
	assert.Equal(t, 1, got[1].Step)
	assert.True(t, got[1].Answers.Get("phone").Equal(model.Text("555")))
}

func TestSyncNow_NewSessionStartsNewRecord(t *testing.T) {
	srv := newLeadServer(t)
	ctx := testsupport.Context()
	s, err := remotesync.New(srv.URL, nil, remotesync.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	answers := model.Answers{"name": model.Text("Ada"), "email": model.Text("ada@example.com")}
	_, err = s.SyncNow(ctx, leadSnapshot(answers))
	require.NoError(t, err)

	next := leadSnapshot(answers)
	next.SessionID = "s-2"
	_, err = s.SyncNow(ctx, next)
	require.NoError(t, err)

	got := srv.received()
	require.Len(t, got, 2)
	assert.Empty(t, got[1].ID)
}

func TestSyncNow_Failures(t *testing.T) {
	srv := newLeadServer(t)
	ctx := testsupport.Context()
	store := progress.New(storage.NewMemory())
	s, err := remotesync.New(srv.URL, store, remotesync.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	srv.fail(http.StatusBadGateway)
	_, err = s.SyncNow(ctx, leadSnapshot(model.Answers{"name": model.Text("Ada")}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, remotesync.ErrRemoteSync))
	_, ok := store.RecordID(ctx, "s-1")
	assert.False(t, ok)

	srv.Close()
	_, err = s.SyncNow(ctx, leadSnapshot(nil))
	assert.True(t, errors.Is(err, remotesync.ErrRemoteSync))
}

func TestSyncNow_RejectsResponseWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s, err := remotesync.New(srv.URL, nil, remotesync.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = s.SyncNow(testsupport.Context(), leadSnapshot(nil))
	assert.ErrorIs(t, err, remotesync.ErrRemoteSync)
	assert.Empty(t, s.RecordID())
}

func TestAttach_SyncsAfterDebouncedSave(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	srv := newLeadServer(t)
	logger, logs := testsupport.ObservedLogger(t)
	clk := testsupport.NewFakeClock()
	store := progress.New(storage.NewMemory(), progress.WithClock(clk), progress.WithNamespace("lead"))

	s, err := remotesync.New(srv.URL, store,
		remotesync.WithHTTPClient(srv.Client()),
		remotesync.WithLogger(logger),
	)
	require.NoError(t, err)
	store.OnSave(s.Attach())

	store.Save(leadSnapshot(model.Answers{"name": model.Text("Ada")}))
	clk.Advance(progress.DefaultDebounce)
	s.Wait()
	assert.Empty(t, srv.received(), "below threshold")

	store.Save(leadSnapshot(model.Answers{"name": model.Text("Ada"), "email": model.Text("ada@example.com")}))
	clk.Advance(progress.DefaultDebounce)
	s.Wait()
	require.Len(t, srv.received(), 1)
	assert.Equal(t, "lead-1", s.RecordID())

	srv.fail(http.StatusInternalServerError)
	store.Save(leadSnapshot(model.Answers{"name": model.Text("Ada L"), "email": model.Text("ada@example.com")}))
	clk.Advance(progress.DefaultDebounce)
	s.Wait()
	assert.Equal(t, 1, logs.FilterMessage("remotesync: sync failed").Len())

	snap, ok := store.Load(testsupport.Context(), 2)
	require.True(t, ok, "local persistence must be unaffected by sync failures")
	assert.Equal(t, "lead-1", snap.RecordID)
}

// heldServer answers like a lead endpoint but holds the first request until
// release is closed. started is closed once that request arrives.
type heldServer struct {
	*httptest.Server

	started chan struct{}
	release chan struct{}

	mu       sync.Mutex
	payloads []remotesync.Payload
}

func newHeldServer(t *testing.T) *heldServer {
	t.Helper()
	hs := &heldServer{started: make(chan struct{}), release: make(chan struct{})}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p remotesync.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hs.mu.Lock()
		hs.payloads = append(hs.payloads, p)
		n := len(hs.payloads)
		hs.mu.Unlock()

		if n == 1 {
			close(hs.started)
			<-hs.release
		}
		id := p.ID
		if id == "" {
			id = "lead-" + strconv.Itoa(n)
		}
		_ = json.NewEncoder(w).Encode(remotesync.Response{ID: id})
	}))
	t.Cleanup(func() {
		hs.Client().CloseIdleConnections()
		hs.Close()
	})
	return hs
}

func (hs *heldServer) received() []remotesync.Payload {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return append([]remotesync.Payload(nil), hs.payloads...)
}

func TestTrigger_SendsQueuedSnapshotsInOrder(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	srv := newHeldServer(t)
	s, err := remotesync.New(srv.URL, nil, remotesync.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	withName := func(session, name string) model.Snapshot {
		snap := leadSnapshot(model.Answers{"name": model.Text(name), "email": model.Text("x@example.com")})
		snap.SessionID = session
		return snap
	}

	s.Trigger(withName("s-1", "A"))
	<-srv.started
	s.Trigger(withName("s-1", "Ad"))
	s.Trigger(withName("s-1", "Ada"))
	s.Trigger(withName("s-2", "G"))
	s.Trigger(withName("s-2", "Grace"))
	close(srv.release)
	s.Wait()

	got := srv.received()
	require.Len(t, got, 3)
	names := []string{got[0].Answers.Get("name").String(), got[1].Answers.Get("name").String(), got[2].Answers.Get("name").String()}
	assert.Equal(t, []string{"A", "Ada", "Grace"}, names)
	assert.Equal(t, "lead-1", got[1].ID)
	assert.Empty(t, got[2].ID, "a new session starts its own record")
	assert.Equal(t, "lead-3", s.RecordID())
}

func TestTrigger_LateSyncDoesNotLeakRecordIntoNextSession(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	srv := newHeldServer(t)
	ctx := testsupport.Context()
	store := progress.New(storage.NewMemory(), progress.WithNamespace("lead"))
	s, err := remotesync.New(srv.URL, store, remotesync.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	answers := model.Answers{"name": model.Text("Ada"), "email": model.Text("ada@example.com")}
	s.Trigger(leadSnapshot(answers))
	<-srv.started

	// The form is submitted while the first sync is still in flight.
	require.NoError(t, store.Clear(ctx))
	close(srv.release)
	s.Wait()

	_, ok := store.RecordID(ctx, "s-2")
	assert.False(t, ok, "the finished session's id must not carry over")

	next := leadSnapshot(model.Answers{"name": model.Text("Grace"), "email": model.Text("grace@example.com")})
	next.SessionID = "s-2"
	id, err := s.SyncNow(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "lead-2", id)

	got := srv.received()
	require.Len(t, got, 2)
	assert.Empty(t, got[1].ID)
}

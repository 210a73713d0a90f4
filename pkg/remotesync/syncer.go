package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/model"
)

// ErrRemoteSync wraps every sync failure.
var ErrRemoteSync = errors.New("remotesync: sync failed")

// RecordStore persists the server-assigned record id of a session.
// *progress.Store satisfies it.
type RecordStore interface {
	SetRecordID(ctx context.Context, session, id string) error
	RecordID(ctx context.Context, session string) (string, bool)
}

// Payload is the request body of a sync.
type Payload struct {
	ID        string        `json:"id,omitempty"`
	SessionID string        `json:"sessionId"`
	FormID    string        `json:"formId"`
	Step      int           `json:"step"`
	Answers   model.Answers `json:"answers"`
}

// Response is the body a successful sync returns.
type Response struct {
	ID string `json:"id"`
}

// Syncer pushes snapshots to a remote endpoint.
type Syncer struct {
	endpoint  string
	store     RecordStore
	client    *http.Client
	timeout   time.Duration
	threshold Threshold
	logger    *zap.Logger
	header    http.Header

	// mu serialises syncs so a record id from the first response is known
	// before the next request is built.
	mu       sync.Mutex
	session  string
	recordID string

	// queue holds snapshots waiting for the worker, oldest first. Consecutive
	// snapshots of one session collapse into the latest.
	qmu     sync.Mutex
	queue   []model.Snapshot
	running bool
	wg      sync.WaitGroup
}

// New returns a Syncer posting to endpoint. store may be nil, in which case
// the record id lives only in memory.
func New(endpoint string, store RecordStore, opts ...Option) (*Syncer, error) {
	parsed, err := url.ParseRequestURI(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("remotesync: invalid endpoint %q", endpoint)
	}
	s := &Syncer{
		endpoint:  endpoint,
		store:     store,
		client:    &http.Client{},
		timeout:   DefaultTimeout,
		threshold: DefaultThreshold(),
		logger:    zap.NewNop(),
		header:    http.Header{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Endpoint returns the sync URL.
func (s *Syncer) Endpoint() string {
	return s.endpoint
}

// Attach returns a hook for progress.WithAfterSave. The hook never blocks on
// the network.
func (s *Syncer) Attach() func(model.Snapshot) {
	return s.Trigger
}

// Trigger queues snapshot for a background sync when it passes the
// threshold. Snapshots are sent one at a time in the order they were
// triggered; while a request is in flight only the newest snapshot of each
// session is kept. Requests run on a detached context so closing the form
// does not abort them.
func (s *Syncer) Trigger(snapshot model.Snapshot) {
	if !s.threshold(snapshot.Answers) {
		s.logger.Debug("remotesync: below threshold, skipping",
			zap.String("session", snapshot.SessionID),
		)
		return
	}
	snap := snapshot.Clone()

	s.qmu.Lock()
	if n := len(s.queue); n > 0 && s.queue[n-1].SessionID == snap.SessionID {
		s.queue[n-1] = snap
	} else {
		s.queue = append(s.queue, snap)
	}
	start := !s.running
	if start {
		s.running = true
		s.wg.Add(1)
	}
	s.qmu.Unlock()

	if start {
		go s.drain()
	}
}

func (s *Syncer) drain() {
	defer s.wg.Done()
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.qmu.Unlock()
			return
		}
		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if _, err := s.SyncNow(ctx, snap); err != nil {
			s.logger.Warn("remotesync: sync failed",
				zap.String("endpoint", s.endpoint),
				zap.String("session", snap.SessionID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Wait blocks until every background sync started so far has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// RecordID returns the record id known to the syncer.
func (s *Syncer) RecordID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

// SyncNow posts snapshot and returns the record id. It does not apply the
// threshold.
func (s *Syncer) SyncNow(ctx context.Context, snapshot model.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := Payload{
		ID:        s.knownID(ctx, snapshot),
		SessionID: snapshot.SessionID,
		FormID:    snapshot.FormID,
		Step:      snapshot.CurrentStep,
		Answers:   snapshot.Answers,
	}
	if payload.Answers == nil {
		payload.Answers = model.Answers{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %w", ErrRemoteSync, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteSync, err)
	}
	for key, values := range s.header {
		req.Header[key] = append([]string(nil), values...)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteSync, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrRemoteSync, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status %s", ErrRemoteSync, resp.Status)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrRemoteSync, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: response carries no id", ErrRemoteSync)
	}

	if out.ID != s.recordID {
		s.recordID = out.ID
		if s.store != nil {
			// The id is still cached in memory when this fails.
			_ = s.store.SetRecordID(ctx, snapshot.SessionID, out.ID)
		}
		s.logger.Info("remotesync: record assigned",
			zap.String("session", snapshot.SessionID),
			zap.String("record", out.ID),
		)
	}
	return out.ID, nil
}

// knownID returns the record id for the snapshot's session. A new session
// forgets the id cached for the previous one.
func (s *Syncer) knownID(ctx context.Context, snapshot model.Snapshot) string {
	if snapshot.SessionID != s.session {
		s.session = snapshot.SessionID
		s.recordID = ""
	}
	if s.recordID != "" {
		return s.recordID
	}
	if s.store != nil {
		if id, ok := s.store.RecordID(ctx, snapshot.SessionID); ok {
			s.recordID = id
			return id
		}
	}
	if snapshot.RecordID != "" {
		s.recordID = snapshot.RecordID
	}
	return s.recordID
}

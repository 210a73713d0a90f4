package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/remotesync"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func testHandler(repo Repository, fns ...OptionFn) http.Handler {
	fns = append([]OptionFn{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "lead-1" }),
	}, fns...)
	return NewHandler(repo, fns...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateThenUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	h := testHandler(repo)

	rec := do(t, h, http.MethodPost, "/api/leads",
		`{"sessionId":"s-1","formId":"audit","step":0,"answers":{"name":"<b>Ada</b>","channels":["email"]}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created remotesync.Response
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != "lead-1" {
		t.Fatalf("expected generated id, got %q", created.ID)
	}

	rec = do(t, h, http.MethodPost, "/api/leads",
		`{"id":"lead-1","sessionId":"s-1","formId":"audit","step":2,"answers":{"name":"Ada","email":"ada@example.com"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", rec.Code)
	}

	got, err := repo.Get(t.Context(), "lead-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Lead{
		ID:        "lead-1",
		SessionID: "s-1",
		FormID:    "audit",
		Step:      2,
		Answers:   model.Answers{"name": model.Text("Ada"), "email": model.Text("ada@example.com")},
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lead mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_SanitisesAnswers(t *testing.T) {
	repo := NewMemoryRepository()
	h := testHandler(repo)

	rec := do(t, h, http.MethodPost, "/api/leads",
		`{"sessionId":"s-1","answers":{"name":"<script>x</script>Ada","channels":["<i>email</i>"]}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	got, _ := repo.Get(t.Context(), "lead-1")
	if got.Answers.Get("name").String() != "Ada" {
		t.Fatalf("expected markup stripped, got %q", got.Answers.Get("name").String())
	}
	if !got.Answers.Get("channels").Equal(model.Choices("email")) {
		t.Fatalf("expected selection sanitised, got %v", got.Answers.Get("channels").Selected())
	}
}

func TestHandler_UnknownIDIsNotFound(t *testing.T) {
	h := testHandler(NewMemoryRepository())

	rec := do(t, h, http.MethodPost, "/api/leads", `{"id":"ghost","sessionId":"s-1","answers":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/leads/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on get, got %d", rec.Code)
	}
}

func TestHandler_Get(t *testing.T) {
	repo := NewMemoryRepository()
	h := testHandler(repo)
	do(t, h, http.MethodPost, "/api/leads", `{"sessionId":"s-1","formId":"partner","answers":{"name":"Ada"}}`)

	rec := do(t, h, http.MethodGet, "/api/leads/lead-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content-type, got %q", ct)
	}
	var lead Lead
	if err := json.NewDecoder(rec.Body).Decode(&lead); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lead.FormID != "partner" || !lead.Answers.Get("name").Equal(model.Text("Ada")) {
		t.Fatalf("unexpected lead: %+v", lead)
	}

	rec = do(t, h, http.MethodHead, "/api/leads/lead-1", "")
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 200 for HEAD, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	h := testHandler(NewMemoryRepository(), WithMaxBodyBytes(64))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/leads", `{"sessionId":`, http.StatusBadRequest},
		{"missing session", http.MethodPost, "/api/leads", `{"answers":{}}`, http.StatusUnprocessableEntity},
		{"body too large", http.MethodPost, "/api/leads", `{"sessionId":"s","answers":{"notes":"` + strings.Repeat("x", 100) + `"}}`, http.StatusBadRequest},
		{"get collection", http.MethodGet, "/api/leads", "", http.StatusMethodNotAllowed},
		{"post item", http.MethodPost, "/api/leads/lead-1", `{}`, http.StatusMethodNotAllowed},
		{"delete item", http.MethodDelete, "/api/leads/lead-1", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandler_GuardBlocksRequests(t *testing.T) {
	h := testHandler(NewMemoryRepository(), WithGuard(func(r *http.Request) error {
		if r.Header.Get("X-Api-Key") == "secret" {
			return nil
		}
		return StatusError{Code: http.StatusUnauthorized, Err: errors.New("missing key")}
	}))

	rec := do(t, h, http.MethodPost, "/api/leads", `{"sessionId":"s-1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"sessionId":"s-1"}`))
	req.Header.Set("X-Api-Key", "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 with key, got %d", rr.Code)
	}
}

func TestHandler_PlainGuardErrorIsForbidden(t *testing.T) {
	h := testHandler(NewMemoryRepository(), WithGuard(func(*http.Request) error {
		return errors.New("no")
	}))
	if rec := do(t, h, http.MethodGet, "/api/leads/x", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

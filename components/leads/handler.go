package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/remotesync"
	"github.com/goliatone/go-formflow/pkg/sanitize"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// NewHandler builds the lead handler over repo.
func NewHandler(repo Repository, fns ...OptionFn) http.Handler {
	return HandlerWithOptions(repo, NewOptions(fns...))
}

// HandlerWithOptions builds the handler from a pre-constructed Options value.
func HandlerWithOptions(repo Repository, opts Options) http.Handler {
	opts = NewOptions(func(o *Options) { *o = opts })
	h := &handler{repo: repo, opts: opts}
	return http.HandlerFunc(h.serve)
}

type handler struct {
	repo Repository
	opts Options
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	if r == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if h.opts.Guard != nil {
		if err := h.opts.Guard(r); err != nil {
			writeGuardError(w, err)
			return
		}
	}

	id := h.leadID(r.URL.Path)
	var err error
	switch {
	case r.Method == http.MethodPost && id == "":
		err = h.upsert(w, r)
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && id != "":
		err = h.get(w, r, id)
	case id == "":
		w.Header().Set("Allow", http.MethodPost)
		err = StatusError{Code: http.StatusMethodNotAllowed}
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
		err = StatusError{Code: http.StatusMethodNotAllowed}
	}
	if err != nil {
		h.writeError(w, r, err)
	}
}

// leadID extracts the id segment following the route path.
func (h *handler) leadID(path string) string {
	route := strings.TrimRight(h.opts.RoutePath, "/")
	idx := strings.LastIndex(path, route)
	if idx < 0 {
		return ""
	}
	rest := strings.Trim(path[idx+len(route):], "/")
	if strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func (h *handler) upsert(w http.ResponseWriter, r *http.Request) error {
	var payload remotesync.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return StatusError{Code: http.StatusBadRequest, Err: err}
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		return StatusError{Code: http.StatusUnprocessableEntity, Err: errors.New("leads: sessionId is required")}
	}

	now := h.opts.Now()
	lead := Lead{
		ID:        strings.TrimSpace(payload.ID),
		SessionID: payload.SessionID,
		FormID:    payload.FormID,
		Step:      payload.Step,
		Answers:   sanitize.Answers(payload.Answers),
		CreatedAt: now,
		UpdatedAt: now,
	}

	status := http.StatusOK
	if lead.ID == "" {
		lead.ID = h.opts.NewID()
		if err := h.repo.Create(r.Context(), lead); err != nil {
			return err
		}
		status = http.StatusCreated
		h.opts.Logger.Info("leads: created",
			zap.String("lead", lead.ID),
			zap.String("form", lead.FormID),
			zap.String("session", lead.SessionID),
		)
	} else if err := h.repo.Update(r.Context(), lead); err != nil {
		return err
	}

	writeJSON(w, r, status, remotesync.Response{ID: lead.ID})
	return nil
}

func (h *handler) get(w http.ResponseWriter, r *http.Request, id string) error {
	lead, err := h.repo.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, r, http.StatusOK, lead)
	return nil
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var httpErr HTTPError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &httpErr):
		code = httpErr.StatusCode()
	}
	if code >= http.StatusInternalServerError {
		h.opts.Logger.Error("leads: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	http.Error(w, http.StatusText(code), code)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func writeGuardError(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
		if code <= 0 {
			code = http.StatusForbidden
		}
	}
	http.Error(w, http.StatusText(code), code)
}

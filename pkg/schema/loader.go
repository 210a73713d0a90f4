package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// DefaultRequestTimeout caps remote fetches when no client timeout is set.
const DefaultRequestTimeout = 15 * time.Second

// LoaderOptions configures how a Loader resolves sources.
type LoaderOptions struct {
	// FileSystem serves SourceKindFS sources.
	FileSystem fs.FS
	// HTTPClient serves SourceKindURL sources. Nil disables URL sources
	// unless AllowHTTP is set, in which case a default client is used.
	HTTPClient *http.Client
	AllowHTTP  bool
	// RequestTimeout caps remote fetch durations.
	RequestTimeout time.Duration
	// OperationID selects the OpenAPI operation whose request body becomes
	// the form. Empty picks the only operation with a request body.
	OperationID string
}

// LoaderOption mutates LoaderOptions prior to construction.
type LoaderOption func(*LoaderOptions)

// WithFileSystem injects the fs.FS used for FSSource locations.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.FileSystem = files
	}
}

// WithHTTPClient injects a client for URL sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.HTTPClient = client
		opts.AllowHTTP = client != nil || opts.AllowHTTP
	}
}

// WithHTTP enables URL sources with a default client and timeout.
func WithHTTP(timeout time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.AllowHTTP = true
		opts.RequestTimeout = timeout
	}
}

// WithOperationID selects the OpenAPI operation to derive the form from.
func WithOperationID(id string) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.OperationID = id
	}
}

// Loader fetches and decodes schema documents.
type Loader struct {
	fs          fs.FS
	http        *http.Client
	timeout     time.Duration
	operationID string
}

// NewLoader applies options and returns a Loader.
func NewLoader(options ...LoaderOption) *Loader {
	cfg := LoaderOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	var client *http.Client
	switch {
	case cfg.HTTPClient != nil:
		clone := *cfg.HTTPClient
		if clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		client = &clone
	case cfg.AllowHTTP:
		client = &http.Client{Timeout: timeout}
	}

	return &Loader{
		fs:          cfg.FileSystem,
		http:        client,
		timeout:     timeout,
		operationID: cfg.OperationID,
	}
}

// Load fetches the raw document behind src.
func (l *Loader) Load(ctx context.Context, src Source) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	var (
		data   []byte
		format = src.Format()
		err    error
	)
	switch src.Kind {
	case SourceKindFile:
		data, err = os.ReadFile(src.Location)
	case SourceKindFS:
		if l.fs == nil {
			return Document{}, errors.New("schema loader: filesystem is not configured")
		}
		data, err = fs.ReadFile(l.fs, src.Location)
	case SourceKindURL:
		if l.http == nil {
			return Document{}, errors.New("schema loader: http support disabled")
		}
		var contentFormat Format
		data, contentFormat, err = l.fetch(ctx, src.Location)
		if format == FormatUnknown {
			format = contentFormat
		}
	default:
		err = fmt.Errorf("schema loader: unsupported source kind %q", src.Kind)
	}
	if err != nil {
		return Document{}, fmt.Errorf("schema loader: %s: %w", src, err)
	}
	return NewDocument(src, format, data)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, Format, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, FormatUnknown, err
	}
	req.Header.Set("Accept", "application/yaml, application/json;q=0.9")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, FormatUnknown, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, FormatUnknown, errors.New("unexpected status " + resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, FormatUnknown, err
	}
	return data, formatFromContentType(resp.Header.Get("Content-Type")), nil
}

// LoadSchema loads src and turns it into a validated FormSchema. OpenAPI
// documents go through FromOpenAPI with the configured operation id.
func (l *Loader) LoadSchema(ctx context.Context, src Source) (model.FormSchema, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return model.FormSchema{}, err
	}
	if doc.IsOpenAPI() {
		return FromOpenAPI(ctx, doc.Raw(), l.operationID)
	}
	return Decode(doc.Raw(), doc.Format())
}

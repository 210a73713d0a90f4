package remotesync

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout caps a single sync request.
const DefaultTimeout = 10 * time.Second

// Option configures a Syncer.
type Option func(*Syncer)

// WithHTTPClient injects the client used for sync requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Syncer) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout caps background sync requests. Non-positive values keep the
// default.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Syncer) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithThreshold replaces the minimum-data gate.
func WithThreshold(threshold Threshold) Option {
	return func(s *Syncer) {
		if threshold != nil {
			s.threshold = threshold
		}
	}
}

// WithLogger sets the logger for sync outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHeader adds a static request header, for example an API key.
func WithHeader(key, value string) Option {
	return func(s *Syncer) {
		s.header.Set(key, value)
	}
}

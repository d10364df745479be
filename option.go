package checkout

import (
	"net/http"
	"time"

	"github.com/tempopay/checkout/logger"
	"github.com/tempopay/checkout/metrics"
	"github.com/tempopay/checkout/settlement"
)

// Option customises a Checkout instance.
type Option func(*options)

type options struct {
	log        logger.Logger
	recorder   metrics.Recorder
	httpClient *http.Client
	timeout    time.Duration
	caches     settlement.CacheInvalidator
}

func defaultOptions() *options {
	return &options{
		log:      logger.NoopLogger{},
		recorder: metrics.NoopRecorder{},
		timeout:  30 * time.Second,
	}
}

// WithLogger sets the logger used across all components.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHTTPClient sets the HTTP client used for the explorer and
// directory services.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-operation deadline applied when the caller's
// context carries none.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCacheInvalidator registers a hook called with the names of views
// to refresh after a successful settlement.
func WithCacheInvalidator(c settlement.CacheInvalidator) Option {
	return func(o *options) { o.caches = c }
}

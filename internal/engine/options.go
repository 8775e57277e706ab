package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
)

// RecencyWindow is how long a synced record stays excluded from full syncs.
const RecencyWindow = 7 * 24 * time.Hour

// RetryWindow is the rolling window in which failed runs count toward the
// retry limit.
const RetryWindow = time.Hour

// Defaults apply when neither the caller nor the record type decides.
type Defaults struct {
	BatchSize  int
	Mode       model.Mode
	Timeout    time.Duration // 0 disables the per-run timeout
	MaxRetries int
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		BatchSize:  100,
		Mode:       model.ModeAppend,
		Timeout:    600 * time.Second,
		MaxRetries: 3,
	}
}

type options struct {
	clock    clock.Clock
	ids      IDGenerator
	logger   *slog.Logger
	events   *notify.Dispatcher
	defaults Defaults
}

// Option configures the engine components.
type Option func(*options)

// WithClock sets the clock used for timestamps, cutoffs and backoff.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = clock.Or(c)
	}
}

// WithIDs sets the id generator.
func WithIDs(ids IDGenerator) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDispatcher sets where lifecycle events are published.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(o *options) {
		o.events = d
	}
}

// WithDefaults overrides the built-in defaults. Zero fields keep theirs,
// except Timeout and MaxRetries which are taken as given.
func WithDefaults(d Defaults) Option {
	return func(o *options) {
		if d.BatchSize > 0 {
			o.defaults.BatchSize = d.BatchSize
		}
		if d.Mode != "" {
			o.defaults.Mode = d.Mode
		}
		o.defaults.Timeout = d.Timeout
		o.defaults.MaxRetries = d.MaxRetries
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:    clock.Real{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		defaults: DefaultDefaults(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Handler receives every published event.
type Handler func(ctx context.Context, e Event)

// Channel delivers gated events to the outside world.
type Channel interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Dispatcher fans events out to subscribers and channels.
//
// Thread-safety: all methods are safe for concurrent use. A nil Dispatcher
// drops every event.
type Dispatcher struct {
	toggles  Toggles
	channels []Channel
	logger   *slog.Logger

	mu   sync.RWMutex
	subs []Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannels adds outbound channels.
func WithChannels(channels ...Channel) Option {
	return func(d *Dispatcher) {
		d.channels = append(d.channels, channels...)
	}
}

// WithLogger sets the logger used to report channel failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher gated by toggles.
func NewDispatcher(toggles Toggles, opts ...Option) *Dispatcher {
	d := &Dispatcher{toggles: toggles, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers h for every event.
func (d *Dispatcher) Subscribe(h Handler) {
	if d == nil || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, h)
}

// Publish delivers e. Channel failures are logged and never returned:
// a notification must not change the outcome of a sync.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	subs := make([]Handler, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, h := range subs {
		h(ctx, e)
	}

	if !d.toggles.Allows(e.Type) {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, e); err != nil {
			d.logger.Warn("notification failed",
				"channel", ch.Name(),
				"event", string(e.Type),
				"record_type", e.State.RecordType,
				"error", err)
		}
	}
}

// Package metrics exposes Prometheus counters for sync runs and sink calls.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/sink"
)

const namespace = "sheetsync"

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	runs             *prometheus.CounterVec
	recordsSynced    *prometheus.CounterVec
	chunks           *prometheus.CounterVec
	retriesScheduled *prometheus.CounterVec
	retriesExhausted *prometheus.CounterVec
	sinkRequests     *prometheus.CounterVec
	sinkDuration     *prometheus.HistogramVec
}

var _ sink.Observer = (*Metrics)(nil)

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by record type, kind and outcome",
		}, []string{"record_type", "kind", "outcome"}),
		recordsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_synced_total",
			Help:      "Records written to the sheet",
		}, []string{"record_type"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks processed",
		}, []string{"record_type"}),
		retriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Retry jobs scheduled after a failed run",
		}, []string{"record_type"}),
		retriesExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_exhausted_total",
			Help:      "Failed runs that were not retried",
		}, []string{"record_type"}),
		sinkRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_requests_total",
			Help:      "Remote sheet calls by operation and outcome",
		}, []string{"op", "outcome"}),
		sinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_request_duration_seconds",
			Help:      "Remote sheet call latency, including rate limit waits",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.runs,
		m.recordsSynced,
		m.chunks,
		m.retriesScheduled,
		m.retriesExhausted,
		m.sinkRequests,
		m.sinkDuration,
	)
	return m
}

// ObserveSinkCall implements sink.Observer.
func (m *Metrics) ObserveSinkCall(op string, elapsed time.Duration, err error) {
	m.sinkRequests.WithLabelValues(op, outcome(err)).Inc()
	m.sinkDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// HandleEvent counts a lifecycle event. Subscribe it on a notify.Dispatcher.
func (m *Metrics) HandleEvent(ctx context.Context, e notify.Event) {
	rt := e.State.RecordType
	switch e.Type {
	case notify.ChunkProcessed:
		m.chunks.WithLabelValues(rt).Inc()
		m.recordsSynced.WithLabelValues(rt).Add(float64(e.Processed))
	case notify.SyncCompleted:
		m.runs.WithLabelValues(rt, string(e.State.Kind), "completed").Inc()
	case notify.SyncFailed:
		m.runs.WithLabelValues(rt, string(e.State.Kind), "failed").Inc()
	case notify.RetryScheduled:
		m.retriesScheduled.WithLabelValues(rt).Inc()
	case notify.RetriesExhausted:
		m.retriesExhausted.WithLabelValues(rt).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

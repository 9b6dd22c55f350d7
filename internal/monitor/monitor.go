// Package monitor exposes Prometheus metrics for the combat engine.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. It satisfies the
// engine's Recorder and the tactical controller's TransitionRecorder.
type Metrics struct {
	ActionsQueued   prometheus.Counter
	ActionsExecuted *prometheus.CounterVec
	ActionsRejected *prometheus.CounterVec
	Transitions     prometheus.Counter
	TickDuration    prometheus.Histogram
}

// NewMetrics creates and registers the collectors on reg. Pass
// prometheus.DefaultRegisterer for the default registry; tests pass their
// own to avoid duplicate registration.
//
// Precondition: reg must be non-nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActionsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_queued_total",
			Help:      "Actions accepted into the scheduler queue",
		}),
		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Actions dispatched by the tick loop",
		}, []string{"kind"}),
		ActionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Queue requests rejected at validation",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_transitions_total",
			Help:      "Confirmed room transitions",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Scheduler tick dispatch latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
	reg.MustRegister(
		m.ActionsQueued,
		m.ActionsExecuted,
		m.ActionsRejected,
		m.Transitions,
		m.TickDuration,
	)
	return m
}

// ActionQueued increments the queued counter.
func (m *Metrics) ActionQueued() { m.ActionsQueued.Inc() }

// ActionExecuted increments the executed counter for the action kind.
func (m *Metrics) ActionExecuted(kind string) { m.ActionsExecuted.WithLabelValues(kind).Inc() }

// ActionRejected increments the rejected counter for the given reason.
func (m *Metrics) ActionRejected(reason string) { m.ActionsRejected.WithLabelValues(reason).Inc() }

// RoomTransition increments the transition counter.
func (m *Metrics) RoomTransition() { m.Transitions.Inc() }

// TickObserved records one tick dispatch duration.
func (m *Metrics) TickObserved(d time.Duration) { m.TickDuration.Observe(d.Seconds()) }

// Server serves the /metrics endpoint.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start serves until Stop is called. It filters http.ErrServerClosed so a
// clean shutdown reports no error.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

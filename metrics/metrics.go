// Package metrics exposes prometheus counters for the auth flows, the
// session gate and the rate limiter.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-exam-auth"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	ActivityTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	GateDecisions    *prometheus.CounterVec
	RateLimited      prometheus.Counter
	QuizScore        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActivityTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_auth_activity_total",
			Help: "Total number of auth activity events by type",
		}, []string{"type"}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_auth_state_transitions_total",
			Help: "Total number of account state transitions",
		}, []string{"event", "from", "to"}),
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_auth_gate_decisions_total",
			Help: "Total number of session gate decisions by outcome",
		}, []string{"outcome"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "exam_auth_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		QuizScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_quiz_score",
			Help:    "Distribution of submitted quiz scores",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}, []string{"subject"}),
		gatherer: reg,
	}
}

// Record implements auth.ActivitySink
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.ActivityTotal.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventAccountStateChanged:
		m.TransitionsTotal.WithLabelValues(string(event.Event), string(event.FromState), string(event.ToState)).Inc()
	case auth.ActivityEventQuizScored:
		subject, _ := event.Metadata["subject"].(string)
		if score, ok := event.Metadata["score"].(int); ok {
			m.QuizScore.WithLabelValues(subject).Observe(float64(score))
		}
	}
	return nil
}

// ObserveGate is an auth.GateObserver
func (m *Metrics) ObserveGate(outcome string) {
	m.GateDecisions.WithLabelValues(outcome).Inc()
}

// ObserveRateLimited counts a rejected request
func (m *Metrics) ObserveRateLimited(string) {
	m.RateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

package scanning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	chainOCR      = "ocr"
	chainAnalysis = "analysis"

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expense_scanner",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by chain, provider and outcome.",
		}, []string{"chain", "provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expense_scanner",
			Name:      "provider_duration_seconds",
			Help:      "Provider call latency by chain and provider.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"chain", "provider"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expense_scanner",
			Name:      "chain_results_total",
			Help:      "Terminal chain states by chain and source.",
		}, []string{"chain", "state", "source"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration, m.results)
	}
	return m
}

func (m *Metrics) observeAttempt(chain string, source Source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(chain, string(source), outcome).Inc()
	m.duration.WithLabelValues(chain, string(source)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeResult(chain string, state string, source Source) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(chain, state, string(source)).Inc()
}

package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	prometheusNamespace = "portal"
	prometheusSubsystem = "dispatch"
	providerLabelName   = "provider"
	gateLabelName       = "gate"
)

var (
	metrics *Metrics
	once    sync.Once
)

// Metrics holds the prometheus.Collector instances for dispatch outcomes.
type Metrics struct {
	sent       *prometheus.CounterVec
	failed     *prometheus.CounterVec
	gateDenied *prometheus.CounterVec
}

// Register registers the metrics with the given prometheus.Registerer.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.sent)
	r.MustRegister(m.failed)
	r.MustRegister(m.gateDenied)
}

// IncSent increments the counter for accepted sends.
func (m *Metrics) IncSent(provider string) {
	m.sent.With(prometheus.Labels{providerLabelName: provider}).Inc()
}

// IncFailed increments the counter for failed send attempts.
func (m *Metrics) IncFailed(provider string) {
	m.failed.With(prometheus.Labels{providerLabelName: provider}).Inc()
}

// IncGateDenied increments the counter for attempts denied by a ledger gate.
func (m *Metrics) IncGateDenied(provider, gate string) {
	m.gateDenied.With(prometheus.Labels{providerLabelName: provider, gateLabelName: gate}).Inc()
}

// DefaultMetrics returns the global singleton instance for Metrics,
// registered with the default prometheus registry so promhttp exposes it.
func DefaultMetrics() *Metrics {
	once.Do(func() {
		metrics = newMetrics()
		metrics.Register(prometheus.DefaultRegisterer)
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "sent_total",
			Help:      "Number of emails accepted by a provider",
		}, []string{providerLabelName}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "failed_total",
			Help:      "Number of failed provider send attempts",
		}, []string{providerLabelName}),
		gateDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Subsystem: prometheusSubsystem,
			Name:      "gate_denied_total",
			Help:      "Number of attempts denied by a quota gate before reaching the provider",
		}, []string{providerLabelName, gateLabelName}),
	}
}

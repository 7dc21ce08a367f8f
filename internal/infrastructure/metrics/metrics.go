package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Swap implements the pipeline's metrics port on Prometheus collectors
type Swap struct {
	quotes         *prometheus.CounterVec
	swaps          *prometheus.CounterVec
	swapDuration   prometheus.Histogram
	stuckFailed    prometheus.Counter
	providerErrors *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	securityEvents *prometheus.CounterVec
}

// NewSwap creates the collectors and registers them on reg
func NewSwap(reg prometheus.Registerer) *Swap {
	m := &Swap{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_quotes_total",
			Help: "Quotes generated by pair and kind",
		}, []string{"pair", "indicative"}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_swaps_total",
			Help: "Swap executions by outcome",
		}, []string{"outcome"}),
		swapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaultswap_swap_duration_seconds",
			Help:    "Wall time from intent creation to the swap result",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		stuckFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultswap_intents_stuck_failed_total",
			Help: "Intents failed because they stayed in one phase too long",
		}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_provider_errors_total",
			Help: "Route provider errors by provider and kind",
		}, []string{"provider", "kind"}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_reconciliation_records",
			Help: "Failed transaction records processed by resulting status",
		}, []string{"status"}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_security_events_total",
			Help: "Key vault audit events by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.quotes, m.swaps, m.swapDuration, m.stuckFailed, m.providerErrors, m.reconciliation, m.securityEvents)
	}
	return m
}

func (m *Swap) QuoteGenerated(pair string, indicative bool) {
	m.quotes.WithLabelValues(pair, strconv.FormatBool(indicative)).Inc()
}

func (m *Swap) SwapFinished(outcome string, elapsed time.Duration) {
	m.swaps.WithLabelValues(outcome).Inc()
	m.swapDuration.Observe(elapsed.Seconds())
}

func (m *Swap) StuckIntentFailed() { m.stuckFailed.Inc() }

func (m *Swap) ProviderError(provider, kind string) {
	m.providerErrors.WithLabelValues(provider, kind).Inc()
}

func (m *Swap) ReconciliationRecord(status string) {
	m.reconciliation.WithLabelValues(status).Inc()
}

func (m *Swap) SecurityEvent(operation, outcome string) {
	m.securityEvents.WithLabelValues(operation, outcome).Inc()
}

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics aggregates the counters and histograms describing donation
// ledger activity.
type LedgerMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	escrowMoves *prometheus.CounterVec
	rpcRequests *prometheus.CounterVec
	rpcLatency  *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Metrics returns the lazily-initialised process-wide ledger metrics registry.
func Metrics() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "npo",
				Subsystem: "donation",
				Name:      "transitions_total",
				Help:      "Committed donation lifecycle transitions segmented by event type.",
			}, []string{"event"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "npo",
				Subsystem: "donation",
				Name:      "failures_total",
				Help:      "Rejected mutations segmented by operation.",
			}, []string{"operation"}),
			escrowMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "npo",
				Subsystem: "escrow",
				Name:      "movements_total",
				Help:      "Escrow vault fund movements segmented by direction.",
			}, []string{"direction"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "npo",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "npo",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transitions,
			ledgerRegistry.failures,
			ledgerRegistry.escrowMoves,
			ledgerRegistry.rpcRequests,
			ledgerRegistry.rpcLatency,
		)
	})
	return ledgerRegistry
}

// RecordTransition counts one committed lifecycle event.
func (m *LedgerMetrics) RecordTransition(eventType string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(eventType).Inc()
}

// RecordFailure counts one rejected mutation for the named operation.
func (m *LedgerMetrics) RecordFailure(operation string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation).Inc()
}

// RecordEscrowMove counts one vault movement. Direction is one of deposit,
// release, refund or sweep.
func (m *LedgerMetrics) RecordEscrowMove(direction string) {
	if m == nil {
		return
	}
	m.escrowMoves.WithLabelValues(direction).Inc()
}

// ObserveRPC records a handled JSON-RPC request with its outcome and latency.
func (m *LedgerMetrics) ObserveRPC(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

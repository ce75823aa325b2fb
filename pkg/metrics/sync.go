package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics covers remote storefront calls and the cart sync queue.
type SyncMetrics struct {
	remoteDuration *prometheus.HistogramVec
	remoteCalls    *prometheus.CounterVec
	retries        *prometheus.CounterVec
	coalesced      *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	recreated      prometheus.Counter
	catalogRefresh *prometheus.CounterVec
}

// NewSyncMetrics registers the sync collectors on reg. A nil registerer yields
// a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	m := &SyncMetrics{
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of storefront API calls, including retries.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"operation"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Storefront API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Storefront API attempts retried after a transport failure.",
		}, []string{"operation"}),
		coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_ops_coalesced_total",
			Help:      "Queued cart mutations merged into an earlier pending mutation.",
		}, []string{"kind"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_rollbacks_total",
			Help:      "Optimistic cart mutations rolled back by failure kind.",
		}, []string{"kind"}),
		recreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_sessions_recreated_total",
			Help:      "Remote cart sessions recreated after the stored one went stale.",
		}),
		catalogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Variant mapping refreshes by source and outcome.",
		}, []string{"source", "outcome"}),
	}
	reg.MustRegister(m.remoteDuration, m.remoteCalls, m.retries, m.coalesced, m.rollbacks, m.recreated, m.catalogRefresh)
	return m
}

// ObserveRemoteCall records one logical storefront call.
func (m *SyncMetrics) ObserveRemoteCall(operation, outcome string, d time.Duration) {
	if m == nil || m.remoteCalls == nil {
		return
	}
	op := labelOrUnknown(operation)
	m.remoteDuration.WithLabelValues(op).Observe(d.Seconds())
	m.remoteCalls.WithLabelValues(op, labelOrUnknown(outcome)).Inc()
}

func (m *SyncMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(labelOrUnknown(operation)).Inc()
}

func (m *SyncMetrics) IncCoalesced(kind string) {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.WithLabelValues(labelOrUnknown(kind)).Inc()
}

func (m *SyncMetrics) IncRollback(kind string) {
	if m == nil || m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(labelOrUnknown(kind)).Inc()
}

func (m *SyncMetrics) IncSessionRecreated() {
	if m == nil || m.recreated == nil {
		return
	}
	m.recreated.Inc()
}

// IncCatalogRefresh counts a mapping rebuild; source is "remote" or "snapshot".
func (m *SyncMetrics) IncCatalogRefresh(source, outcome string) {
	if m == nil || m.catalogRefresh == nil {
		return
	}
	m.catalogRefresh.WithLabelValues(labelOrUnknown(source), labelOrUnknown(outcome)).Inc()
}

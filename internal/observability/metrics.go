package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for VaultCore.
type Metrics struct {
	// --- Registry & configuration ---
	FusesRegistered prometheus.Gauge
	ConfigChanges   *prometheus.CounterVec

	// --- Execution ---
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ActionsExecuted   prometheus.Counter

	// --- Balance refresh ---
	BalanceRefreshDuration prometheus.Histogram
	MarketsRefreshed       prometheus.Counter

	// --- Risk limits ---
	LimitChecks   prometheus.Counter
	LimitBreaches *prometheus.CounterVec

	// --- Callbacks ---
	CallbackDispatches *prometheus.CounterVec

	// --- Audit trail ---
	AuditRecords         prometheus.Counter
	AuditDrops           *prometheus.CounterVec
	AuditPersistWritten  prometheus.Counter
	AuditPersistBatchDur prometheus.Histogram
	AuditPublishErrors   prometheus.Counter

	// --- Trail channels ---
	TrailChannelSize        *prometheus.GaugeVec
	TrailChannelCapacity    *prometheus.GaugeVec
	TrailChannelUtilization *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once per
// process; promauto registers on the default registry.
func NewMetrics() *Metrics {
	durationBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05,
	}

	return &Metrics{
		FusesRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_fuses_registered",
			Help: "Fuses currently registered",
		}),

		ConfigChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_config_changes_total",
			Help: "Configuration mutations by audit record type",
		}, []string{"record_type"}),

		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_executions_total",
			Help: "Top-level execute calls by outcome",
		}, []string{"status"}),

		ExecutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_execution_duration_seconds",
			Help:    "End-to-end duration of a top-level execute call",
			Buckets: durationBuckets,
		}),

		ActionsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_actions_executed_total",
			Help: "Fuse actions executed",
		}),

		BalanceRefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_balance_refresh_duration_seconds",
			Help:    "Duration of a full market balance refresh cycle",
			Buckets: durationBuckets,
		}),

		MarketsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_markets_refreshed_total",
			Help: "Market balance recomputations",
		}),

		LimitChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_limit_checks_total",
			Help: "Exposure limit checks performed",
		}),

		LimitBreaches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_limit_breaches_total",
			Help: "Exposure limit breaches by market",
		}, []string{"market_id"}),

		CallbackDispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_callback_dispatches_total",
			Help: "External callback dispatches by outcome",
		}, []string{"status"}),

		AuditRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_audit_records_total",
			Help: "Audit records emitted",
		}),

		AuditDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_audit_drops_total",
			Help: "Audit envelopes dropped on a full subscriber channel",
		}, []string{"subscriber"}),

		AuditPersistWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_audit_persist_written_total",
			Help: "Audit records written to Postgres",
		}),

		AuditPersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_audit_persist_batch_duration_seconds",
			Help:    "Postgres audit batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		AuditPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_audit_publish_errors_total",
			Help: "Failed NATS publishes of audit records",
		}),

		TrailChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_trail_channel_size",
			Help: "Current items in a trail subscriber channel",
		}, []string{"subscriber"}),

		TrailChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_trail_channel_capacity",
			Help: "Trail subscriber channel capacity (constant)",
		}, []string{"subscriber"}),

		TrailChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_trail_channel_utilization",
			Help: "Trail subscriber channel size / capacity (0.0-1.0)",
		}, []string{"subscriber"}),
	}
}

// SetTrailChannelMetrics updates subscriber channel utilization metrics.
func (m *Metrics) SetTrailChannelMetrics(subscriber string, size, capacity int) {
	m.TrailChannelSize.WithLabelValues(subscriber).Set(float64(size))
	m.TrailChannelCapacity.WithLabelValues(subscriber).Set(float64(capacity))
	if capacity > 0 {
		m.TrailChannelUtilization.WithLabelValues(subscriber).Set(float64(size) / float64(capacity))
	}
}

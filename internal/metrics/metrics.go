// Package metrics exposes ledger activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keuangan/internal/core"
)

const namespace = "keuangan"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsCreated *prometheus.CounterVec
	TransactionsDeleted prometheus.Counter
	Restores            *prometheus.CounterVec
	Exports             *prometheus.CounterVec
	PersistFailures     prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	RateLimitHits       prometheus.Counter
	SuspiciousRequests  prometheus.Counter

	LedgerSize    prometheus.Gauge
	IncomeTotal   prometheus.Gauge
	ExpenseTotal  prometheus.Gauge
	BalanceTotal  prometheus.Gauge
	ActionLatency *prometheus.HistogramVec
}

// New registers the ledger collectors plus the Go and process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TransactionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_created_total",
			Help:      "Total transactions created, by type.",
		}, []string{"type"}),
		TransactionsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_deleted_total",
			Help:      "Total confirmed deletions.",
		}),
		Restores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "restores_total",
			Help:      "Restore attempts by result (applied, declined, rejected).",
		}, []string{"result"}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "exports_total",
			Help:      "Exports by format (backup, csv, sheets).",
		}, []string{"format"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persist_failures_total",
			Help:      "Total failed writes of the ledger slot.",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "events_published_total",
			Help:      "Ledger events published, by result.",
		}, []string{"result"}),
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limit_hits_total",
			Help:      "Requests refused by the rate limiter.",
		}),
		SuspiciousRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern.",
		}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions",
			Help:      "Number of transactions currently in the ledger.",
		}),
		IncomeTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "income_rupiah",
			Help:      "Sum of income amounts.",
		}),
		ExpenseTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "expense_rupiah",
			Help:      "Sum of expense amounts.",
		}),
		BalanceTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance_rupiah",
			Help:      "Income minus expense.",
		}),
		ActionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "action_duration_seconds",
			Help:      "Duration of user actions, including persistence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Saved implements ledger.Observer.
func (m *Metrics) Saved(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PersistFailures.Inc()
	}
	m.LedgerSize.Set(float64(n))
}

// ObserveSummary updates the totals gauges.
func (m *Metrics) ObserveSummary(s core.Summary) {
	if m == nil {
		return
	}
	series := s.Series()
	m.IncomeTotal.Set(series[0])
	m.ExpenseTotal.Set(series[1])
	m.BalanceTotal.Set(series[2])
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

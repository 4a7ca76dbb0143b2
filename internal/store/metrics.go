package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes adapter SQL durations per table and statement kind.
// An observability hook only: timing never affects behavior. Collectors
// are created unregistered; production wires them via Register.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	rowsAffected  *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of adapter SQL statements.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "op"}),
		rowsAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "store",
			Name:      "rows_affected_total",
			Help:      "Rows affected by adapter writes.",
		}, []string{"table", "op"}),
	}
}

// Register attaches the store collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{m.queryDuration, m.rowsAffected} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// timer mirrors the backing-store contract's monotonic statement timers.
type timer struct {
	metrics *Metrics
	table   string
	op      string
	start   time.Time
}

func (m *Metrics) timeQuery(table, op string) *timer {
	return &timer{metrics: m, table: table, op: op, start: time.Now()}
}

func (t *timer) done() {
	t.metrics.queryDuration.WithLabelValues(t.table, t.op).Observe(time.Since(t.start).Seconds())
}

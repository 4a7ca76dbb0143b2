package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache traffic. Collectors are created unregistered so
// tests can build caches freely; production wires them to a registry via
// Register.
type Metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "entry_cache",
			Name:      "hits_total",
			Help:      "Entry cache lookups answered from cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "entry_cache",
			Name:      "misses_total",
			Help:      "Entry cache lookups that fell through to the store.",
		}),
	}
}

// Register attaches the cache collectors to reg.
func (c *EntryCache) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.metrics.hits, c.metrics.misses} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector reads pgx pool statistics at scrape time. The acquire
// counters show how long reset transactions and settings queries wait for a
// connection.
type poolCollector struct {
	pool *pgxpool.Pool

	acquiredConns   *prometheus.Desc
	idleConns       *prometheus.Desc
	totalConns      *prometheus.Desc
	maxConns        *prometheus.Desc
	acquires        *prometheus.Desc
	emptyAcquires   *prometheus.Desc
	canceledAcquire *prometheus.Desc
	acquireSeconds  *prometheus.Desc
}

// NewPoolCollector returns a collector for pool.
func NewPoolCollector(pool *pgxpool.Pool) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("cashier_db_pool_"+name, help, nil, nil)
	}
	return &poolCollector{
		pool:            pool,
		acquiredConns:   desc("acquired_connections", "Connections currently checked out of the pool."),
		idleConns:       desc("idle_connections", "Idle connections held by the pool."),
		totalConns:      desc("connections", "All connections held by the pool."),
		maxConns:        desc("max_connections", "Configured pool size."),
		acquires:        desc("acquires_total", "Successful connection acquires."),
		emptyAcquires:   desc("empty_acquires_total", "Acquires that had to wait because no idle connection was available."),
		canceledAcquire: desc("canceled_acquires_total", "Acquires abandoned because their context was cancelled."),
		acquireSeconds:  desc("acquire_seconds_total", "Total time spent waiting for connections."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.emptyAcquires
	ch <- c.canceledAcquire
	ch <- c.acquireSeconds
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stat()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	gauge(c.acquiredConns, float64(st.AcquiredConns()))
	gauge(c.idleConns, float64(st.IdleConns()))
	gauge(c.totalConns, float64(st.TotalConns()))
	gauge(c.maxConns, float64(st.MaxConns()))
	counter(c.acquires, float64(st.AcquireCount()))
	counter(c.emptyAcquires, float64(st.EmptyAcquireCount()))
	counter(c.canceledAcquire, float64(st.CanceledAcquireCount()))
	counter(c.acquireSeconds, st.AcquireDuration().Seconds())
}

// RegisterPgxPoolMetrics registers the pool collector with the default registry.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	prometheus.MustRegister(NewPoolCollector(pool))
}

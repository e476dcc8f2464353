package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type statSource interface {
	Stat() *pgxpool.Stat
}

type poolCollector struct {
	src statSource

	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

func newPoolCollector(src statSource) *poolCollector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("pg_pool_"+name, help, nil, nil)
	}
	return &poolCollector{
		src:      src,
		total:    d("conns_total", "Connections currently open."),
		idle:     d("conns_idle", "Idle connections."),
		acquired: d("conns_acquired", "Connections checked out."),
		max:      d("conns_max", "Configured pool size."),
		waits:    d("empty_acquire_total", "Acquires that had to wait for a connection."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.max
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}

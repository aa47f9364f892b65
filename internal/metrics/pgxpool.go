package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPoolMetrics exposes statistics of the store connection pool on reg.
// db_pool_empty_acquire_total grows whenever a request had to wait for a
// connection because the pool was exhausted.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool) error {
	gauge := func(name, help string, value func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(pool.Stat())
		})
	}
	counter := func(name, help string, value func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return value(pool.Stat())
		})
	}

	collectors := []prometheus.Collector{
		gauge("db_pool_acquired_conns", "Connections currently checked out of the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("db_pool_idle_conns", "Idle connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("db_pool_total_conns", "Open connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("db_pool_max_conns", "Upper bound of the pool size",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		counter("db_pool_acquire_total", "Successful connection acquisitions",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
		counter("db_pool_empty_acquire_total", "Acquisitions that waited for a connection to be released",
			func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
		counter("db_pool_canceled_acquire_total", "Acquisitions abandoned because the caller's context ended",
			func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

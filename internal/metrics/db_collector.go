package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStatter exposes connection pool statistics
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// DBStatsCollector periodically copies pool statistics into gauges
type DBStatsCollector struct {
	pool   PoolStatter
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDBStatsCollector creates a new database stats collector
func NewDBStatsCollector(pool PoolStatter, logger *slog.Logger) *DBStatsCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBStatsCollector{
		pool:   pool,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins collecting database statistics at regular intervals
func (c *DBStatsCollector) Start(interval time.Duration) {
	go func() {
		defer close(c.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()

	c.logger.Info("Database stats collector started", "interval", interval)
}

// Stop stops the collector and waits for it to exit
func (c *DBStatsCollector) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.logger.Info("Database stats collector stopped")
}

func (c *DBStatsCollector) collect() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	DBConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
}

// RecordQueryDuration records the duration of a database query
func RecordQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TimeQuery is a helper function to time database queries
// Usage: defer metrics.TimeQuery("select_account")()
func TimeQuery(operation string) func() {
	start := time.Now()
	return func() {
		RecordQueryDuration(operation, time.Since(start))
	}
}

// Pinger is anything that can check database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingDatabase checks database connectivity and records the result
func PingDatabase(ctx context.Context, db Pinger) error {
	start := time.Now()
	err := db.Ping(ctx)
	RecordQueryDuration("ping", time.Since(start))
	return err
}

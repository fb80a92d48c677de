// Package health probes the backing stores and flips the degraded flag.
// A degraded pipeline keeps processing; the flag only feeds the health
// endpoint and metrics.
package health

import (
	"context"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Status is the point-in-time view served by the health endpoint.
type Status struct {
	Healthy  bool   `json:"healthy"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

type Monitor struct {
	db       *gorm.DB
	redis    redis.Cmdable
	metrics  *metrics.WorkerMetrics
	interval time.Duration
	timeout  time.Duration

	logger *elog.Component
}

func NewMonitor(db *gorm.DB, rdb redis.Cmdable, workerMetrics *metrics.WorkerMetrics, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		db:       db,
		redis:    rdb,
		metrics:  workerMetrics,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   elog.DefaultLogger.With(elog.String("component", "health")),
	}
}

// Run probes on a fixed interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	// Probe once up front so the flag is meaningful before the first tick.
	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// Check probes both stores and returns the current status.
func (m *Monitor) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status := Status{Healthy: true, Database: "ok", Redis: "ok"}
	if err := m.pingDB(ctx); err != nil {
		status.Healthy = false
		status.Database = err.Error()
	}
	if err := m.redis.Ping(ctx).Err(); err != nil {
		status.Healthy = false
		status.Redis = err.Error()
	}
	return status
}

func (m *Monitor) probe(ctx context.Context) {
	status := m.Check(ctx)
	m.metrics.SetDegraded(!status.Healthy)
	if !status.Healthy {
		m.logger.Warn("dependency check failed",
			elog.String("database", status.Database),
			elog.String("redis", status.Redis))
	}
}

func (m *Monitor) pingDB(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

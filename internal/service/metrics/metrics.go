// Package metrics aggregates worker counters and queue depths. The process
// is the system of record only for its own uptime; the snapshot is mirrored
// to redis for observability and resets on restart.
package metrics

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	mirrorKey = "notify:worker:metrics"
	mirrorTTL = 5 * time.Minute
)

// WorkerMetrics carries both the prometheus collectors and the raw counters
// behind the mirrored snapshot.
type WorkerMetrics struct {
	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64

	totalProcessingNanos atomic.Int64

	startedAt time.Time

	processedCounter *prometheus.CounterVec
	failedCounter    *prometheus.CounterVec
	retriedCounter   *prometheus.CounterVec
	durationSummary  *prometheus.SummaryVec
	queueDepthGauge  *prometheus.GaugeVec
	degradedGauge    prometheus.Gauge
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		startedAt: time.Now(),
		processedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_worker_processed_total",
				Help: "Jobs processed, by queue and outcome.",
			},
			[]string{"queue", "outcome"},
		),
		failedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_worker_failed_total",
				Help: "Job failures, by queue.",
			},
			[]string{"queue"},
		),
		retriedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_worker_retried_total",
				Help: "Jobs handed to the retry scheduler, by queue.",
			},
			[]string{"queue"},
		),
		durationSummary: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "notify_worker_job_duration_seconds",
				Help:       "Per-job processing time.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
				MaxAge:     5 * time.Minute,
			},
			[]string{"queue"},
		),
		queueDepthGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "notify_queue_depth",
				Help: "Current depth per queue.",
			},
			[]string{"queue"},
		),
		degradedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notify_worker_degraded",
				Help: "1 when a dependency health probe is failing.",
			},
		),
	}
	reg.MustRegister(
		m.processedCounter, m.failedCounter, m.retriedCounter,
		m.durationSummary, m.queueDepthGauge, m.degradedGauge,
	)
	return m
}

func (m *WorkerMetrics) ObserveProcessed(queue string, duration time.Duration, succeeded bool) {
	m.processed.Add(1)
	m.totalProcessingNanos.Add(duration.Nanoseconds())
	outcome := "success"
	if !succeeded {
		outcome = "failure"
		m.failed.Add(1)
		m.failedCounter.WithLabelValues(queue).Inc()
	}
	m.processedCounter.WithLabelValues(queue, outcome).Inc()
	m.durationSummary.WithLabelValues(queue).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveRetried(queue string) {
	m.retried.Add(1)
	m.retriedCounter.WithLabelValues(queue).Inc()
}

func (m *WorkerMetrics) SetQueueDepth(queue string, depth int64) {
	m.queueDepthGauge.WithLabelValues(queue).Set(float64(depth))
}

func (m *WorkerMetrics) SetDegraded(degraded bool) {
	if degraded {
		m.degradedGauge.Set(1)
		return
	}
	m.degradedGauge.Set(0)
}

// Snapshot is the mirrored aggregate view.
type Snapshot struct {
	Processed         int64            `json:"processed"`
	Failed            int64            `json:"failed"`
	Retried           int64            `json:"retried"`
	AvgProcessingMs   float64          `json:"avgProcessingMs"`
	QueueDepths       map[string]int64 `json:"queueDepths,omitempty"`
	UptimeSeconds     int64            `json:"uptimeSeconds"`
	SnapshotTakenUnix int64            `json:"snapshotTakenUnix"`
}

func (m *WorkerMetrics) Snapshot(queueDepths map[string]int64) Snapshot {
	processed := m.processed.Load()
	var avgMs float64
	if processed > 0 {
		avgMs = float64(m.totalProcessingNanos.Load()) / float64(processed) / float64(time.Millisecond)
	}
	return Snapshot{
		Processed:         processed,
		Failed:            m.failed.Load(),
		Retried:           m.retried.Load(),
		AvgProcessingMs:   avgMs,
		QueueDepths:       queueDepths,
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		SnapshotTakenUnix: time.Now().Unix(),
	}
}

// Mirror writes the snapshot to redis with a TTL so observers see staleness
// instead of ghosts when the worker dies.
func (m *WorkerMetrics) Mirror(ctx context.Context, client redis.Cmdable, queueDepths map[string]int64) error {
	data, err := json.Marshal(m.Snapshot(queueDepths))
	if err != nil {
		return err
	}
	return client.Set(ctx, mirrorKey, data, mirrorTTL).Err()
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotAggregates(t *testing.T) {
	t.Parallel()
	m := NewWorkerMetrics(prometheus.NewRegistry())

	queue := "notify:queue:normal:email"
	m.ObserveProcessed(queue, 100*time.Millisecond, true)
	m.ObserveProcessed(queue, 300*time.Millisecond, false)
	m.ObserveRetried(queue)

	snap := m.Snapshot(map[string]int64{queue: 5})
	assert.EqualValues(t, 2, snap.Processed)
	assert.EqualValues(t, 1, snap.Failed)
	assert.EqualValues(t, 1, snap.Retried)
	assert.InDelta(t, 200.0, snap.AvgProcessingMs, 0.001)
	assert.EqualValues(t, 5, snap.QueueDepths[queue])
	assert.NotZero(t, snap.SnapshotTakenUnix)
}

func TestSnapshotEmpty(t *testing.T) {
	t.Parallel()
	m := NewWorkerMetrics(prometheus.NewRegistry())
	snap := m.Snapshot(nil)
	assert.Zero(t, snap.Processed)
	assert.Zero(t, snap.AvgProcessingMs, "no division by zero on an idle worker")
}

func TestReRegisterPanicsAreAvoidedWithFreshRegistry(t *testing.T) {
	t.Parallel()
	// Two workers in one process need separate registries.
	assert.NotPanics(t, func() {
		NewWorkerMetrics(prometheus.NewRegistry())
		NewWorkerMetrics(prometheus.NewRegistry())
	})
}

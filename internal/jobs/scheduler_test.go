package jobs

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/telemetry"
)

func TestScheduler_RejectsBadJobs(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Add(Job{Name: "nil", Schedule: "@every 1s"}))
	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "every minute", Run: func(context.Context) error { return nil }}))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	var sawCtx atomic.Bool
	require.NoError(t, s.Add(Job{Name: "tick", Schedule: "* * * * * *", Run: func(ctx context.Context) error {
		sawCtx.Store(ctx.Value(ctxKey{}) == "marker")
		runs.Add(1)
		return nil
	}}))
	assert.Equal(t, 1, s.Len())

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "marker"))
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, sawCtx.Load())
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type ctxKey struct{}

func TestMetricsSampler_FillsHistory(t *testing.T) {
	history := services.NewMetricsHistory(4)
	job := MetricsSampler(30, t.TempDir(), history, nil)
	assert.Equal(t, "@every 30s", job.Schedule)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, history.Latest(0), 1)
}

type fakeStats struct{}

func (fakeStats) Stats() sql.DBStats {
	return sql.DBStats{OpenConnections: 7, InUse: 3, WaitCount: 11}
}

func TestDBStats_RecordsGauges(t *testing.T) {
	require.NoError(t, DBStats(fakeStats{}).Run(context.Background()))
	assert.Equal(t, float64(7), gaugeValue(t, telemetry.DBOpenConnections))
	assert.Equal(t, float64(3), gaugeValue(t, telemetry.DBInUseConnections))
	assert.Equal(t, float64(11), gaugeValue(t, telemetry.DBWaitCount))
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestLogRetention(t *testing.T) {
	logs, err := telemetry.NewDailyFile(t.TempDir(), 7)
	require.NoError(t, err)
	defer logs.Close()
	assert.NoError(t, LogRetention(logs).Run(context.Background()))
}

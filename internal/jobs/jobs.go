package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/telemetry"
)

// MetricsSampler captures a host sample, stores it in history and pushes
// it to connected dashboards.
func MetricsSampler(intervalSeconds int, diskPath string, history *services.MetricsHistory, hub *services.Hub) Job {
	return Job{
		Name:     "metrics-sample",
		Schedule: fmt.Sprintf("@every %ds", intervalSeconds),
		Run: func(context.Context) error {
			sample, err := services.CaptureMetrics(diskPath)
			if err != nil {
				return err
			}
			history.Add(sample)
			if hub != nil {
				hub.Broadcast(services.Event{Type: services.EventMetrics, Data: sample})
			}
			return nil
		},
	}
}

// LogRetention prunes daily log files past their retention once a night.
func LogRetention(logs *telemetry.DailyFile) Job {
	return Job{
		Name:     "log-retention",
		Schedule: "0 5 0 * * *",
		Run: func(context.Context) error {
			if removed := logs.Cleanup(); removed > 0 {
				slog.Info("old log files removed", "count", removed)
			}
			return nil
		},
	}
}

type statser interface {
	Stats() sql.DBStats
}

// DBStats copies connection pool statistics into the Prometheus gauges.
func DBStats(db statser) Job {
	return Job{
		Name:     "db-stats",
		Schedule: "@every 15s",
		Run: func(context.Context) error {
			telemetry.RecordDBStats(db.Stats())
			return nil
		},
	}
}

// Package jobs runs the periodic background work of the server on a cron
// schedule: metrics sampling, log retention and pool statistics.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Job is one scheduled task. Schedule uses the six-field cron syntax with
// seconds, or descriptors such as "@every 10s".
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler wraps a cron instance. A job that is still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
	ctx  context.Context
}

func NewScheduler() *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx: context.Background(),
	}
}

// Add registers job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return errors.Errorf("job %s has no run func", job.Name)
	}
	_, err := s.cron.AddFunc(job.Schedule, func() {
		started := time.Now()
		if err := job.Run(s.ctx); err != nil {
			slog.Warn("scheduled job failed", "job", job.Name, "error", err)
			return
		}
		slog.Debug("scheduled job finished", "job", job.Name, "duration", time.Since(started))
	})
	if err != nil {
		return errors.Wrapf(err, "schedule job %s (%q)", job.Name, job.Schedule)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) Len() int {
	return len(s.jobs)
}

// Start runs the scheduler until ctx is cancelled, then waits for running
// jobs to return.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	slog.Info("job scheduler running", "jobs", len(s.jobs))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("job scheduler stopped")
}

type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// NewScheduler builds and starts a UTC scheduler whose job lifecycle events are logged to log.
// Every job inherits ctx, so cancelling it stops in-flight runs.
func NewScheduler(ctx context.Context, log *slog.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithContext(ctx),
			gocron.WithEventListeners(
				gocron.BeforeJobRuns(func(jobID uuid.UUID, jobName string) {
					log.Debug("job started", "job_name", jobName, "job_id", jobID.String())
				}),
				gocron.AfterJobRuns(func(jobID uuid.UUID, jobName string) {
					log.Debug("job finished", "job_name", jobName, "job_id", jobID.String())
				}),
				gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
					log.Error("job failed", "job_name", jobName, "job_id", jobID.String(), "err", err)
				}),
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error("job panicked", "job_name", jobName, "job_id", jobID.String(), "recover_data", recoverData)
				}),
			),
		),
		gocron.WithLogger(log.With("component", "gocron")),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("new cron scheduler: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

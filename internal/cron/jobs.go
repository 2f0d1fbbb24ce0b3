package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StaleSweeper drops records that can no longer validate a code or block a resend.
type StaleSweeper interface {
	DeleteStale(now time.Time, cooldown time.Duration) int
}

const sweepJobName = "otp delete stale records"

// RegisterSweep schedules an hourly, non-overlapping sweep of store.
func RegisterSweep(s gocron.Scheduler, store StaleSweeper, cooldown time.Duration, log *slog.Logger) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func(_ context.Context) {
			if n := store.DeleteStale(time.Now(), cooldown); n > 0 {
				log.Info("swept stale otp records", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(sweepJobName),
	)
}

// Package cron runs the background maintenance jobs.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PreviewCleaner deletes stale PREVIEW import batches.
type PreviewCleaner interface {
	CleanupStalePreviews(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddPreviewCleanup schedules deletion of PREVIEW batches older than maxAge.
// The schedule is a standard five-field cron expression.
func (s *Scheduler) AddPreviewCleanup(schedule string, cleaner PreviewCleaner, maxAge time.Duration) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		deleted, err := cleaner.CleanupStalePreviews(ctx, maxAge)
		if err != nil {
			s.logger.Error("preview cleanup failed", "error", err)
			return
		}
		s.logger.Info("preview cleanup finished", "deleted", deleted)
	})
	return err
}

// Start begins running scheduled jobs in their own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels future runs and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

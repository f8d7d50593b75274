package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/server"
)

// Scheduler fires a periodic sync over the trailing day (yesterday through
// today). A tick that lands while a run is still active is skipped instead
// of queued.
type Scheduler struct {
	syncer   server.SyncRunner
	guard    *pipeline.RunGuard
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time
}

func New(syncer server.SyncRunner, guard *pipeline.RunGuard, interval, budget time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		guard:    guard,
		interval: interval,
		budget:   budget,
		logger:   logger.With("component", "scheduler"),
		nowFn:    time.Now,
	}
}

// Run ticks until ctx is canceled. The first sync happens one interval
// after startup, not immediately, so a crash-looping process does not
// hammer the source.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String(), "budget", s.budget.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.guard.TryAcquire() {
		s.logger.Warn("previous sync still running, skipping tick")
		return
	}
	defer s.guard.Release()

	now := s.nowFn()
	dateStart := now.AddDate(0, 0, -1).Format("20060102")
	dateEnd := now.Format("20060102")
	deadline := now.Add(s.budget)

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	report, err := s.syncer.Run(runCtx, dateStart, dateEnd, deadline, "schedule")
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
		return
	}
	if !report.Success {
		s.logger.Warn("scheduled sync interrupted by budget",
			"resume_page", report.CurrentPage,
			"modality", report.Modality,
		)
		return
	}
	s.logger.Info("scheduled sync completed",
		"pages", report.PagesProcessed,
		"created", report.Created,
		"updated", report.Updated,
	)
}

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/email"
	"github.com/brightmesh/querycore/internal/metrics"
	"github.com/brightmesh/querycore/internal/repository"
)

// Reaper transitions runs stuck in running past their timeout (a runner
// that crashed or lost its connection mid-query, leaving no terminal
// status behind) to timeout, in batches, on a fixed interval, and sends
// the same failure notification a Worker would for any swept run that
// belongs to a schedule with NotifyOnFailure set.
type Reaper struct {
	runs      repository.RunRepository
	schedules repository.ScheduleRepository
	users     repository.UserRepository
	notifier  email.Sender
	logger    *slog.Logger
	interval  time.Duration
	grace     time.Duration
	batch     int
}

func NewReaper(runs repository.RunRepository, schedules repository.ScheduleRepository, users repository.UserRepository, notifier email.Sender, logger *slog.Logger, interval, grace time.Duration) *Reaper {
	return &Reaper{
		runs:      runs,
		schedules: schedules,
		users:     users,
		notifier:  notifier,
		logger:    logger.With("component", "reaper"),
		interval:  interval,
		grace:     grace,
		batch:     100,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "grace", r.grace)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := time.Now().Add(-r.grace)
	swept, err := r.runs.ReapStale(ctx, cutoff, r.batch)
	if err != nil {
		r.logger.Error("reaper: sweep stale runs", "error", err)
		return
	}
	if len(swept) == 0 {
		return
	}

	metrics.ReaperSweptTotal.WithLabelValues("timeout").Add(float64(len(swept)))
	r.logger.Info("reaper: swept stale runs", "count", len(swept))

	for _, run := range swept {
		r.notifyIfScheduled(ctx, run)
	}
}

// notifyIfScheduled mirrors Worker.notifyIfScheduled for runs the reaper
// (rather than the worker itself) moved to a terminal failure status.
func (r *Reaper) notifyIfScheduled(ctx context.Context, run *domain.Run) {
	if run.ScheduleID == nil {
		return
	}

	s, err := r.schedules.GetByID(ctx, run.OrganizationID, *run.ScheduleID)
	if err != nil || !s.NotifyOnFailure {
		return
	}

	u, err := r.users.GetByID(ctx, s.CreatedBy)
	if err != nil {
		r.logger.Warn("reaper: loading schedule creator for notification", "schedule_id", s.ID, "error", err)
		return
	}

	subject := fmt.Sprintf("Scheduled query %q timed out", s.Name)
	body := fmt.Sprintf("<p>Run %s of schedule %q did not complete before its declared timeout and was swept by the reaper.</p>", run.ID, s.Name)
	if err := r.notifier.Send(ctx, u.Email, subject, body); err != nil {
		r.logger.Warn("reaper: sending failure notification", "schedule_id", s.ID, "error", err)
	}
}

package runner

import (
	"context"
	"log/slog"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/email"
	"github.com/brightmesh/querycore/internal/repository"
)

// notifyScheduleCreator emails the schedule's creator when a run it fired
// landed in failed or timeout and the schedule opted into failure
// notifications. Used by both Worker (on immediate failure) and Reaper
// (on a stale-run sweep). A missing schedule, user, or send error is
// logged and swallowed — a notification failure must never affect the
// run's own terminal status.
func notifyScheduleCreator(ctx context.Context, schedules repository.ScheduleRepository, users repository.UserRepository, notifier email.Sender, logger *slog.Logger, run *domain.Run, subject, body string) {
	if run.ScheduleID == nil {
		return
	}

	s, err := schedules.GetByID(ctx, run.OrganizationID, *run.ScheduleID)
	if err != nil || !s.NotifyOnFailure {
		return
	}

	u, err := users.GetByID(ctx, s.CreatedBy)
	if err != nil {
		logger.Warn("loading schedule creator for notification", "schedule_id", s.ID, "error", err)
		return
	}

	if err := notifier.Send(ctx, u.Email, subject, body); err != nil {
		logger.Warn("sending failure notification", "schedule_id", s.ID, "error", err)
	}
}

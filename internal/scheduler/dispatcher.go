// Package scheduler runs the background process that fires due schedules.
// It holds no query-execution logic of its own: firing a schedule means
// atomically claiming it and inserting a queued Run, which a separate
// runner process later picks up.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/metrics"
	"github.com/brightmesh/querycore/internal/params"
	"github.com/brightmesh/querycore/internal/repository"
	"github.com/brightmesh/querycore/internal/usecase"
)

// Dispatcher polls for due schedules on a fixed interval and fires them.
type Dispatcher struct {
	repo     repository.ScheduleRepository
	queries  repository.QueryRepository
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewDispatcher(repo repository.ScheduleRepository, queries repository.QueryRepository, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		queries:  queries,
		logger:   logger.With("component", "dispatcher"),
		interval: interval,
		batch:    100,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	start := time.Now()

	newRun := func(s *domain.Schedule) *domain.Run {
		return d.newRun(ctx, s)
	}

	fired, err := d.repo.ClaimAndFire(ctx, d.batch, d.computeNext, newRun)
	if err != nil {
		d.logger.Error("dispatcher claim and fire", "error", err)
		return
	}
	if len(fired) == 0 {
		return
	}

	for range fired {
		metrics.ScheduleFireLatency.Observe(time.Since(start).Seconds())
	}
	metrics.SchedulesFiredTotal.Add(float64(len(fired)))
	d.logger.Info("dispatcher fired schedules", "count", len(fired))
}

// computeNext delegates to usecase.ComputeNextRunAt, skipping any missed
// fire times so a schedule that was paused or a dispatcher that was down
// does not fire once per missed interval on recovery.
func (d *Dispatcher) computeNext(s *domain.Schedule) time.Time {
	next, err := usecase.ComputeNextRunAt(s.CronExpr, s.NextRunAt)
	if err != nil {
		// Validated on create/update; should never happen here.
		d.logger.Error("invalid cron expression in schedule", "schedule_id", s.ID, "cron_expr", s.CronExpr, "error", err)
		return time.Now().Add(time.Hour)
	}

	now := time.Now()
	for !next.After(now) {
		next, err = usecase.ComputeNextRunAt(s.CronExpr, next)
		if err != nil {
			return now.Add(time.Hour)
		}
	}
	return next
}

// newRun builds the queued Run that firing s inserts. A scheduled run
// has no caller supplying parameter values, so every $param in the
// query's SQL must resolve from its own ParamDef.Default; a parameter
// with no default and no value makes the schedule fail to fire (logged,
// not retried until the next poll, since a broken schedule is not going
// to start succeeding before someone fixes it).
func (d *Dispatcher) newRun(ctx context.Context, s *domain.Schedule) *domain.Run {
	q, err := d.queries.GetByID(ctx, s.OrganizationID, s.QueryID)
	if err != nil {
		d.logger.Error("dispatcher: loading query for schedule", "schedule_id", s.ID, "query_id", s.QueryID, "error", err)
		return &domain.Run{OrganizationID: s.OrganizationID, QueryID: s.QueryID, ScheduleID: &s.ID, CreatedBy: s.CreatedBy}
	}

	bound, err := params.BindParams(q.SQL, q.Parameters, nil)
	if err != nil {
		d.logger.Error("dispatcher: binding parameters for scheduled run", "schedule_id", s.ID, "query_id", s.QueryID, "error", err)
		return &domain.Run{OrganizationID: s.OrganizationID, QueryID: s.QueryID, DatasourceID: q.DatasourceID, ScheduleID: &s.ID, CreatedBy: s.CreatedBy}
	}

	encoded, err := params.EncodeValues(bound.Values)
	if err != nil {
		d.logger.Error("dispatcher: encoding parameters for scheduled run", "schedule_id", s.ID, "error", err)
		encoded = nil
	}

	scheduleID := s.ID
	return &domain.Run{
		OrganizationID: s.OrganizationID,
		QueryID:        s.QueryID,
		DatasourceID:   q.DatasourceID,
		ScheduleID:     &scheduleID,
		Status:         domain.RunStatusQueued,
		ExecutedSQL:    bound.SQL,
		Params:         encoded,
		TimeoutSeconds: q.TimeoutSeconds,
		MaxRows:        q.MaxRows,
		CreatedBy:      s.CreatedBy,
	}
}

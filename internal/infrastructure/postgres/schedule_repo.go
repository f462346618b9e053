package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedules (organization_id, query_id, name, cron_expr, paused, notify_on_failure, next_run_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, organization_id, query_id, name, cron_expr, paused, notify_on_failure,
		          next_run_at, last_run_at, created_by, created_at, updated_at`,
		s.OrganizationID, s.QueryID, s.Name, s.CronExpr, s.Paused, s.NotifyOnFailure, s.NextRunAt, s.CreatedBy,
	)
	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, query_id, name, cron_expr, paused, notify_on_failure,
		       next_run_at, last_run_at, created_by, created_at, updated_at
		FROM schedules WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	args := []any{input.OrganizationID}
	where := []string{"organization_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, organization_id, query_id, name, cron_expr, paused, notify_on_failure,
		       next_run_at, last_run_at, created_by, created_at, updated_at
		FROM schedules
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET name = $3, cron_expr = $4, paused = $5, notify_on_failure = $6, next_run_at = $7, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, query_id, name, cron_expr, paused, notify_on_failure,
		          next_run_at, last_run_at, created_by, created_at, updated_at`,
		s.OrganizationID, s.ID, s.Name, s.CronExpr, s.Paused, s.NotifyOnFailure, s.NextRunAt,
	)
	return scanSchedule(row)
}

func (r *ScheduleRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// ClaimAndFire atomically claims due schedules, inserts one Run per
// schedule, and advances next_run_at/last_run_at — all inside a single
// transaction so no two scheduler replicas can double-fire the same due
// schedule.
func (r *ScheduleRepository) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time, newRun func(*domain.Schedule) *domain.Run) ([]*domain.Run, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, organization_id, query_id, name, cron_expr, paused, notify_on_failure,
		       next_run_at, last_run_at, created_by, created_at, updated_at
		FROM schedules
		WHERE next_run_at <= NOW() AND NOT paused
		ORDER BY next_run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim schedules: %w", err)
	}

	var schedules []*domain.Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			rows.Close()
			err = scanErr
			return nil, err
		}
		schedules = append(schedules, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	var fired []*domain.Run

	for _, s := range schedules {
		next := computeNext(s)
		run := newRun(s)

		var created domain.Run
		scanErr := tx.QueryRow(ctx, `
			INSERT INTO runs (organization_id, query_id, datasource_id, schedule_id, status, params,
			                   timeout_seconds, max_rows, created_by)
			VALUES ($1, $2, $3, $4, 'queued', $5, $6, $7, $8)
			RETURNING id, organization_id, query_id, datasource_id, schedule_id, status, params,
			          timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
			          completed_at, error_message`,
			run.OrganizationID, run.QueryID, run.DatasourceID, run.ScheduleID, run.Params,
			run.TimeoutSeconds, run.MaxRows, run.CreatedBy,
		).Scan(
			&created.ID, &created.OrganizationID, &created.QueryID, &created.DatasourceID, &created.ScheduleID,
			&created.Status, &created.Params, &created.TimeoutSeconds, &created.MaxRows, &created.RunnerID,
			&created.CreatedBy, &created.CreatedAt, &created.StartedAt, &created.CompletedAt, &created.ErrorMessage,
		)
		if scanErr != nil {
			err = fmt.Errorf("insert run for schedule %s: %w", s.ID, scanErr)
			return nil, err
		}
		fired = append(fired, &created)

		if _, updateErr := tx.Exec(ctx,
			`UPDATE schedules SET next_run_at = $2, last_run_at = NOW(), updated_at = NOW() WHERE id = $1`,
			s.ID, next,
		); updateErr != nil {
			err = fmt.Errorf("advance schedule %s: %w", s.ID, updateErr)
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return fired, nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.QueryID, &s.Name, &s.CronExpr, &s.Paused, &s.NotifyOnFailure,
		&s.NextRunAt, &s.LastRunAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}

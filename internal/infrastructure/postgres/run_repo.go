package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO runs (organization_id, query_id, datasource_id, schedule_id, status, executed_sql,
		                   params, timeout_seconds, max_rows, created_by)
		VALUES ($1, $2, $3, $4, 'queued', $5, $6, $7, $8, $9)
		RETURNING id, organization_id, query_id, datasource_id, schedule_id, status, executed_sql, params,
		          timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
		          completed_at, error_message`,
		run.OrganizationID, run.QueryID, run.DatasourceID, run.ScheduleID, run.ExecutedSQL, run.Params,
		run.TimeoutSeconds, run.MaxRows, run.CreatedBy,
	)
	return scanRun(row)
}

func (r *RunRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, query_id, datasource_id, schedule_id, status, executed_sql, params,
		       timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
		       completed_at, error_message
		FROM runs WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanRun(row)
}

func (r *RunRepository) List(ctx context.Context, input repository.ListRunsInput) ([]*domain.Run, error) {
	args := []any{input.OrganizationID}
	where := []string{"organization_id = $1"}

	if input.QueryID != "" {
		args = append(args, input.QueryID)
		where = append(where, fmt.Sprintf("query_id = $%d", len(args)))
	}
	if input.ScheduleID != "" {
		args = append(args, input.ScheduleID)
		where = append(where, fmt.Sprintf("schedule_id = $%d", len(args)))
	}
	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
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
		SELECT id, organization_id, query_id, datasource_id, schedule_id, status, executed_sql, params,
		       timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
		       completed_at, error_message
		FROM runs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Claim moves up to limit queued runs to running in one statement, using
// FOR UPDATE SKIP LOCKED so concurrent runner replicas never claim the
// same row — the same pattern as the job-scheduler UPDATE...WHERE id IN
// (SELECT...FOR UPDATE SKIP LOCKED) this repo is built on.
func (r *RunRepository) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE runs
		SET    status     = 'running',
		       runner_id  = $1,
		       started_at = NOW()
		WHERE id IN (
			SELECT id FROM runs
			WHERE  status = 'queued'
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, organization_id, query_id, datasource_id, schedule_id, status, executed_sql, params,
		          timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
		          completed_at, error_message`,
		runnerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) Complete(ctx context.Context, runID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'running'`, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (r *RunRepository) Fail(ctx context.Context, runID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'failed', completed_at = NOW(), error_message = $2
		WHERE id = $1 AND status = 'running'`, runID, errMsg)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

func (r *RunRepository) Timeout(ctx context.Context, runID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'timeout', completed_at = NOW(), error_message = $2
		WHERE id = $1 AND status = 'running'`, runID, errMsg)
	if err != nil {
		return fmt.Errorf("timeout run: %w", err)
	}
	return nil
}

func (r *RunRepository) Cancel(ctx context.Context, orgID, runID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'cancelled', completed_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND status IN ('queued', 'running')`, orgID, runID)
	if err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ReapStale transitions running rows whose started_at predates cutoff
// straight to timeout — a run that outlived its own declared timeout
// cannot be safely assumed idle, so the sweep never requeues it.
func (r *RunRepository) ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE runs
		SET    status        = 'timeout',
		       completed_at  = NOW(),
		       error_message = 'runner did not report completion before the declared timeout elapsed'
		WHERE id IN (
			SELECT id FROM runs
			WHERE  status = 'running' AND started_at < $1
			ORDER BY started_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, organization_id, query_id, datasource_id, schedule_id, status, executed_sql, params,
		          timeout_seconds, max_rows, runner_id, created_by, created_at, started_at,
		          completed_at, error_message`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reap stale runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) CreateResult(ctx context.Context, res *domain.RunResult) (*domain.RunResult, error) {
	columns := res.Columns
	rowsJSON, err := marshalRows(res.Rows)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO run_results (run_id, columns, rows, row_count, byte_count, execution_ms, truncated, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW() + INTERVAL '7 days')
		RETURNING id, run_id, columns, rows, row_count, byte_count, execution_ms, truncated, created_at, expires_at`,
		res.RunID, columns, rowsJSON, res.RowCount, res.ByteCount, res.ExecutionMs, res.Truncated,
	)
	return scanRunResult(row)
}

func (r *RunRepository) GetResult(ctx context.Context, runID string) (*domain.RunResult, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, run_id, columns, rows, row_count, byte_count, execution_ms, truncated, created_at, expires_at
		FROM run_results WHERE run_id = $1`, runID)
	return scanRunResult(row)
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(&run.ID, &run.OrganizationID, &run.QueryID, &run.DatasourceID, &run.ScheduleID,
		&run.Status, &run.ExecutedSQL, &run.Params, &run.TimeoutSeconds, &run.MaxRows, &run.RunnerID,
		&run.CreatedBy, &run.CreatedAt, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}

func scanRunResult(row rowScanner) (*domain.RunResult, error) {
	var res domain.RunResult
	var rowsJSON []byte
	err := row.Scan(&res.ID, &res.RunID, &res.Columns, &rowsJSON, &res.RowCount, &res.ByteCount,
		&res.ExecutionMs, &res.Truncated, &res.CreatedAt, &res.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan run result: %w", err)
	}
	if err := unmarshalRows(rowsJSON, &res.Rows); err != nil {
		return nil, err
	}
	return &res, nil
}

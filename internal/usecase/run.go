package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/params"
	"github.com/brightmesh/querycore/internal/repository"
	"github.com/brightmesh/querycore/internal/sqlvalidator"
)

const maxListRunsLimit = 100

// RunUsecase enqueues runs. Parameters are extracted, coerced, and bound
// to positional placeholders here — at create time — so the stored
// ExecutedSQL and bound values are exactly what a runner later executes,
// with no further resolution of defaults or types on the execution path.
type RunUsecase struct {
	runs        repository.RunRepository
	queries     repository.QueryRepository
	datasources repository.DatasourceRepository
	validator   *sqlvalidator.Validator
}

func NewRunUsecase(runs repository.RunRepository, queries repository.QueryRepository, datasources repository.DatasourceRepository, validator *sqlvalidator.Validator) *RunUsecase {
	return &RunUsecase{runs: runs, queries: queries, datasources: datasources, validator: validator}
}

// CreateRun loads the query under the caller's organization, binds the
// supplied parameters against it, and writes a queued Run. A zero
// timeoutOverride/maxRowsOverride means "use the query's own default".
func (u *RunUsecase) CreateRun(ctx context.Context, orgID, queryID string, paramValues map[string]any, timeoutOverride, maxRowsOverride int, createdBy string) (*domain.Run, error) {
	q, err := u.queries.GetByID(ctx, orgID, queryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("query not found")
		}
		return nil, apperror.Database(err)
	}

	bound, err := params.BindParams(q.SQL, q.Parameters, paramValues)
	if err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	timeout := q.TimeoutSeconds
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}
	maxRows := q.MaxRows
	if maxRowsOverride > 0 {
		maxRows = maxRowsOverride
	}

	return u.enqueue(ctx, orgID, q.ID, q.DatasourceID, nil, bound, timeout, maxRows, createdBy)
}

// CreateAdhocRun validates sql directly (it has no saved Query to have
// been validated at save time), then enqueues it against the hidden
// per-datasource ad-hoc query row so every run still carries a query_id.
func (u *RunUsecase) CreateAdhocRun(ctx context.Context, orgID, datasourceID, sql string, parameters []domain.ParamDef, paramValues map[string]any, timeoutSeconds, maxRows int, createdBy string) (*domain.Run, error) {
	if _, err := u.datasources.GetByID(ctx, orgID, datasourceID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("datasource not found")
		}
		return nil, apperror.Database(err)
	}

	if err := u.validator.Validate(sql); err != nil {
		return nil, apperror.QueryError(err.Error())
	}

	bound, err := params.BindParams(sql, parameters, paramValues)
	if err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultQueryTimeoutSeconds
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	adhoc, err := u.queries.GetOrCreateAdhoc(ctx, orgID, datasourceID)
	if err != nil {
		return nil, apperror.Database(err)
	}

	return u.enqueue(ctx, orgID, adhoc.ID, datasourceID, nil, bound, timeoutSeconds, maxRows, createdBy)
}

func (u *RunUsecase) enqueue(ctx context.Context, orgID, queryID, datasourceID string, scheduleID *string, bound *params.BoundParams, timeoutSeconds, maxRows int, createdBy string) (*domain.Run, error) {
	encoded, err := params.EncodeValues(bound.Values)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("encoding bound parameter values: %w", err))
	}

	run, err := u.runs.Create(ctx, &domain.Run{
		OrganizationID: orgID,
		QueryID:        queryID,
		DatasourceID:   datasourceID,
		ScheduleID:     scheduleID,
		Status:         domain.RunStatusQueued,
		ExecutedSQL:    bound.SQL,
		Params:         encoded,
		TimeoutSeconds: timeoutSeconds,
		MaxRows:        maxRows,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return nil, apperror.Database(err)
	}
	return run, nil
}

func (u *RunUsecase) Get(ctx context.Context, orgID, id string) (*domain.Run, error) {
	run, err := u.runs.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrRunNotFound) {
			return nil, apperror.NotFound("run not found")
		}
		return nil, apperror.Database(err)
	}
	return run, nil
}

// GetResult returns the stored result for a completed run, 404 both when
// the run itself doesn't exist and when it exists but hasn't completed.
func (u *RunUsecase) GetResult(ctx context.Context, orgID, id string) (*domain.RunResult, error) {
	run, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusCompleted {
		return nil, apperror.NotFound("run has not completed")
	}

	result, err := u.runs.GetResult(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("run result not found")
		}
		return nil, apperror.Database(err)
	}
	return result, nil
}

// RunListResult is one page of a keyset-paginated run listing.
type RunListResult struct {
	Runs       []*domain.Run
	NextCursor string
}

func (u *RunUsecase) List(ctx context.Context, orgID, queryID, scheduleID string, status domain.RunStatus, cursor string, limit int) (RunListResult, error) {
	limit = normalizeLimit(limit, maxListRunsLimit)

	input := repository.ListRunsInput{
		OrganizationID: orgID,
		QueryID:        queryID,
		ScheduleID:     scheduleID,
		Status:         status,
		Limit:          limit + 1,
	}
	if cursor != "" {
		cursorTime, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return RunListResult{}, apperror.BadRequest("invalid cursor")
		}
		input.CursorTime = cursorTime
		input.CursorID = cursorID
	}

	list, err := u.runs.List(ctx, input)
	if err != nil {
		return RunListResult{}, apperror.Database(err)
	}

	result := RunListResult{Runs: list}
	if len(list) > limit {
		last := list[limit-1]
		result.Runs = list[:limit]
		result.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

// Cancel transitions a run out of queued/running. Terminal runs cannot
// be cancelled again.
func (u *RunUsecase) Cancel(ctx context.Context, orgID, id string) error {
	run, err := u.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return apperror.Conflict("run has already finished")
	}
	if err := u.runs.Cancel(ctx, orgID, id); err != nil {
		return apperror.Database(err)
	}
	return nil
}

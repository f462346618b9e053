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

const (
	defaultQueryTimeoutSeconds = 30
	defaultMaxRows             = 1000
)

// QueryUsecase validates and persists saved queries. Every SQL statement
// passes through the validator before it is stored, so a query that could
// never execute safely is never saved in the first place.
type QueryUsecase struct {
	repo      repository.QueryRepository
	validator *sqlvalidator.Validator
}

func NewQueryUsecase(repo repository.QueryRepository, validator *sqlvalidator.Validator) *QueryUsecase {
	return &QueryUsecase{repo: repo, validator: validator}
}

func (u *QueryUsecase) Create(ctx context.Context, orgID, datasourceID, name, sql string, parameters []domain.ParamDef, timeoutSeconds, maxRows int, createdBy string) (*domain.Query, error) {
	if name == domain.AdhocSentinelName {
		return nil, apperror.BadRequest(fmt.Sprintf("query name %q is reserved", domain.AdhocSentinelName))
	}
	if err := u.validator.Validate(sql); err != nil {
		return nil, apperror.QueryError(err.Error())
	}
	if err := validateParamCoverage(sql, parameters); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultQueryTimeoutSeconds
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	q, err := u.repo.Create(ctx, &domain.Query{
		OrganizationID: orgID,
		DatasourceID:   datasourceID,
		Name:           name,
		SQL:            sql,
		Parameters:     parameters,
		TimeoutSeconds: timeoutSeconds,
		MaxRows:        maxRows,
		CreatedBy:      createdBy,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, apperror.Conflict("a query with this name already exists")
		}
		return nil, apperror.Database(err)
	}
	return q, nil
}

func (u *QueryUsecase) Get(ctx context.Context, orgID, id string) (*domain.Query, error) {
	q, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("query not found")
		}
		return nil, apperror.Database(err)
	}
	return q, nil
}

const maxListQueriesLimit = 100

// QueryListResult is one page of a keyset-paginated query listing.
type QueryListResult struct {
	Queries    []*domain.Query
	NextCursor string
}

func (u *QueryUsecase) List(ctx context.Context, orgID, cursor string, limit int) (QueryListResult, error) {
	limit = normalizeLimit(limit, maxListQueriesLimit)

	input := repository.ListQueriesInput{OrganizationID: orgID, Limit: limit + 1}
	if cursor != "" {
		cursorTime, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return QueryListResult{}, apperror.BadRequest("invalid cursor")
		}
		input.CursorTime = cursorTime
		input.CursorID = cursorID
	}

	list, err := u.repo.List(ctx, input)
	if err != nil {
		return QueryListResult{}, apperror.Database(err)
	}

	result := QueryListResult{Queries: list}
	if len(list) > limit {
		last := list[limit-1]
		result.Queries = list[:limit]
		result.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

func (u *QueryUsecase) Update(ctx context.Context, orgID, id, name, sql string, parameters []domain.ParamDef, timeoutSeconds, maxRows int) (*domain.Query, error) {
	q, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("query not found")
		}
		return nil, apperror.Database(err)
	}
	if q.IsAdhoc() {
		return nil, apperror.Forbidden("the ad-hoc query cannot be modified")
	}

	if err := u.validator.Validate(sql); err != nil {
		return nil, apperror.QueryError(err.Error())
	}
	if err := validateParamCoverage(sql, parameters); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	q.Name = name
	q.SQL = sql
	q.Parameters = parameters
	if timeoutSeconds > 0 {
		q.TimeoutSeconds = timeoutSeconds
	}
	if maxRows > 0 {
		q.MaxRows = maxRows
	}

	updated, err := u.repo.Update(ctx, q)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return updated, nil
}

// GetOrCreateAdhoc returns the hidden per-datasource query row every
// ad-hoc run is attributed to, creating it on first use.
func (u *QueryUsecase) GetOrCreateAdhoc(ctx context.Context, orgID, datasourceID string) (*domain.Query, error) {
	q, err := u.repo.GetOrCreateAdhoc(ctx, orgID, datasourceID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return q, nil
}

func (u *QueryUsecase) Delete(ctx context.Context, orgID, id string) error {
	q, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("query not found")
		}
		return apperror.Database(err)
	}
	if q.IsAdhoc() {
		return apperror.Forbidden("the ad-hoc query cannot be deleted")
	}
	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		return apperror.Database(err)
	}
	return nil
}

// Export returns every saved query in the organization (the ad-hoc
// sentinel excluded) as a flat, unpaginated list for bulk download.
func (u *QueryUsecase) Export(ctx context.Context, orgID string) ([]*domain.Query, error) {
	var out []*domain.Query
	cursor := ""
	for {
		page, err := u.List(ctx, orgID, cursor, maxListQueriesLimit)
		if err != nil {
			return nil, err
		}
		for _, q := range page.Queries {
			if !q.IsAdhoc() {
				out = append(out, q)
			}
		}
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// ImportItem is one row of a bulk query import.
type ImportItem struct {
	Name           string
	DatasourceID   string
	SQL            string
	Parameters     []domain.ParamDef
	TimeoutSeconds int
	MaxRows        int
}

// ImportResultRow reports what happened to one ImportItem: Query is set
// on success, Skipped on a duplicate name (when skipDuplicates is true),
// Error otherwise.
type ImportResultRow struct {
	Name    string
	Query   *domain.Query
	Skipped bool
	Error   string
}

// Import saves a batch of queries. Unlike Create, a single bad row never
// aborts the batch — each row succeeds, is skipped, or fails
// independently, matching the "skip duplicates" semantics of a bulk
// import where most rows are expected to be new.
func (u *QueryUsecase) Import(ctx context.Context, orgID string, items []ImportItem, skipDuplicates bool, createdBy string) []ImportResultRow {
	results := make([]ImportResultRow, len(items))
	for i, item := range items {
		q, err := u.Create(ctx, orgID, item.DatasourceID, item.Name, item.SQL, item.Parameters, item.TimeoutSeconds, item.MaxRows, createdBy)
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) && appErr.Kind == apperror.KindConflict && skipDuplicates {
				results[i] = ImportResultRow{Name: item.Name, Skipped: true}
				continue
			}
			results[i] = ImportResultRow{Name: item.Name, Error: err.Error()}
			continue
		}
		results[i] = ImportResultRow{Name: item.Name, Query: q}
	}
	return results
}

// validateParamCoverage ensures every $name referenced in sql has a
// matching ParamDef — Create/Update reject a query upfront rather than
// deferring the failure to BindParams at execution time.
func validateParamCoverage(sql string, parameters []domain.ParamDef) error {
	defined := make(map[string]bool, len(parameters))
	for _, p := range parameters {
		defined[p.Name] = true
	}
	for _, name := range params.ExtractParams(sql) {
		if !defined[name] {
			return fmt.Errorf("parameter %q is used in sql but has no declared definition", name)
		}
	}
	return nil
}

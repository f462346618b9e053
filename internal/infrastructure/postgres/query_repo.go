package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

type QueryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryRepository(pool *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{pool: pool}
}

func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	params, err := json.Marshal(q.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO queries (organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by, created_at, updated_at`,
		q.OrganizationID, q.DatasourceID, q.Name, q.SQL, params, q.MaxRows, q.TimeoutSeconds, q.CreatedBy,
	)
	created, err := scanQuery(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *QueryRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by, created_at, updated_at
		FROM queries WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanQuery(row)
}

// GetOrCreateAdhoc returns the hidden sentinel query row every ad-hoc run
// against datasourceID is attributed to, creating it on first use.
func (r *QueryRepository) GetOrCreateAdhoc(ctx context.Context, orgID, datasourceID string) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queries (organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by)
		VALUES ($1, $2, $3, '', '[]', 0, 0, '')
		ON CONFLICT (organization_id, datasource_id, name)
		DO UPDATE SET updated_at = queries.updated_at
		RETURNING id, organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by, created_at, updated_at`,
		orgID, datasourceID, domain.AdhocSentinelName,
	)
	return scanQuery(row)
}

func (r *QueryRepository) List(ctx context.Context, input repository.ListQueriesInput) ([]*domain.Query, error) {
	args := []any{input.OrganizationID}
	where := []string{"organization_id = $1", "name != '" + domain.AdhocSentinelName + "'"}

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
		SELECT id, organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by, created_at, updated_at
		FROM queries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var out []*domain.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QueryRepository) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	params, err := json.Marshal(q.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE queries
		SET name = $3, sql = $4, parameters = $5, max_rows = $6, timeout_seconds = $7, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, datasource_id, name, sql, parameters, max_rows, timeout_seconds, created_by, created_at, updated_at`,
		q.OrganizationID, q.ID, q.Name, q.SQL, params, q.MaxRows, q.TimeoutSeconds,
	)
	return scanQuery(row)
}

func (r *QueryRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM queries WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanQuery(row rowScanner) (*domain.Query, error) {
	var q domain.Query
	var params []byte
	err := row.Scan(&q.ID, &q.OrganizationID, &q.DatasourceID, &q.Name, &q.SQL, &params,
		&q.MaxRows, &q.TimeoutSeconds, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan query: %w", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &q.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	return &q, nil
}

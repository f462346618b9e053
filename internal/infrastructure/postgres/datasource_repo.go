package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
)

type DatasourceRepository struct {
	pool *pgxpool.Pool
}

func NewDatasourceRepository(pool *pgxpool.Pool) *DatasourceRepository {
	return &DatasourceRepository{pool: pool}
}

func (r *DatasourceRepository) Create(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO datasources (organization_id, name, kind, encrypted_connection_string, max_connections)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, name, kind, encrypted_connection_string, max_connections, created_at, updated_at`,
		ds.OrganizationID, ds.Name, ds.Kind, ds.EncryptedConnectionString, ds.MaxConnections,
	)
	return scanDatasource(row)
}

func (r *DatasourceRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Datasource, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, kind, encrypted_connection_string, max_connections, created_at, updated_at
		FROM datasources WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanDatasource(row)
}

func (r *DatasourceRepository) List(ctx context.Context, orgID string) ([]*domain.Datasource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, kind, encrypted_connection_string, max_connections, created_at, updated_at
		FROM datasources WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Datasource
	for rows.Next() {
		ds, err := scanDatasource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (r *DatasourceRepository) Update(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE datasources
		SET name = $3, encrypted_connection_string = $4, max_connections = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, name, kind, encrypted_connection_string, max_connections, created_at, updated_at`,
		ds.OrganizationID, ds.ID, ds.Name, ds.EncryptedConnectionString, ds.MaxConnections,
	)
	return scanDatasource(row)
}

func (r *DatasourceRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM datasources WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete datasource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDatasource(row rowScanner) (*domain.Datasource, error) {
	var ds domain.Datasource
	err := row.Scan(&ds.ID, &ds.OrganizationID, &ds.Name, &ds.Kind,
		&ds.EncryptedConnectionString, &ds.MaxConnections, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan datasource: %w", err)
	}
	return &ds, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/domain"
)

// VisualizationRepository, DashboardRepository, and CanvasRepository are
// mechanical CRUD — tenant-scoped persistence with no execution semantics.

type VisualizationRepository struct{ pool *pgxpool.Pool }

func NewVisualizationRepository(pool *pgxpool.Pool) *VisualizationRepository {
	return &VisualizationRepository{pool: pool}
}

func (r *VisualizationRepository) Create(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO visualizations (organization_id, query_id, name, kind, config, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, organization_id, query_id, name, kind, config, created_by, created_at, updated_at`,
		v.OrganizationID, v.QueryID, v.Name, v.Kind, v.Config, v.CreatedBy)
	return scanVisualization(row)
}

func (r *VisualizationRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Visualization, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, query_id, name, kind, config, created_by, created_at, updated_at
		FROM visualizations WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanVisualization(row)
}

func (r *VisualizationRepository) List(ctx context.Context, orgID string) ([]*domain.Visualization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, query_id, name, kind, config, created_by, created_at, updated_at
		FROM visualizations WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list visualizations: %w", err)
	}
	defer rows.Close()
	var out []*domain.Visualization
	for rows.Next() {
		v, err := scanVisualization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VisualizationRepository) Update(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visualizations SET name = $3, kind = $4, config = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, query_id, name, kind, config, created_by, created_at, updated_at`,
		v.OrganizationID, v.ID, v.Name, v.Kind, v.Config)
	return scanVisualization(row)
}

func (r *VisualizationRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM visualizations WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete visualization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanVisualization(row rowScanner) (*domain.Visualization, error) {
	var v domain.Visualization
	err := row.Scan(&v.ID, &v.OrganizationID, &v.QueryID, &v.Name, &v.Kind, &v.Config, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan visualization: %w", err)
	}
	return &v, nil
}

type DashboardRepository struct{ pool *pgxpool.Pool }

func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

func (r *DashboardRepository) Create(ctx context.Context, d *domain.Dashboard) (*domain.Dashboard, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO dashboards (organization_id, name, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, created_by, created_at, updated_at`,
		d.OrganizationID, d.Name, d.CreatedBy)
	return scanDashboard(row)
}

func (r *DashboardRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Dashboard, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, created_by, created_at, updated_at
		FROM dashboards WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanDashboard(row)
}

func (r *DashboardRepository) List(ctx context.Context, orgID string) ([]*domain.Dashboard, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, created_by, created_at, updated_at
		FROM dashboards WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	defer rows.Close()
	var out []*domain.Dashboard
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DashboardRepository) Update(ctx context.Context, d *domain.Dashboard) (*domain.Dashboard, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE dashboards SET name = $3, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, name, created_by, created_at, updated_at`,
		d.OrganizationID, d.ID, d.Name)
	return scanDashboard(row)
}

func (r *DashboardRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dashboards WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete dashboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DashboardRepository) AddTile(ctx context.Context, t *domain.Tile) (*domain.Tile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tiles (dashboard_id, visualization_id, x, y, width, height)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, dashboard_id, visualization_id, x, y, width, height`,
		t.DashboardID, t.VisualizationID, t.X, t.Y, t.Width, t.Height)
	return scanTile(row)
}

func (r *DashboardRepository) ListTiles(ctx context.Context, dashboardID string) ([]*domain.Tile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dashboard_id, visualization_id, x, y, width, height
		FROM tiles WHERE dashboard_id = $1 ORDER BY y, x`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}
	defer rows.Close()
	var out []*domain.Tile
	for rows.Next() {
		t, err := scanTile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *DashboardRepository) DeleteTile(ctx context.Context, dashboardID, tileID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tiles WHERE dashboard_id = $1 AND id = $2`, dashboardID, tileID)
	if err != nil {
		return fmt.Errorf("delete tile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDashboard(row rowScanner) (*domain.Dashboard, error) {
	var d domain.Dashboard
	err := row.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan dashboard: %w", err)
	}
	return &d, nil
}

func scanTile(row rowScanner) (*domain.Tile, error) {
	var t domain.Tile
	err := row.Scan(&t.ID, &t.DashboardID, &t.VisualizationID, &t.X, &t.Y, &t.Width, &t.Height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan tile: %w", err)
	}
	return &t, nil
}

type CanvasRepository struct{ pool *pgxpool.Pool }

func NewCanvasRepository(pool *pgxpool.Pool) *CanvasRepository {
	return &CanvasRepository{pool: pool}
}

func (r *CanvasRepository) Create(ctx context.Context, c *domain.Canvas) (*domain.Canvas, error) {
	nodes, edges, err := marshalCanvasGraph(c)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO canvases (organization_id, name, nodes, edges, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, name, nodes, edges, created_by, created_at, updated_at`,
		c.OrganizationID, c.Name, nodes, edges, c.CreatedBy)
	return scanCanvas(row)
}

func (r *CanvasRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Canvas, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, nodes, edges, created_by, created_at, updated_at
		FROM canvases WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanCanvas(row)
}

func (r *CanvasRepository) List(ctx context.Context, orgID string) ([]*domain.Canvas, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, nodes, edges, created_by, created_at, updated_at
		FROM canvases WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	defer rows.Close()
	var out []*domain.Canvas
	for rows.Next() {
		c, err := scanCanvas(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CanvasRepository) Update(ctx context.Context, c *domain.Canvas) (*domain.Canvas, error) {
	nodes, edges, err := marshalCanvasGraph(c)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE canvases SET name = $3, nodes = $4, edges = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, name, nodes, edges, created_by, created_at, updated_at`,
		c.OrganizationID, c.ID, c.Name, nodes, edges)
	return scanCanvas(row)
}

func (r *CanvasRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM canvases WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete canvas: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalCanvasGraph(c *domain.Canvas) ([]byte, []byte, error) {
	nodes, err := json.Marshal(c.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal canvas nodes: %w", err)
	}
	edges, err := json.Marshal(c.Edges)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal canvas edges: %w", err)
	}
	return nodes, edges, nil
}

func scanCanvas(row rowScanner) (*domain.Canvas, error) {
	var c domain.Canvas
	var nodes, edges []byte
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &nodes, &edges, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan canvas: %w", err)
	}
	if len(nodes) > 0 {
		if err := json.Unmarshal(nodes, &c.Nodes); err != nil {
			return nil, fmt.Errorf("unmarshal canvas nodes: %w", err)
		}
	}
	if len(edges) > 0 {
		if err := json.Unmarshal(edges, &c.Edges); err != nil {
			return nil, fmt.Errorf("unmarshal canvas edges: %w", err)
		}
	}
	return &c, nil
}

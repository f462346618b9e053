package repository

import (
	"context"

	"github.com/brightmesh/querycore/internal/domain"
)

// VisualizationRepository, DashboardRepository, and CanvasRepository cover
// the mechanical persistence layer: tenant-scoped CRUD, no execution
// semantics.
type VisualizationRepository interface {
	Create(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Visualization, error)
	List(ctx context.Context, orgID string) ([]*domain.Visualization, error)
	Update(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error)
	Delete(ctx context.Context, orgID, id string) error
}

type DashboardRepository interface {
	Create(ctx context.Context, d *domain.Dashboard) (*domain.Dashboard, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Dashboard, error)
	List(ctx context.Context, orgID string) ([]*domain.Dashboard, error)
	Update(ctx context.Context, d *domain.Dashboard) (*domain.Dashboard, error)
	Delete(ctx context.Context, orgID, id string) error

	AddTile(ctx context.Context, t *domain.Tile) (*domain.Tile, error)
	ListTiles(ctx context.Context, dashboardID string) ([]*domain.Tile, error)
	DeleteTile(ctx context.Context, dashboardID, tileID string) error
}

type CanvasRepository interface {
	Create(ctx context.Context, c *domain.Canvas) (*domain.Canvas, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Canvas, error)
	List(ctx context.Context, orgID string) ([]*domain.Canvas, error)
	Update(ctx context.Context, c *domain.Canvas) (*domain.Canvas, error)
	Delete(ctx context.Context, orgID, id string) error
}

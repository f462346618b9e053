package usecase

import (
	"context"
	"errors"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

// DashboardUsecase is mechanical CRUD over a grid of tiles, each pointing
// at a saved Visualization.
type DashboardUsecase struct {
	repo           repository.DashboardRepository
	visualizations repository.VisualizationRepository
}

func NewDashboardUsecase(repo repository.DashboardRepository, visualizations repository.VisualizationRepository) *DashboardUsecase {
	return &DashboardUsecase{repo: repo, visualizations: visualizations}
}

func (u *DashboardUsecase) Create(ctx context.Context, orgID, name, createdBy string) (*domain.Dashboard, error) {
	d, err := u.repo.Create(ctx, &domain.Dashboard{
		OrganizationID: orgID,
		Name:           name,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return nil, apperror.Database(err)
	}
	return d, nil
}

func (u *DashboardUsecase) Get(ctx context.Context, orgID, id string) (*domain.Dashboard, error) {
	d, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("dashboard not found")
		}
		return nil, apperror.Database(err)
	}
	return d, nil
}

func (u *DashboardUsecase) List(ctx context.Context, orgID string) ([]*domain.Dashboard, error) {
	list, err := u.repo.List(ctx, orgID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return list, nil
}

func (u *DashboardUsecase) Update(ctx context.Context, orgID, id, name string) (*domain.Dashboard, error) {
	d, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	d.Name = name

	updated, err := u.repo.Update(ctx, d)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return updated, nil
}

func (u *DashboardUsecase) Delete(ctx context.Context, orgID, id string) error {
	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("dashboard not found")
		}
		return apperror.Database(err)
	}
	return nil
}

// AddTile places a Visualization onto a Dashboard at a grid position. The
// visualization must belong to the caller's organization, same as the
// dashboard itself.
func (u *DashboardUsecase) AddTile(ctx context.Context, orgID, dashboardID, visualizationID string, x, y, width, height int) (*domain.Tile, error) {
	if _, err := u.Get(ctx, orgID, dashboardID); err != nil {
		return nil, err
	}
	if _, err := u.visualizations.GetByID(ctx, orgID, visualizationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("visualization not found")
		}
		return nil, apperror.Database(err)
	}

	t, err := u.repo.AddTile(ctx, &domain.Tile{
		DashboardID:     dashboardID,
		VisualizationID: visualizationID,
		X:               x,
		Y:               y,
		Width:           width,
		Height:          height,
	})
	if err != nil {
		return nil, apperror.Database(err)
	}
	return t, nil
}

func (u *DashboardUsecase) ListTiles(ctx context.Context, orgID, dashboardID string) ([]*domain.Tile, error) {
	if _, err := u.Get(ctx, orgID, dashboardID); err != nil {
		return nil, err
	}

	tiles, err := u.repo.ListTiles(ctx, dashboardID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return tiles, nil
}

func (u *DashboardUsecase) DeleteTile(ctx context.Context, orgID, dashboardID, tileID string) error {
	if _, err := u.Get(ctx, orgID, dashboardID); err != nil {
		return err
	}

	if err := u.repo.DeleteTile(ctx, dashboardID, tileID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("tile not found")
		}
		return apperror.Database(err)
	}
	return nil
}

package usecase

import (
	"context"
	"errors"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

// VisualizationUsecase is mechanical CRUD over a saved Query's chart
// config. It does not itself execute anything — rendering reads a Run's
// result and applies Config client-side.
type VisualizationUsecase struct {
	repo    repository.VisualizationRepository
	queries repository.QueryRepository
}

func NewVisualizationUsecase(repo repository.VisualizationRepository, queries repository.QueryRepository) *VisualizationUsecase {
	return &VisualizationUsecase{repo: repo, queries: queries}
}

func (u *VisualizationUsecase) Create(ctx context.Context, orgID, queryID, name string, kind domain.VisualizationKind, config []byte, createdBy string) (*domain.Visualization, error) {
	if _, err := u.queries.GetByID(ctx, orgID, queryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("query not found")
		}
		return nil, apperror.Database(err)
	}

	v, err := u.repo.Create(ctx, &domain.Visualization{
		OrganizationID: orgID,
		QueryID:        queryID,
		Name:           name,
		Kind:           kind,
		Config:         config,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return nil, apperror.Database(err)
	}
	return v, nil
}

func (u *VisualizationUsecase) Get(ctx context.Context, orgID, id string) (*domain.Visualization, error) {
	v, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("visualization not found")
		}
		return nil, apperror.Database(err)
	}
	return v, nil
}

func (u *VisualizationUsecase) List(ctx context.Context, orgID string) ([]*domain.Visualization, error) {
	list, err := u.repo.List(ctx, orgID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return list, nil
}

func (u *VisualizationUsecase) Update(ctx context.Context, orgID, id, name string, kind domain.VisualizationKind, config []byte) (*domain.Visualization, error) {
	v, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	v.Name = name
	v.Kind = kind
	v.Config = config

	updated, err := u.repo.Update(ctx, v)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return updated, nil
}

func (u *VisualizationUsecase) Delete(ctx context.Context, orgID, id string) error {
	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("visualization not found")
		}
		return apperror.Database(err)
	}
	return nil
}

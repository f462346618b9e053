package usecase

import (
	"context"
	"errors"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

// CanvasUsecase is mechanical CRUD over a free-form node/edge graph of
// queries and visualizations. Unlike Dashboard/Visualization, mutating a
// Canvas requires Role.CanWrite() — spec.md flagged the original's
// viewer-level canvas write access as a likely bug, and this repo closes
// it here rather than leaving it to the transport layer alone.
type CanvasUsecase struct {
	repo repository.CanvasRepository
}

func NewCanvasUsecase(repo repository.CanvasRepository) *CanvasUsecase {
	return &CanvasUsecase{repo: repo}
}

func (u *CanvasUsecase) Create(ctx context.Context, orgID string, role domain.Role, name string, nodes []domain.CanvasNode, edges []domain.CanvasEdge, createdBy string) (*domain.Canvas, error) {
	if !role.CanWrite() {
		return nil, apperror.Forbidden("viewers cannot create canvases")
	}

	c, err := u.repo.Create(ctx, &domain.Canvas{
		OrganizationID: orgID,
		Name:           name,
		Nodes:          nodes,
		Edges:          edges,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return nil, apperror.Database(err)
	}
	return c, nil
}

func (u *CanvasUsecase) Get(ctx context.Context, orgID, id string) (*domain.Canvas, error) {
	c, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("canvas not found")
		}
		return nil, apperror.Database(err)
	}
	return c, nil
}

func (u *CanvasUsecase) List(ctx context.Context, orgID string) ([]*domain.Canvas, error) {
	list, err := u.repo.List(ctx, orgID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return list, nil
}

func (u *CanvasUsecase) Update(ctx context.Context, orgID string, role domain.Role, id, name string, nodes []domain.CanvasNode, edges []domain.CanvasEdge) (*domain.Canvas, error) {
	if !role.CanWrite() {
		return nil, apperror.Forbidden("viewers cannot modify canvases")
	}

	c, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	c.Name = name
	c.Nodes = nodes
	c.Edges = edges

	updated, err := u.repo.Update(ctx, c)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return updated, nil
}

func (u *CanvasUsecase) Delete(ctx context.Context, orgID string, role domain.Role, id string) error {
	if !role.CanWrite() {
		return apperror.Forbidden("viewers cannot delete canvases")
	}

	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("canvas not found")
		}
		return apperror.Database(err)
	}
	return nil
}

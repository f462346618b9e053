package usecase_test

import (
	"context"
	"testing"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type fakeVisualizationRepo struct {
	create  func(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error)
	getByID func(ctx context.Context, orgID, id string) (*domain.Visualization, error)
	list    func(ctx context.Context, orgID string) ([]*domain.Visualization, error)
	update  func(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error)
	delete  func(ctx context.Context, orgID, id string) error
}

func (r *fakeVisualizationRepo) Create(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error) {
	return r.create(ctx, v)
}
func (r *fakeVisualizationRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Visualization, error) {
	return r.getByID(ctx, orgID, id)
}
func (r *fakeVisualizationRepo) List(ctx context.Context, orgID string) ([]*domain.Visualization, error) {
	return r.list(ctx, orgID)
}
func (r *fakeVisualizationRepo) Update(ctx context.Context, v *domain.Visualization) (*domain.Visualization, error) {
	return r.update(ctx, v)
}
func (r *fakeVisualizationRepo) Delete(ctx context.Context, orgID, id string) error {
	return r.delete(ctx, orgID, id)
}

func TestVisualizationCreate_RejectsUnknownQuery(t *testing.T) {
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return nil, domain.ErrNotFound },
	}
	u := usecase.NewVisualizationUsecase(&fakeVisualizationRepo{}, queries)

	_, err := u.Create(context.Background(), "org-1", "q-missing", "chart", domain.VisualizationKindBar, nil, "user-1")
	if err == nil {
		t.Fatal("expected error for a visualization pointing at a missing query")
	}
}

func TestVisualizationCreate_Succeeds(t *testing.T) {
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return &domain.Query{ID: "q-1"}, nil },
	}
	var captured *domain.Visualization
	repo := &fakeVisualizationRepo{
		create: func(_ context.Context, v *domain.Visualization) (*domain.Visualization, error) {
			v.ID = "viz-1"
			captured = v
			return v, nil
		},
	}
	u := usecase.NewVisualizationUsecase(repo, queries)

	v, err := u.Create(context.Background(), "org-1", "q-1", "orders by region", domain.VisualizationKindBar, []byte(`{}`), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ID != "viz-1" || captured.QueryID != "q-1" {
		t.Errorf("unexpected visualization: %+v", v)
	}
}

func TestVisualizationUpdate_NotFound(t *testing.T) {
	repo := &fakeVisualizationRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Visualization, error) { return nil, domain.ErrNotFound },
	}
	u := usecase.NewVisualizationUsecase(repo, &fakeQueryRepo{})

	_, err := u.Update(context.Background(), "org-1", "missing", "renamed", domain.VisualizationKindLine, nil)
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestVisualizationDelete_NotFound(t *testing.T) {
	repo := &fakeVisualizationRepo{
		delete: func(_ context.Context, _, _ string) error { return domain.ErrNotFound },
	}
	u := usecase.NewVisualizationUsecase(repo, &fakeQueryRepo{})

	if err := u.Delete(context.Background(), "org-1", "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

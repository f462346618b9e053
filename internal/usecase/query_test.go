package usecase_test

import (
	"context"
	"testing"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/sqlvalidator"
	"github.com/brightmesh/querycore/internal/usecase"
)

func newQueryUsecase(repo *fakeQueryRepo) *usecase.QueryUsecase {
	return usecase.NewQueryUsecase(repo, sqlvalidator.New())
}

func TestQueryCreate_AppliesDefaults(t *testing.T) {
	var captured *domain.Query
	repo := &fakeQueryRepo{
		create: func(_ context.Context, q *domain.Query) (*domain.Query, error) {
			q.ID = "q-1"
			captured = q
			return q, nil
		},
	}

	u := newQueryUsecase(repo)
	_, err := u.Create(context.Background(), "org-1", "ds-1", "orders by region", "SELECT * FROM orders WHERE region = $region",
		[]domain.ParamDef{{Name: "region", Type: domain.ParamTypeString, Required: true}}, 0, 0, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.TimeoutSeconds == 0 || captured.MaxRows == 0 {
		t.Error("expected default timeout/max_rows to be applied")
	}
}

func TestQueryCreate_RejectsReservedName(t *testing.T) {
	u := newQueryUsecase(&fakeQueryRepo{})

	_, err := u.Create(context.Background(), "org-1", "ds-1", domain.AdhocSentinelName, "SELECT 1", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected error for reserved query name")
	}
}

func TestQueryCreate_RejectsNonSelectStatement(t *testing.T) {
	u := newQueryUsecase(&fakeQueryRepo{})

	_, err := u.Create(context.Background(), "org-1", "ds-1", "drop orders", "DROP TABLE orders", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected validation error for non-SELECT statement")
	}
}

func TestQueryCreate_RejectsUndeclaredParam(t *testing.T) {
	u := newQueryUsecase(&fakeQueryRepo{})

	_, err := u.Create(context.Background(), "org-1", "ds-1", "q", "SELECT * FROM orders WHERE region = $region", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected error for an undeclared parameter")
	}
}

func TestQueryUpdate_RejectsAdhocSentinel(t *testing.T) {
	repo := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) {
			return &domain.Query{ID: "adhoc-1", Name: domain.AdhocSentinelName}, nil
		},
	}
	u := newQueryUsecase(repo)

	_, err := u.Update(context.Background(), "org-1", "adhoc-1", "renamed", "SELECT 1", nil, 0, 0)
	if err == nil {
		t.Fatal("expected error updating the ad-hoc sentinel query")
	}
}

func TestQueryDelete_RejectsAdhocSentinel(t *testing.T) {
	repo := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) {
			return &domain.Query{ID: "adhoc-1", Name: domain.AdhocSentinelName}, nil
		},
	}
	u := newQueryUsecase(repo)

	if err := u.Delete(context.Background(), "org-1", "adhoc-1"); err == nil {
		t.Fatal("expected error deleting the ad-hoc sentinel query")
	}
}

func TestQueryCreate_DuplicateName_ReturnsConflict(t *testing.T) {
	repo := &fakeQueryRepo{
		create: func(_ context.Context, _ *domain.Query) (*domain.Query, error) { return nil, domain.ErrConflict },
	}
	u := newQueryUsecase(repo)

	_, err := u.Create(context.Background(), "org-1", "ds-1", "dup", "SELECT 1", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestQueryGetOrCreateAdhoc(t *testing.T) {
	repo := &fakeQueryRepo{
		getOrCreateAdhoc: func(_ context.Context, _, _ string) (*domain.Query, error) {
			return &domain.Query{ID: "adhoc-1", Name: domain.AdhocSentinelName}, nil
		},
	}
	u := newQueryUsecase(repo)

	q, err := u.GetOrCreateAdhoc(context.Background(), "org-1", "ds-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsAdhoc() {
		t.Error("expected the ad-hoc sentinel row")
	}
}

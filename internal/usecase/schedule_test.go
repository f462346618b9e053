package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
	"github.com/brightmesh/querycore/internal/usecase"
)

type fakeScheduleRepo struct {
	create       func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	getByID      func(ctx context.Context, orgID, id string) (*domain.Schedule, error)
	list         func(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error)
	update       func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	delete       func(ctx context.Context, orgID, id string) error
	claimAndFire func(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time, newRun func(*domain.Schedule) *domain.Run) ([]*domain.Run, error)
}

func (r *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return r.create(ctx, s)
}
func (r *fakeScheduleRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Schedule, error) {
	return r.getByID(ctx, orgID, id)
}
func (r *fakeScheduleRepo) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	return r.list(ctx, input)
}
func (r *fakeScheduleRepo) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return r.update(ctx, s)
}
func (r *fakeScheduleRepo) Delete(ctx context.Context, orgID, id string) error {
	return r.delete(ctx, orgID, id)
}
func (r *fakeScheduleRepo) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time, newRun func(*domain.Schedule) *domain.Run) ([]*domain.Run, error) {
	return r.claimAndFire(ctx, limit, computeNext, newRun)
}

func newScheduleUsecase(repo *fakeScheduleRepo, queries *fakeQueryRepo) *usecase.ScheduleUsecase {
	return usecase.NewScheduleUsecase(repo, queries)
}

func TestScheduleCreate_ComputesNextRunAt(t *testing.T) {
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return &domain.Query{ID: "q-1"}, nil },
	}
	var captured *domain.Schedule
	repo := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			s.ID = "sched-1"
			captured = s
			return s, nil
		},
	}

	u := newScheduleUsecase(repo, queries)
	_, err := u.Create(context.Background(), "org-1", "q-1", "nightly", "0 0 * * *", true, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.NextRunAt.IsZero() {
		t.Error("expected NextRunAt to be computed")
	}
	if !captured.NotifyOnFailure {
		t.Error("expected NotifyOnFailure to be carried through")
	}
}

func TestScheduleCreate_InvalidCron_ReturnsBadRequest(t *testing.T) {
	u := newScheduleUsecase(&fakeScheduleRepo{}, &fakeQueryRepo{})

	_, err := u.Create(context.Background(), "org-1", "q-1", "nightly", "not a cron expr", false, "user-1")
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestSchedulePause_AlreadyPaused_ReturnsConflict(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Paused: true}, nil
		},
	}
	u := newScheduleUsecase(repo, &fakeQueryRepo{})

	if err := u.Pause(context.Background(), "org-1", "sched-1"); err == nil {
		t.Fatal("expected conflict error for already-paused schedule")
	}
}

func TestScheduleResume_RecomputesNextRunAt(t *testing.T) {
	var updated *domain.Schedule
	repo := &fakeScheduleRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Paused: true, CronExpr: "0 0 * * *"}, nil
		},
		update: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			updated = s
			return s, nil
		},
	}
	u := newScheduleUsecase(repo, &fakeQueryRepo{})

	if err := u.Resume(context.Background(), "org-1", "sched-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Paused {
		t.Error("expected schedule to be unpaused")
	}
	if updated.NextRunAt.IsZero() {
		t.Error("expected NextRunAt to be recomputed on resume")
	}
}

func TestScheduleResume_NotPaused_ReturnsConflict(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Paused: false}, nil
		},
	}
	u := newScheduleUsecase(repo, &fakeQueryRepo{})

	if err := u.Resume(context.Background(), "org-1", "sched-1"); err == nil {
		t.Fatal("expected conflict error for a schedule that isn't paused")
	}
}

func TestScheduleGet_NotFound(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Schedule, error) { return nil, domain.ErrNotFound },
	}
	u := newScheduleUsecase(repo, &fakeQueryRepo{})

	_, err := u.Get(context.Background(), "org-1", "missing")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestComputeNextRunAt_AcceptsFiveAndSixFieldExpressions(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := usecase.ComputeNextRunAt("0 6 * * *", from)
	if err != nil {
		t.Fatalf("5-field cron: unexpected error: %v", err)
	}
	if next.Hour() != 6 {
		t.Errorf("5-field cron next = %v, want hour 6", next)
	}

	next, err = usecase.ComputeNextRunAt("30 0 6 * * *", from)
	if err != nil {
		t.Fatalf("6-field cron: unexpected error: %v", err)
	}
	if next.Hour() != 6 || next.Second() != 30 {
		t.Errorf("6-field cron next = %v, want hour 6, second 30", next)
	}
}

func TestComputeNextRunAt_RejectsGarbage(t *testing.T) {
	if _, err := usecase.ComputeNextRunAt("not a cron expression", time.Now()); err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
}

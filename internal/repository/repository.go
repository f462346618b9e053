// Package repository declares the storage-agnostic contracts every
// usecase depends on. internal/infrastructure/postgres provides the pgx
// implementation; tests substitute hand-written fakes.
package repository

import (
	"context"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error)
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, orgID, email string) (*domain.User, error)
	GetByEmailGlobal(ctx context.Context, email string) (*domain.User, error)
}

type DatasourceRepository interface {
	Create(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Datasource, error)
	List(ctx context.Context, orgID string) ([]*domain.Datasource, error)
	Update(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error)
	Delete(ctx context.Context, orgID, id string) error
}

type ListQueriesInput struct {
	OrganizationID string
	Limit          int
	CursorTime     *time.Time
	CursorID       string
}

type QueryRepository interface {
	Create(ctx context.Context, q *domain.Query) (*domain.Query, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Query, error)
	GetOrCreateAdhoc(ctx context.Context, orgID, datasourceID string) (*domain.Query, error)
	List(ctx context.Context, input ListQueriesInput) ([]*domain.Query, error)
	Update(ctx context.Context, q *domain.Query) (*domain.Query, error)
	Delete(ctx context.Context, orgID, id string) error
}

type ListRunsInput struct {
	OrganizationID string
	QueryID        string // optional filter
	ScheduleID     string // optional filter
	Status         domain.RunStatus
	Limit          int
	CursorTime     *time.Time
	CursorID       string
}

type RunRepository interface {
	Create(ctx context.Context, r *domain.Run) (*domain.Run, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Run, error)
	List(ctx context.Context, input ListRunsInput) ([]*domain.Run, error)
	// Claim atomically moves up to limit queued runs to running, assigning
	// runnerID, via SELECT ... FOR UPDATE SKIP LOCKED.
	Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error)
	Complete(ctx context.Context, runID string) error
	Fail(ctx context.Context, runID string, errMsg string) error
	// Timeout fails a run the same way as Fail but records status=timeout
	// rather than status=failed, for a runner that itself observed its
	// query's context deadline elapse rather than an execution error.
	Timeout(ctx context.Context, runID string, errMsg string) error
	Cancel(ctx context.Context, orgID, runID string) error
	// ReapStale transitions running rows whose StartedAt predates cutoff to
	// timeout, in batches of at most limit, via the same skip-locked pattern
	// as Claim. Returns the number of rows transitioned.
	ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error)

	CreateResult(ctx context.Context, res *domain.RunResult) (*domain.RunResult, error)
	GetResult(ctx context.Context, runID string) (*domain.RunResult, error)
}

type ListSchedulesInput struct {
	OrganizationID string
	Limit          int
	CursorTime     *time.Time
	CursorID       string
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	Delete(ctx context.Context, orgID, id string) error
	// ClaimAndFire atomically selects due schedules, inserts one Run per
	// schedule via newRun, advances NextRunAt/LastRunAt, and commits as a
	// single transaction so no two scheduler replicas can double-fire the
	// same due schedule.
	ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time, newRun func(*domain.Schedule) *domain.Run) ([]*domain.Run, error)
}

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
	"github.com/brightmesh/querycore/internal/sqlvalidator"
	"github.com/brightmesh/querycore/internal/usecase"
)

type fakeQueryRepo struct {
	create           func(ctx context.Context, q *domain.Query) (*domain.Query, error)
	getByID          func(ctx context.Context, orgID, id string) (*domain.Query, error)
	getOrCreateAdhoc func(ctx context.Context, orgID, datasourceID string) (*domain.Query, error)
	list             func(ctx context.Context, input repository.ListQueriesInput) ([]*domain.Query, error)
	update           func(ctx context.Context, q *domain.Query) (*domain.Query, error)
	delete           func(ctx context.Context, orgID, id string) error
}

func (r *fakeQueryRepo) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return r.create(ctx, q)
}
func (r *fakeQueryRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Query, error) {
	return r.getByID(ctx, orgID, id)
}
func (r *fakeQueryRepo) GetOrCreateAdhoc(ctx context.Context, orgID, datasourceID string) (*domain.Query, error) {
	return r.getOrCreateAdhoc(ctx, orgID, datasourceID)
}
func (r *fakeQueryRepo) List(ctx context.Context, input repository.ListQueriesInput) ([]*domain.Query, error) {
	return r.list(ctx, input)
}
func (r *fakeQueryRepo) Update(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	return r.update(ctx, q)
}
func (r *fakeQueryRepo) Delete(ctx context.Context, orgID, id string) error {
	return r.delete(ctx, orgID, id)
}

type fakeRunRepo struct {
	create    func(ctx context.Context, run *domain.Run) (*domain.Run, error)
	getByID   func(ctx context.Context, orgID, id string) (*domain.Run, error)
	list      func(ctx context.Context, input repository.ListRunsInput) ([]*domain.Run, error)
	claim     func(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error)
	complete  func(ctx context.Context, runID string) error
	fail      func(ctx context.Context, runID, errMsg string) error
	timeout   func(ctx context.Context, runID, errMsg string) error
	cancel    func(ctx context.Context, orgID, runID string) error
	reapStale func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error)
	createRes func(ctx context.Context, res *domain.RunResult) (*domain.RunResult, error)
	getRes    func(ctx context.Context, runID string) (*domain.RunResult, error)
}

func (r *fakeRunRepo) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	return r.create(ctx, run)
}
func (r *fakeRunRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Run, error) {
	return r.getByID(ctx, orgID, id)
}
func (r *fakeRunRepo) List(ctx context.Context, input repository.ListRunsInput) ([]*domain.Run, error) {
	return r.list(ctx, input)
}
func (r *fakeRunRepo) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	return r.claim(ctx, runnerID, limit)
}
func (r *fakeRunRepo) Complete(ctx context.Context, runID string) error {
	return r.complete(ctx, runID)
}
func (r *fakeRunRepo) Fail(ctx context.Context, runID string, errMsg string) error {
	return r.fail(ctx, runID, errMsg)
}
func (r *fakeRunRepo) Timeout(ctx context.Context, runID string, errMsg string) error {
	if r.timeout == nil {
		return nil
	}
	return r.timeout(ctx, runID, errMsg)
}
func (r *fakeRunRepo) Cancel(ctx context.Context, orgID, runID string) error {
	return r.cancel(ctx, orgID, runID)
}
func (r *fakeRunRepo) ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error) {
	if r.reapStale == nil {
		return nil, nil
	}
	return r.reapStale(ctx, cutoff, limit)
}
func (r *fakeRunRepo) CreateResult(ctx context.Context, res *domain.RunResult) (*domain.RunResult, error) {
	return r.createRes(ctx, res)
}
func (r *fakeRunRepo) GetResult(ctx context.Context, runID string) (*domain.RunResult, error) {
	return r.getRes(ctx, runID)
}

func newRunUsecase(runs *fakeRunRepo, queries *fakeQueryRepo, datasources *fakeDatasourceRepo) *usecase.RunUsecase {
	return usecase.NewRunUsecase(runs, queries, datasources, sqlvalidator.New())
}

func TestCreateRun_BindsParamsAndStoresExecutedSQL(t *testing.T) {
	q := &domain.Query{
		ID: "q-1", OrganizationID: "org-1", DatasourceID: "ds-1",
		SQL:            "SELECT * FROM orders WHERE region = $region",
		Parameters:     []domain.ParamDef{{Name: "region", Type: domain.ParamTypeString, Required: true}},
		TimeoutSeconds: 30, MaxRows: 1000,
	}

	var captured *domain.Run
	runs := &fakeRunRepo{
		create: func(_ context.Context, run *domain.Run) (*domain.Run, error) {
			run.ID = "run-1"
			captured = run
			return run, nil
		},
	}
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return q, nil },
	}

	u := newRunUsecase(runs, queries, &fakeDatasourceRepo{})
	run, err := u.CreateRun(context.Background(), "org-1", "q-1", map[string]any{"region": "eu"}, 0, 0, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.ExecutedSQL != "SELECT * FROM orders WHERE region = $1" {
		t.Errorf("executed_sql = %q", run.ExecutedSQL)
	}
	if run.Status != domain.RunStatusQueued {
		t.Errorf("status = %q, want queued", run.Status)
	}
	if run.TimeoutSeconds != 30 || run.MaxRows != 1000 {
		t.Errorf("timeout/max_rows = %d/%d, want query defaults", run.TimeoutSeconds, run.MaxRows)
	}
	if len(captured.Params) == 0 {
		t.Error("expected bound params to be persisted")
	}
}

func TestCreateRun_OverridesTimeoutAndMaxRows(t *testing.T) {
	q := &domain.Query{
		ID: "q-1", OrganizationID: "org-1", DatasourceID: "ds-1",
		SQL: "SELECT 1", TimeoutSeconds: 30, MaxRows: 1000,
	}
	runs := &fakeRunRepo{
		create: func(_ context.Context, run *domain.Run) (*domain.Run, error) { run.ID = "run-1"; return run, nil },
	}
	queries := &fakeQueryRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return q, nil },
	}

	u := newRunUsecase(runs, queries, &fakeDatasourceRepo{})
	run, err := u.CreateRun(context.Background(), "org-1", "q-1", nil, 5, 50, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.TimeoutSeconds != 5 || run.MaxRows != 50 {
		t.Errorf("timeout/max_rows = %d/%d, want overrides 5/50", run.TimeoutSeconds, run.MaxRows)
	}
}

func TestCreateRun_MissingRequiredParam_ReturnsBadRequest(t *testing.T) {
	q := &domain.Query{
		ID: "q-1", SQL: "SELECT * FROM t WHERE x = $x",
		Parameters: []domain.ParamDef{{Name: "x", Type: domain.ParamTypeString, Required: true}},
	}
	queries := &fakeQueryRepo{getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return q, nil }}
	u := newRunUsecase(&fakeRunRepo{}, queries, &fakeDatasourceRepo{})

	_, err := u.CreateRun(context.Background(), "org-1", "q-1", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected error for missing required parameter")
	}
}

func TestCreateRun_QueryNotFound(t *testing.T) {
	queries := &fakeQueryRepo{getByID: func(_ context.Context, _, _ string) (*domain.Query, error) { return nil, domain.ErrNotFound }}
	u := newRunUsecase(&fakeRunRepo{}, queries, &fakeDatasourceRepo{})

	_, err := u.CreateRun(context.Background(), "org-1", "missing", nil, 0, 0, "user-1")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestCreateAdhocRun_ValidatesSQLAndReusesSentinelQuery(t *testing.T) {
	var adhocCalled bool
	queries := &fakeQueryRepo{
		getOrCreateAdhoc: func(_ context.Context, _, _ string) (*domain.Query, error) {
			adhocCalled = true
			return &domain.Query{ID: "adhoc-1", Name: domain.AdhocSentinelName}, nil
		},
	}
	datasources := &fakeDatasourceRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Datasource, error) {
			return &domain.Datasource{ID: "ds-1"}, nil
		},
	}
	runs := &fakeRunRepo{
		create: func(_ context.Context, run *domain.Run) (*domain.Run, error) { run.ID = "run-1"; return run, nil },
	}

	u := newRunUsecase(runs, queries, datasources)
	run, err := u.CreateAdhocRun(context.Background(), "org-1", "ds-1", "SELECT 1", nil, nil, 10, 100, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adhocCalled {
		t.Error("expected GetOrCreateAdhoc to be called")
	}
	if run.QueryID != "adhoc-1" {
		t.Errorf("query_id = %q, want adhoc-1", run.QueryID)
	}
}

func TestCreateAdhocRun_RejectsWriteStatement(t *testing.T) {
	datasources := &fakeDatasourceRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Datasource, error) { return &domain.Datasource{ID: "ds-1"}, nil },
	}
	u := newRunUsecase(&fakeRunRepo{}, &fakeQueryRepo{}, datasources)

	_, err := u.CreateAdhocRun(context.Background(), "org-1", "ds-1", "DELETE FROM orders", nil, nil, 10, 100, "user-1")
	if err == nil {
		t.Fatal("expected validation error for non-SELECT statement")
	}
}

func TestCancel_TerminalRun_ReturnsConflict(t *testing.T) {
	runs := &fakeRunRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Run, error) {
			return &domain.Run{ID: "run-1", Status: domain.RunStatusCompleted}, nil
		},
	}
	u := newRunUsecase(runs, &fakeQueryRepo{}, &fakeDatasourceRepo{})

	if err := u.Cancel(context.Background(), "org-1", "run-1"); err == nil {
		t.Fatal("expected conflict error for already-terminal run")
	}
}

func TestGetResult_RunNotCompleted_ReturnsNotFound(t *testing.T) {
	runs := &fakeRunRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Run, error) {
			return &domain.Run{ID: "run-1", Status: domain.RunStatusRunning}, nil
		},
	}
	u := newRunUsecase(runs, &fakeQueryRepo{}, &fakeDatasourceRepo{})

	_, err := u.GetResult(context.Background(), "org-1", "run-1")
	if err == nil {
		t.Fatal("expected error for a run that hasn't completed")
	}
}

package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/brightmesh/querycore/internal/connector"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/params"
	"github.com/brightmesh/querycore/internal/querylimiter"
	"github.com/brightmesh/querycore/internal/repository"
)

type fakeRunRepo struct {
	claimed   []*domain.Run
	completed []string
	failed    map[string]string
	timedOut  map[string]string
	results   []*domain.RunResult
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{failed: map[string]string{}, timedOut: map[string]string{}}
}

func (f *fakeRunRepo) Create(ctx context.Context, r *domain.Run) (*domain.Run, error) { return r, nil }
func (f *fakeRunRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Run, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeRunRepo) List(ctx context.Context, input repository.ListRunsInput) ([]*domain.Run, error) {
	return nil, nil
}
func (f *fakeRunRepo) Claim(ctx context.Context, runnerID string, limit int) ([]*domain.Run, error) {
	return f.claimed, nil
}
func (f *fakeRunRepo) Complete(ctx context.Context, runID string) error {
	f.completed = append(f.completed, runID)
	return nil
}
func (f *fakeRunRepo) Fail(ctx context.Context, runID string, errMsg string) error {
	f.failed[runID] = errMsg
	return nil
}
func (f *fakeRunRepo) Timeout(ctx context.Context, runID string, errMsg string) error {
	f.timedOut[runID] = errMsg
	return nil
}
func (f *fakeRunRepo) Cancel(ctx context.Context, orgID, runID string) error { return nil }
func (f *fakeRunRepo) ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error) {
	return nil, nil
}
func (f *fakeRunRepo) CreateResult(ctx context.Context, res *domain.RunResult) (*domain.RunResult, error) {
	f.results = append(f.results, res)
	return res, nil
}
func (f *fakeRunRepo) GetResult(ctx context.Context, runID string) (*domain.RunResult, error) {
	return nil, domain.ErrNotFound
}

type fakeDatasourceRepo struct {
	ds *domain.Datasource
}

func (f *fakeDatasourceRepo) Create(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error) {
	return ds, nil
}
func (f *fakeDatasourceRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Datasource, error) {
	if f.ds == nil {
		return nil, domain.ErrNotFound
	}
	return f.ds, nil
}
func (f *fakeDatasourceRepo) List(ctx context.Context, orgID string) ([]*domain.Datasource, error) {
	return nil, nil
}
func (f *fakeDatasourceRepo) Update(ctx context.Context, ds *domain.Datasource) (*domain.Datasource, error) {
	return ds, nil
}
func (f *fakeDatasourceRepo) Delete(ctx context.Context, orgID, id string) error { return nil }

type fakeScheduleRepo struct {
	schedule *domain.Schedule
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return s, nil
}
func (f *fakeScheduleRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Schedule, error) {
	if f.schedule == nil {
		return nil, domain.ErrNotFound
	}
	return f.schedule, nil
}
func (f *fakeScheduleRepo) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	return nil, nil
}
func (f *fakeScheduleRepo) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return s, nil
}
func (f *fakeScheduleRepo) Delete(ctx context.Context, orgID, id string) error { return nil }
func (f *fakeScheduleRepo) ClaimAndFire(ctx context.Context, limit int, computeNext func(*domain.Schedule) time.Time, newRun func(*domain.Schedule) *domain.Run) ([]*domain.Run, error) {
	return nil, nil
}

type fakeUserRepo struct {
	user *domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return u, nil
}
func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.user == nil {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}
func (f *fakeUserRepo) GetByEmail(ctx context.Context, orgID, email string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeUserRepo) GetByEmailGlobal(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.sent = append(f.sent, to)
	return nil
}

type fakeConnector struct {
	output *connector.Output
	err    error
}

func (c *fakeConnector) TestConnection(ctx context.Context) (time.Duration, error) { return 0, nil }
func (c *fakeConnector) Execute(ctx context.Context, sql string, timeout time.Duration, maxRows int) (*connector.Output, error) {
	return c.output, c.err
}
func (c *fakeConnector) ExecuteWithParams(ctx context.Context, sql string, values []params.TypedValue, timeout time.Duration, maxRows int) (*connector.Output, error) {
	return c.output, c.err
}
func (c *fakeConnector) GetSchema(ctx context.Context) ([]connector.TableSchema, error) { return nil, nil }
func (c *fakeConnector) Close()                                                         {}

func newTestWorker(runs *fakeRunRepo, datasources *fakeDatasourceRepo, schedules *fakeScheduleRepo, users *fakeUserRepo, sender *fakeSender) *Worker {
	mgr, err := crypto.NewManager("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	if err != nil {
		panic(err)
	}
	limiter := querylimiter.New(querylimiter.DefaultLimits())
	return NewWorker(runs, datasources, schedules, users, mgr, limiter, sender, time.Second, 4, slog.Default())
}

func TestExecuteCompletesSuccessfulRun(t *testing.T) {
	encrypted, _ := crypto.NewManager("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	connStr, _ := encrypted.Encrypt("postgres://test")

	runs := newFakeRunRepo()
	datasources := &fakeDatasourceRepo{ds: &domain.Datasource{Kind: domain.DatasourceKindPostgres, EncryptedConnectionString: connStr}}
	w := newTestWorker(runs, datasources, &fakeScheduleRepo{}, &fakeUserRepo{}, &fakeSender{})
	w.dialer = func(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error) {
		return &fakeConnector{output: &connector.Output{Columns: []connector.ColumnDef{{Name: "n", DataType: "int8"}}, Rows: [][]any{{1}}, RowCount: 1}}, nil
	}

	values, _ := params.EncodeValues(nil)
	run := &domain.Run{ID: "run-1", OrganizationID: "org-1", DatasourceID: "ds-1", ExecutedSQL: "SELECT 1", Params: values, TimeoutSeconds: 5, MaxRows: 100}

	w.execute(context.Background(), run)

	if len(runs.completed) != 1 || runs.completed[0] != "run-1" {
		t.Errorf("completed = %v, want [run-1]", runs.completed)
	}
	if len(runs.results) != 1 || runs.results[0].RowCount != 1 {
		t.Errorf("results = %v, want one row", runs.results)
	}
	got := runs.results[0]
	if len(got.Columns) != 1 || got.Columns[0].Name != "n" || got.Columns[0].DataType != "int8" {
		t.Errorf("columns = %v, want [{n int8}]", got.Columns)
	}
	if got.ByteCount <= 0 {
		t.Errorf("byte_count = %d, want > 0", got.ByteCount)
	}
}

func TestExecuteFailsOnConnectorError(t *testing.T) {
	encrypted, _ := crypto.NewManager("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	connStr, _ := encrypted.Encrypt("postgres://test")

	runs := newFakeRunRepo()
	datasources := &fakeDatasourceRepo{ds: &domain.Datasource{Kind: domain.DatasourceKindPostgres, EncryptedConnectionString: connStr}}
	w := newTestWorker(runs, datasources, &fakeScheduleRepo{}, &fakeUserRepo{}, &fakeSender{})
	w.dialer = func(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error) {
		return &fakeConnector{err: errors.New("query execution failed: syntax error")}, nil
	}

	values, _ := params.EncodeValues(nil)
	run := &domain.Run{ID: "run-1", OrganizationID: "org-1", DatasourceID: "ds-1", ExecutedSQL: "SELECT bad", Params: values, TimeoutSeconds: 5, MaxRows: 100}

	w.execute(context.Background(), run)

	if _, ok := runs.failed["run-1"]; !ok {
		t.Errorf("expected run-1 to be failed, got failed=%v timedOut=%v", runs.failed, runs.timedOut)
	}
}

func TestExecuteTimesOutOnTimeoutError(t *testing.T) {
	encrypted, _ := crypto.NewManager("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	connStr, _ := encrypted.Encrypt("postgres://test")

	runs := newFakeRunRepo()
	datasources := &fakeDatasourceRepo{ds: &domain.Datasource{Kind: domain.DatasourceKindPostgres, EncryptedConnectionString: connStr}}
	w := newTestWorker(runs, datasources, &fakeScheduleRepo{}, &fakeUserRepo{}, &fakeSender{})
	w.dialer = func(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error) {
		return &fakeConnector{err: errors.New("query timed out after 5s")}, nil
	}

	values, _ := params.EncodeValues(nil)
	run := &domain.Run{ID: "run-1", OrganizationID: "org-1", DatasourceID: "ds-1", ExecutedSQL: "SELECT slow()", Params: values, TimeoutSeconds: 5, MaxRows: 100}

	w.execute(context.Background(), run)

	if _, ok := runs.timedOut["run-1"]; !ok {
		t.Errorf("expected run-1 to be timed out, got failed=%v timedOut=%v", runs.failed, runs.timedOut)
	}
}

func TestRunOneRejectsWhenLimiterExhausted(t *testing.T) {
	runs := newFakeRunRepo()
	w := newTestWorker(runs, &fakeDatasourceRepo{}, &fakeScheduleRepo{}, &fakeUserRepo{}, &fakeSender{})
	w.limiter = querylimiter.New(querylimiter.Limits{MaxConcurrentPerOrg: 0, MaxConcurrentGlobal: 10})

	run := &domain.Run{ID: "run-1", OrganizationID: "org-1"}
	w.runOne(context.Background(), run)

	if _, ok := runs.failed["run-1"]; !ok {
		t.Errorf("expected run-1 to be failed by limiter rejection, got %v", runs.failed)
	}
}

func TestNotifyIfScheduledSendsOnlyWhenOptedIn(t *testing.T) {
	sender := &fakeSender{}
	schedules := &fakeScheduleRepo{schedule: &domain.Schedule{ID: "sched-1", NotifyOnFailure: true, CreatedBy: "user-1"}}
	users := &fakeUserRepo{user: &domain.User{ID: "user-1", Email: "owner@example.com"}}
	w := newTestWorker(newFakeRunRepo(), &fakeDatasourceRepo{}, schedules, users, sender)

	schedID := "sched-1"
	w.notifyIfScheduled(context.Background(), &domain.Run{ID: "run-1", ScheduleID: &schedID}, "boom")

	if len(sender.sent) != 1 || sender.sent[0] != "owner@example.com" {
		t.Errorf("sent = %v, want [owner@example.com]", sender.sent)
	}
}

func TestNotifyIfScheduledSkipsAdhocRuns(t *testing.T) {
	sender := &fakeSender{}
	w := newTestWorker(newFakeRunRepo(), &fakeDatasourceRepo{}, &fakeScheduleRepo{}, &fakeUserRepo{}, sender)

	w.notifyIfScheduled(context.Background(), &domain.Run{ID: "run-1"}, "boom")

	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none for an ad-hoc run", sender.sent)
	}
}

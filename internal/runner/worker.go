// Package runner executes claimed runs against their tenant datasource
// and persists the result, bounding concurrency per organization and
// globally so one tenant's burst cannot starve the rest.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brightmesh/querycore/internal/connector"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/email"
	"github.com/brightmesh/querycore/internal/metrics"
	"github.com/brightmesh/querycore/internal/params"
	"github.com/brightmesh/querycore/internal/querylimiter"
	"github.com/brightmesh/querycore/internal/repository"
)

// ErrUnsupportedKind is returned when a datasource's Kind has no
// connector implementation to execute queries against it.
var ErrUnsupportedKind = errors.New("datasource kind has no connector implementation")

// Worker polls for queued runs, claims a batch, and executes each one
// concurrently up to its configured concurrency.
type Worker struct {
	id           string
	runs         repository.RunRepository
	datasources  repository.DatasourceRepository
	schedules    repository.ScheduleRepository
	users        repository.UserRepository
	crypto       *crypto.Manager
	limiter      *querylimiter.Limiter
	notifier     email.Sender
	dialer       func(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error)
	pollInterval time.Duration
	concurrency  int
	logger       *slog.Logger
}

func NewWorker(
	runs repository.RunRepository,
	datasources repository.DatasourceRepository,
	schedules repository.ScheduleRepository,
	users repository.UserRepository,
	cryptoManager *crypto.Manager,
	limiter *querylimiter.Limiter,
	notifier email.Sender,
	pollInterval time.Duration,
	concurrency int,
	logger *slog.Logger,
) *Worker {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	w := &Worker{
		id:           id,
		runs:         runs,
		datasources:  datasources,
		schedules:    schedules,
		users:        users,
		crypto:       cryptoManager,
		limiter:      limiter,
		notifier:     notifier,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		logger:       logger.With("component", "runner", "runner_id", id),
	}
	w.dialer = w.dial
	return w
}

func (w *Worker) dial(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error) {
	switch kind {
	case domain.DatasourceKindPostgres:
		return connector.NewPostgresConnector(ctx, connStr)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("runner started", "concurrency", w.concurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("runner shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	claimStart := time.Now()
	runs, err := w.runs.Claim(ctx, w.id, w.concurrency)
	if err != nil {
		w.logger.Error("runner: claim error", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	for range runs {
		metrics.RunClaimLatency.Observe(time.Since(claimStart).Seconds())
	}
	w.logger.Info("runner: claimed runs", "count", len(runs))

	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(r *domain.Run) {
			defer wg.Done()
			w.runOne(ctx, r)
		}(run)
	}
	wg.Wait()
}

func (w *Worker) runOne(ctx context.Context, run *domain.Run) {
	guard, err := w.limiter.TryAcquire(run.OrganizationID)
	if err != nil {
		scope := "org"
		var limitErr *querylimiter.LimitError
		if errors.As(err, &limitErr) && limitErr.Global {
			scope = "global"
		}
		metrics.LimiterRejectionsTotal.WithLabelValues(scope).Inc()
		w.logger.Warn("runner: run rejected by concurrency limiter", "run_id", run.ID, "org_id", run.OrganizationID, "error", err)
		w.fail(ctx, run, "rejected: too many concurrent queries for this organization, try again shortly")
		return
	}
	defer guard.Release()

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	start := time.Now()
	w.execute(ctx, run)
	metrics.RunExecutionDuration.WithLabelValues(string(run.Status)).Observe(time.Since(start).Seconds())
}

func (w *Worker) execute(ctx context.Context, run *domain.Run) {
	ds, err := w.datasources.GetByID(ctx, run.OrganizationID, run.DatasourceID)
	if err != nil {
		w.logger.Error("runner: loading datasource", "run_id", run.ID, "error", err)
		w.fail(ctx, run, "datasource not found")
		return
	}

	connStr, err := w.crypto.Decrypt(ds.EncryptedConnectionString)
	if err != nil {
		w.logger.Error("runner: decrypting connection string", "run_id", run.ID, "error", err)
		w.fail(ctx, run, "failed to decrypt datasource credentials")
		return
	}

	conn, err := w.dialer(ctx, ds.Kind, connStr)
	if err != nil {
		w.logger.Error("runner: dialing datasource", "run_id", run.ID, "error", err)
		w.fail(ctx, run, fmt.Sprintf("failed to connect to datasource: %v", err))
		return
	}
	defer conn.Close()

	values, err := params.DecodeValues(run.Params)
	if err != nil {
		w.logger.Error("runner: decoding bound parameters", "run_id", run.ID, "error", err)
		w.fail(ctx, run, "failed to decode bound parameters")
		return
	}

	timeout := time.Duration(run.TimeoutSeconds) * time.Second
	out, err := conn.ExecuteWithParams(ctx, run.ExecutedSQL, values, timeout, run.MaxRows)
	if err != nil {
		w.logger.Info("runner: run failed", "run_id", run.ID, "error", err)
		if strings.Contains(err.Error(), "timed out") {
			w.timeout(ctx, run, err.Error())
		} else {
			w.fail(ctx, run, err.Error())
		}
		return
	}

	if err := w.complete(ctx, run, out); err != nil {
		w.logger.Error("runner: completing run", "run_id", run.ID, "error", err)
		return
	}
	w.logger.Info("runner: run completed", "run_id", run.ID, "rows", out.RowCount, "duration", out.ExecutionTime)
}

func (w *Worker) complete(ctx context.Context, run *domain.Run, out *connector.Output) error {
	columns := make([]domain.ColumnDef, len(out.Columns))
	for i, c := range out.Columns {
		columns[i] = domain.ColumnDef{Name: c.Name, DataType: c.DataType}
	}

	rowsJSON, err := json.Marshal(out.Rows)
	if err != nil {
		return fmt.Errorf("measuring run result size: %w", err)
	}

	_, err = w.runs.CreateResult(ctx, &domain.RunResult{
		RunID:       run.ID,
		Columns:     columns,
		Rows:        out.Rows,
		RowCount:    out.RowCount,
		ByteCount:   int64(len(rowsJSON)),
		ExecutionMs: float64(out.ExecutionTime.Microseconds()) / 1000,
		Truncated:   out.RowCount >= run.MaxRows,
	})
	if err != nil {
		return fmt.Errorf("storing run result: %w", err)
	}

	if err := w.runs.Complete(ctx, run.ID); err != nil {
		return fmt.Errorf("marking run completed: %w", err)
	}
	run.Status = domain.RunStatusCompleted
	metrics.RunsCompletedTotal.WithLabelValues("completed").Inc()
	return nil
}

func (w *Worker) fail(ctx context.Context, run *domain.Run, errMsg string) {
	if err := w.runs.Fail(ctx, run.ID, errMsg); err != nil {
		w.logger.Error("runner: marking run failed", "run_id", run.ID, "error", err)
	}
	run.Status = domain.RunStatusFailed
	metrics.RunsCompletedTotal.WithLabelValues("failed").Inc()
	w.notifyIfScheduled(ctx, run, errMsg)
}

func (w *Worker) timeout(ctx context.Context, run *domain.Run, errMsg string) {
	if err := w.runs.Timeout(ctx, run.ID, errMsg); err != nil {
		w.logger.Error("runner: marking run timed out", "run_id", run.ID, "error", err)
	}
	run.Status = domain.RunStatusTimeout
	metrics.RunsCompletedTotal.WithLabelValues("timeout").Inc()
	w.notifyIfScheduled(ctx, run, errMsg)
}

// notifyIfScheduled emails the schedule's creator when a run it fired
// lands in failed or timeout and the schedule opted into failure
// notifications.
func (w *Worker) notifyIfScheduled(ctx context.Context, run *domain.Run, errMsg string) {
	subject := fmt.Sprintf("Scheduled query run %s failed", run.ID)
	body := fmt.Sprintf("<p>Run %s of schedule %s failed:</p><pre>%s</pre>", run.ID, derefSchedule(run.ScheduleID), errMsg)
	notifyScheduleCreator(ctx, w.schedules, w.users, w.notifier, w.logger, run, subject, body)
}

func derefSchedule(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

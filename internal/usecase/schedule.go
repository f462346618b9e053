package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

const maxListSchedulesLimit = 100

// ScheduleUsecase fires a Query on a cron cadence. Next-fire computation
// lives here (and is reused by the scheduler process via ClaimAndFire's
// computeNext callback) so both paths parse the cron expression the
// same way.
type ScheduleUsecase struct {
	repo    repository.ScheduleRepository
	queries repository.QueryRepository
}

func NewScheduleUsecase(repo repository.ScheduleRepository, queries repository.QueryRepository) *ScheduleUsecase {
	return &ScheduleUsecase{repo: repo, queries: queries}
}

func (u *ScheduleUsecase) Create(ctx context.Context, orgID, queryID, name, cronExpr string, notifyOnFailure bool, createdBy string) (*domain.Schedule, error) {
	next, err := ComputeNextRunAt(cronExpr, time.Now())
	if err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	if _, err := u.queries.GetByID(ctx, orgID, queryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("query not found")
		}
		return nil, apperror.Database(err)
	}

	s, err := u.repo.Create(ctx, &domain.Schedule{
		OrganizationID:  orgID,
		QueryID:         queryID,
		Name:            name,
		CronExpr:        cronExpr,
		NotifyOnFailure: notifyOnFailure,
		NextRunAt:       next,
		CreatedBy:       createdBy,
	})
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNameConflict) || errors.Is(err, domain.ErrConflict) {
			return nil, apperror.Conflict("a schedule with this name already exists")
		}
		return nil, apperror.Database(err)
	}
	return s, nil
}

func (u *ScheduleUsecase) Get(ctx context.Context, orgID, id string) (*domain.Schedule, error) {
	s, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrScheduleNotFound) {
			return nil, apperror.NotFound("schedule not found")
		}
		return nil, apperror.Database(err)
	}
	return s, nil
}

// ScheduleListResult is one page of a keyset-paginated schedule listing.
type ScheduleListResult struct {
	Schedules  []*domain.Schedule
	NextCursor string
}

func (u *ScheduleUsecase) List(ctx context.Context, orgID, cursor string, limit int) (ScheduleListResult, error) {
	limit = normalizeLimit(limit, maxListSchedulesLimit)

	input := repository.ListSchedulesInput{OrganizationID: orgID, Limit: limit + 1}
	if cursor != "" {
		cursorTime, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return ScheduleListResult{}, apperror.BadRequest("invalid cursor")
		}
		input.CursorTime = cursorTime
		input.CursorID = cursorID
	}

	list, err := u.repo.List(ctx, input)
	if err != nil {
		return ScheduleListResult{}, apperror.Database(err)
	}

	result := ScheduleListResult{Schedules: list}
	if len(list) > limit {
		last := list[limit-1]
		result.Schedules = list[:limit]
		result.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

func (u *ScheduleUsecase) Update(ctx context.Context, orgID, id, name, cronExpr string, notifyOnFailure bool) (*domain.Schedule, error) {
	s, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	next, err := ComputeNextRunAt(cronExpr, time.Now())
	if err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	s.Name = name
	s.CronExpr = cronExpr
	s.NotifyOnFailure = notifyOnFailure
	s.NextRunAt = next

	updated, err := u.repo.Update(ctx, s)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNameConflict) || errors.Is(err, domain.ErrConflict) {
			return nil, apperror.Conflict("a schedule with this name already exists")
		}
		return nil, apperror.Database(err)
	}
	return updated, nil
}

func (u *ScheduleUsecase) Pause(ctx context.Context, orgID, id string) error {
	s, err := u.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if s.Paused {
		return apperror.Conflict("schedule is already paused")
	}
	s.Paused = true
	if _, err := u.repo.Update(ctx, s); err != nil {
		return apperror.Database(err)
	}
	return nil
}

func (u *ScheduleUsecase) Resume(ctx context.Context, orgID, id string) error {
	s, err := u.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !s.Paused {
		return apperror.Conflict("schedule is not paused")
	}

	next, err := ComputeNextRunAt(s.CronExpr, time.Now())
	if err != nil {
		return apperror.BadRequest(err.Error())
	}

	s.Paused = false
	s.NextRunAt = next
	if _, err := u.repo.Update(ctx, s); err != nil {
		return apperror.Database(err)
	}
	return nil
}

func (u *ScheduleUsecase) Delete(ctx context.Context, orgID, id string) error {
	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrScheduleNotFound) {
			return apperror.NotFound("schedule not found")
		}
		return apperror.Database(err)
	}
	return nil
}

// cronParser accepts both the classic 5-field grammar and a 6-field
// grammar with a leading seconds slot.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ComputeNextRunAt parses cronExpr (5-field or 6-field-with-seconds) and
// returns its next fire time after from. Shared by Create/Update/Resume
// and, as a bound closure, by the scheduler process's ClaimAndFire call.
func ComputeNextRunAt(cronExpr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, domain.ErrInvalidCronExpr
	}
	return sched.Next(from), nil
}

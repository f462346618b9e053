package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrInvalidCronExpr       = errors.New("invalid cron expression")
	ErrScheduleAlreadyPaused = errors.New("schedule is already paused")
	ErrScheduleNotPaused     = errors.New("schedule is not paused")
	ErrScheduleNameConflict  = errors.New("schedule with this name already exists")
)

// Schedule fires a Query on a cron cadence. NotifyOnFailure is additive
// to the base entity: when set, the runner sends one email to the
// schedule's creator any time a run it fired lands in failed or timeout.
type Schedule struct {
	ID              string
	OrganizationID  string
	QueryID         string
	Name            string
	CronExpr        string
	Paused          bool
	NotifyOnFailure bool
	NextRunAt       time.Time
	LastRunAt       *time.Time
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

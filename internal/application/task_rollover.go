package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/recurrence"
)

// TaskRollover reopens recurring tasks at the start of their cadence window.
type TaskRollover struct {
	tasks  persistence.TaskRepository
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// NewTaskRollover wires the rollover jobs. loc defines the local day used by
// the daily, weekly and monthly jobs.
func NewTaskRollover(tasks persistence.TaskRepository, now func() time.Time, loc *time.Location, logger *slog.Logger) *TaskRollover {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TaskRollover{tasks: tasks, now: now, loc: loc, logger: defaultLogger(logger)}
}

// RolloverHourly reopens Hourly tasks due at or before one hour ago and sets
// their due date to now.
func (r *TaskRollover) RolloverHourly(ctx context.Context) (int, error) {
	now := r.now()
	cutoff := now.Add(-time.Hour)
	return r.rollover(ctx, "rollover_hourly", persistence.TaskFilter{TaskType: persistence.TaskHourly, DueOnOrBefore: &cutoff}, now)
}

// RolloverDaily reopens every Daily task and sets its due date to today.
func (r *TaskRollover) RolloverDaily(ctx context.Context) (int, error) {
	today := r.today()
	return r.rollover(ctx, "rollover_daily", persistence.TaskFilter{TaskType: persistence.TaskDaily}, today)
}

// RolloverWeekly reopens Weekly tasks due at or before seven days ago.
func (r *TaskRollover) RolloverWeekly(ctx context.Context) (int, error) {
	today := r.today()
	cutoff := today.AddDate(0, 0, -7)
	return r.rollover(ctx, "rollover_weekly", persistence.TaskFilter{TaskType: persistence.TaskWeekly, DueOnOrBefore: &cutoff}, today)
}

// RolloverMonthly reopens Monthly tasks due at or before one month ago. The
// month step clamps to the shorter month's last day.
func (r *TaskRollover) RolloverMonthly(ctx context.Context) (int, error) {
	today := r.today()
	cutoff := recurrence.AddMonths(today, -1)
	return r.rollover(ctx, "rollover_monthly", persistence.TaskFilter{TaskType: persistence.TaskMonthly, DueOnOrBefore: &cutoff}, today)
}

// today is local midnight of the current day.
func (r *TaskRollover) today() time.Time {
	y, m, d := r.now().In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

func (r *TaskRollover) rollover(ctx context.Context, operation string, filter persistence.TaskFilter, due time.Time) (int, error) {
	logger := serviceLogger(ctx, r.logger, "task_rollover", operation)
	tasks, err := r.tasks.ListTasks(ctx, filter)
	if err != nil {
		logger.Error("selecting tasks failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}

	updated := 0
	stamp := r.now()
	for _, task := range tasks {
		task.Status = persistence.StatusOpen
		task.DueDate = due
		task.UpdatedAt = stamp
		if err := r.tasks.UpdateTask(ctx, task); err != nil {
			rowErr := &BatchRowError{Job: operation, RowID: task.ID, Err: err}
			logger.Error("task rollover failed", "task_id", task.ID, "error", rowErr, "error_kind", ErrorKind(rowErr))
			continue
		}
		updated++
	}
	logger.Info("rollover complete", "selected", len(tasks), "updated", updated)
	return updated, nil
}

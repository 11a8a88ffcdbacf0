package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/persistence/memory"
)

type failingTaskRepo struct {
	persistence.TaskRepository
	failID string
}

func (f *failingTaskRepo) UpdateTask(ctx context.Context, task persistence.Task) error {
	if task.ID == f.failID {
		return errors.New("row locked")
	}
	return f.TaskRepository.UpdateTask(ctx, task)
}

type brokenListRepo struct {
	persistence.TaskRepository
}

func (brokenListRepo) ListTasks(context.Context, persistence.TaskFilter) ([]persistence.Task, error) {
	return nil, errors.New("connection reset")
}

func seedTasks(t *testing.T, tasks ...persistence.Task) *memory.Storage {
	t.Helper()
	store := memory.New()
	for _, task := range tasks {
		if err := store.CreateTask(context.Background(), task); err != nil {
			t.Fatalf("seed task %s: %v", task.ID, err)
		}
	}
	return store
}

func TestRolloverHourly_InclusiveCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.May, 10, 14, 0, 0, 0, time.UTC)
	store := seedTasks(t,
		persistence.Task{ID: "boundary", TaskType: persistence.TaskHourly, Status: persistence.StatusCompleted, DueDate: now.Add(-time.Hour)},
		persistence.Task{ID: "recent", TaskType: persistence.TaskHourly, Status: persistence.StatusCompleted, DueDate: now.Add(-59 * time.Minute)},
		persistence.Task{ID: "daily", TaskType: persistence.TaskDaily, Status: persistence.StatusCompleted, DueDate: now.Add(-48 * time.Hour)},
	)

	rollover := NewTaskRollover(store, fixedNow(now), time.UTC, discardLogger())
	updated, err := rollover.RolloverHourly(context.Background())
	if err != nil {
		t.Fatalf("RolloverHourly returned error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 task updated, got %d", updated)
	}

	boundary, _ := store.GetTask(context.Background(), "boundary")
	if boundary.Status != persistence.StatusOpen || !boundary.DueDate.Equal(now) {
		t.Fatalf("boundary task not rolled over: %+v", boundary)
	}
	recent, _ := store.GetTask(context.Background(), "recent")
	if recent.Status != persistence.StatusCompleted {
		t.Fatalf("recent task should be untouched: %+v", recent)
	}
	daily, _ := store.GetTask(context.Background(), "daily")
	if daily.Status != persistence.StatusCompleted {
		t.Fatalf("daily task should be untouched by the hourly job: %+v", daily)
	}
}

func TestRolloverDaily_ReopensAllDailyTasks(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2024, time.May, 10, 20, 0, 0, 0, time.UTC)
	store := seedTasks(t,
		persistence.Task{ID: "a", TaskType: persistence.TaskDaily, Status: persistence.StatusCompleted, DueDate: now.AddDate(0, 0, 3)},
		persistence.Task{ID: "b", TaskType: persistence.TaskDaily, Status: persistence.StatusWorking, DueDate: now.AddDate(0, 0, -3)},
	)

	rollover := NewTaskRollover(store, fixedNow(now), loc, discardLogger())
	updated, err := rollover.RolloverDaily(context.Background())
	if err != nil {
		t.Fatalf("RolloverDaily returned error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 tasks updated, got %d", updated)
	}

	want := time.Date(2024, time.May, 11, 0, 0, 0, 0, loc)
	for _, id := range []string{"a", "b"} {
		task, _ := store.GetTask(context.Background(), id)
		if task.Status != persistence.StatusOpen || !task.DueDate.Equal(want) {
			t.Fatalf("task %s: expected Open due %v, got %+v", id, want, task)
		}
	}
}

func TestRolloverWeeklyAndMonthlyCutoffs(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC)
	store := seedTasks(t,
		persistence.Task{ID: "week-old", TaskType: persistence.TaskWeekly, Status: persistence.StatusCompleted, DueDate: date(2024, time.March, 24)},
		persistence.Task{ID: "week-fresh", TaskType: persistence.TaskWeekly, Status: persistence.StatusCompleted, DueDate: date(2024, time.March, 25)},
		persistence.Task{ID: "month-old", TaskType: persistence.TaskMonthly, Status: persistence.StatusCompleted, DueDate: date(2024, time.February, 29)},
		persistence.Task{ID: "month-fresh", TaskType: persistence.TaskMonthly, Status: persistence.StatusCompleted, DueDate: date(2024, time.March, 1)},
	)
	rollover := NewTaskRollover(store, fixedNow(now), time.UTC, discardLogger())

	if n, err := rollover.RolloverWeekly(context.Background()); err != nil || n != 1 {
		t.Fatalf("RolloverWeekly = %d, %v; want 1, nil", n, err)
	}
	if n, err := rollover.RolloverMonthly(context.Background()); err != nil || n != 1 {
		t.Fatalf("RolloverMonthly = %d, %v; want 1, nil", n, err)
	}

	for id, want := range map[string]persistence.Status{
		"week-old":    persistence.StatusOpen,
		"week-fresh":  persistence.StatusCompleted,
		"month-old":   persistence.StatusOpen,
		"month-fresh": persistence.StatusCompleted,
	} {
		task, _ := store.GetTask(context.Background(), id)
		if task.Status != want {
			t.Fatalf("task %s: expected %s, got %s", id, want, task.Status)
		}
	}
}

func TestRollover_RowFailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.May, 10, 14, 0, 0, 0, time.UTC)
	store := seedTasks(t,
		persistence.Task{ID: "t1", TaskType: persistence.TaskDaily, Status: persistence.StatusCompleted, DueDate: now},
		persistence.Task{ID: "t2", TaskType: persistence.TaskDaily, Status: persistence.StatusCompleted, DueDate: now.Add(time.Minute)},
		persistence.Task{ID: "t3", TaskType: persistence.TaskDaily, Status: persistence.StatusCompleted, DueDate: now.Add(2 * time.Minute)},
	)

	rollover := NewTaskRollover(&failingTaskRepo{TaskRepository: store, failID: "t2"}, fixedNow(now), time.UTC, discardLogger())
	updated, err := rollover.RolloverDaily(context.Background())
	if err != nil {
		t.Fatalf("RolloverDaily returned error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 tasks updated, got %d", updated)
	}
	t3, _ := store.GetTask(context.Background(), "t3")
	if t3.Status != persistence.StatusOpen {
		t.Fatalf("row after the failure was skipped: %+v", t3)
	}
}

func TestRollover_ListFailureIsReturned(t *testing.T) {
	t.Parallel()

	rollover := NewTaskRollover(brokenListRepo{}, fixedNow(time.Now()), time.UTC, discardLogger())
	if _, err := rollover.RolloverWeekly(context.Background()); err == nil {
		t.Fatal("expected list failure to be returned")
	}
}

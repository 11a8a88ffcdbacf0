package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/example/erp-automation/internal/persistence"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, DialectPostgres), mock
}

func TestRebind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{DialectSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		if got := rebind(tc.dialect, tc.in); got != tc.want {
			t.Errorf("rebind(%s, %q) = %q, want %q", tc.dialect, tc.in, got, tc.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Dialect{"sqlite": DialectSQLite, "SQLite3": DialectSQLite, "postgres": DialectPostgres, "postgresql": DialectPostgres} {
		got, err := ParseDialect(input)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPostgres_GetTask(t *testing.T) {
	store, mock := newMockStore(t)

	due := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, subject, task_type, status, due_date, updated_at FROM tasks WHERE id = \$1`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "task_type", "status", "due_date", "updated_at"}).
			AddRow("t1", "Check backups", "Daily", "Open", formatTime(due), formatTime(due)))

	task, err := store.GetTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.TaskType != persistence.TaskDaily || task.Status != persistence.StatusOpen || !task.DueDate.Equal(due) {
		t.Errorf("unexpected task: %+v", task)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_GetTask_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM tasks WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "task_type", "status", "due_date", "updated_at"}))

	if _, err := store.GetTask(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_ListTasksRebindsFilters(t *testing.T) {
	store, mock := newMockStore(t)

	cutoff := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE task_type = \$1 AND due_date <= \$2 ORDER BY due_date, id`).
		WithArgs("Hourly", formatTime(cutoff)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "task_type", "status", "due_date", "updated_at"}).
			AddRow("t1", "Rotate logs", "Hourly", "Completed", formatTime(cutoff), formatTime(cutoff)))

	tasks, err := store.ListTasks(context.Background(), persistence.TaskFilter{TaskType: persistence.TaskHourly, DueOnOrBefore: &cutoff})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_UpdateTask_NoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE tasks SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateTask(context.Background(), persistence.Task{ID: "gone", TaskType: persistence.TaskDaily})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_CreateAssignment_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO engineering_assignments`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := store.CreateAssignment(context.Background(), persistence.Assignment{
		ID:              "a-2",
		SketchID:        "sk-1",
		RequirementItem: "Pump",
		SeniorEngineer:  "alice",
		Status:          persistence.StatusPending,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_CreateAssignment_ExistingKeyKeepsTransactionUsable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO engineering_assignments .* ON CONFLICT \(sketch_id, requirement_item, senior_engineer\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO engineering_assignments .* ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTransaction(context.Background(), func(ctx context.Context, tx persistence.Repositories) error {
		err := tx.CreateAssignment(ctx, persistence.Assignment{
			ID:              "a-2",
			SketchID:        "sk-1",
			RequirementItem: "Pump",
			SeniorEngineer:  "alice",
			Status:          persistence.StatusPending,
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for existing key, got %v", err)
		}
		return tx.CreateAssignment(ctx, persistence.Assignment{
			ID:              "a-3",
			SketchID:        "sk-1",
			RequirementItem: "Valve",
			SeniorEngineer:  "alice",
			Status:          persistence.StatusPending,
		})
	})
	if err != nil {
		t.Fatalf("WithinTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_WithinTransactionCommitsNestedWrites(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sketches`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTransaction(context.Background(), func(ctx context.Context, tx persistence.Repositories) error {
		if err := tx.CreateTask(ctx, persistence.Task{ID: "t1", TaskType: persistence.TaskDaily}); err != nil {
			return err
		}
		return tx.CreateSketch(ctx, persistence.Sketch{ID: "sk-1", Title: "Empty"})
	})
	if err != nil {
		t.Fatalf("WithinTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

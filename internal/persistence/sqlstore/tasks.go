package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/erp-automation/internal/persistence"
)

// CreateTask inserts a recurring task.
func (s *Store) CreateTask(ctx context.Context, task persistence.Task) error {
	if task.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.exec(ctx, `INSERT INTO tasks (id, subject, task_type, status, due_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.Subject, string(task.TaskType), string(task.Status), formatTime(task.DueDate), formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("sqlstore: insert task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask loads a recurring task.
func (s *Store) GetTask(ctx context.Context, id string) (persistence.Task, error) {
	return scanTask(s.queryRow(ctx, `SELECT id, subject, task_type, status, due_date, updated_at FROM tasks WHERE id = ?`, id))
}

// UpdateTask replaces a recurring task's mutable columns.
func (s *Store) UpdateTask(ctx context.Context, task persistence.Task) error {
	res, err := s.exec(ctx, `UPDATE tasks SET subject = ?, task_type = ?, status = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		task.Subject, string(task.TaskType), string(task.Status), formatTime(task.DueDate), formatTime(task.UpdatedAt), task.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: update task %s: %w", task.ID, err)
	}
	return expectOne(res)
}

// ListTasks returns tasks ordered by due date.
func (s *Store) ListTasks(ctx context.Context, filter persistence.TaskFilter) ([]persistence.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.TaskType != "" {
		clauses = append(clauses, "task_type = ?")
		args = append(args, string(filter.TaskType))
	}
	if filter.DueOnOrBefore != nil {
		clauses = append(clauses, "due_date <= ?")
		args = append(args, formatTime(*filter.DueOnOrBefore))
	}
	query := `SELECT id, subject, task_type, status, due_date, updated_at FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY due_date, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]persistence.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, mapError(rows.Err())
}

func scanTask(row rowScanner) (persistence.Task, error) {
	var (
		task             persistence.Task
		taskType, status string
		due, updated     string
	)
	if err := row.Scan(&task.ID, &task.Subject, &taskType, &status, &due, &updated); err != nil {
		return persistence.Task{}, mapError(err)
	}
	task.TaskType = persistence.TaskType(taskType)
	task.Status = persistence.Status(status)
	var err error
	if task.DueDate, err = parseTime(due); err != nil {
		return persistence.Task{}, err
	}
	if task.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Task{}, err
	}
	return task, nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/erp-automation/internal/persistence"
)

// CreateSketch inserts a sketch and its requirement rows.
func (s *Store) CreateSketch(ctx context.Context, sketch persistence.Sketch) error {
	if sketch.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.inTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx, `INSERT INTO sketches (id, title, updated_at) VALUES (?, ?, ?)`,
			sketch.ID, sketch.Title, formatTime(sketch.UpdatedAt))
		if err != nil {
			return fmt.Errorf("sqlstore: insert sketch %s: %w", sketch.ID, err)
		}
		return tx.writeRequirements(ctx, sketch.ID, sketch.Requirements)
	})
}

// GetSketch loads a sketch with its requirement rows in position order.
func (s *Store) GetSketch(ctx context.Context, id string) (persistence.Sketch, error) {
	var (
		sketch  persistence.Sketch
		updated string
	)
	err := s.queryRow(ctx, `SELECT id, title, updated_at FROM sketches WHERE id = ?`, id).
		Scan(&sketch.ID, &sketch.Title, &updated)
	if err != nil {
		return persistence.Sketch{}, mapError(err)
	}
	if sketch.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Sketch{}, err
	}

	rows, err := s.query(ctx, `SELECT id, item, engineer, status, description, start_date, end_date
		FROM sketch_requirements WHERE sketch_id = ? ORDER BY position`, id)
	if err != nil {
		return persistence.Sketch{}, fmt.Errorf("sqlstore: read requirements %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row        persistence.RequirementRow
			status     string
			start, end sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.Item, &row.Engineer, &status, &row.Description, &start, &end); err != nil {
			return persistence.Sketch{}, mapError(err)
		}
		row.Status = persistence.Status(status)
		if row.StartDate, err = parseNullTime(start); err != nil {
			return persistence.Sketch{}, err
		}
		if row.EndDate, err = parseNullTime(end); err != nil {
			return persistence.Sketch{}, err
		}
		sketch.Requirements = append(sketch.Requirements, row)
	}
	return sketch, mapError(rows.Err())
}

// UpdateSketch replaces the sketch title and rewrites its requirement rows.
func (s *Store) UpdateSketch(ctx context.Context, sketch persistence.Sketch) error {
	return s.inTx(ctx, func(tx *Store) error {
		res, err := tx.exec(ctx, `UPDATE sketches SET title = ?, updated_at = ? WHERE id = ?`,
			sketch.Title, formatTime(sketch.UpdatedAt), sketch.ID)
		if err != nil {
			return fmt.Errorf("sqlstore: update sketch %s: %w", sketch.ID, err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM sketch_requirements WHERE sketch_id = ?`, sketch.ID); err != nil {
			return fmt.Errorf("sqlstore: clear requirements %s: %w", sketch.ID, err)
		}
		return tx.writeRequirements(ctx, sketch.ID, sketch.Requirements)
	})
}

func (s *Store) writeRequirements(ctx context.Context, sketchID string, rows []persistence.RequirementRow) error {
	for i, row := range rows {
		_, err := s.exec(ctx, `INSERT INTO sketch_requirements
			(sketch_id, position, id, item, engineer, status, description, start_date, end_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sketchID, i, row.ID, row.Item, row.Engineer, string(row.Status), row.Description,
			nullTime(row.StartDate), nullTime(row.EndDate))
		if err != nil {
			return fmt.Errorf("sqlstore: insert requirement %d of %s: %w", i, sketchID, err)
		}
	}
	return nil
}

const assignmentColumns = `id, sketch_id, requirement_item, senior_engineer, status, description,
	start_date, end_date, created_at, updated_at`

// CreateAssignment inserts an assignment. A row that already exists for
// (sketch_id, requirement_item, senior_engineer) is skipped by the insert and
// reported as ErrDuplicate, leaving an enclosing transaction usable.
func (s *Store) CreateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	if assignment.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.inTx(ctx, func(tx *Store) error {
		res, err := tx.exec(ctx, `INSERT INTO engineering_assignments (`+assignmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (sketch_id, requirement_item, senior_engineer) DO NOTHING`,
			assignment.ID,
			assignment.SketchID,
			assignment.RequirementItem,
			assignment.SeniorEngineer,
			string(assignment.Status),
			assignment.Description,
			nullTime(assignment.StartDate),
			nullTime(assignment.EndDate),
			formatTime(assignment.CreatedAt),
			formatTime(assignment.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: insert assignment %s: %w", assignment.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if n == 0 {
			return fmt.Errorf("%w: assignment for %s/%s/%s", persistence.ErrDuplicate,
				assignment.SketchID, assignment.RequirementItem, assignment.SeniorEngineer)
		}
		return tx.writeSubtasks(ctx, assignment.ID, assignment.Subtasks)
	})
}

// GetAssignment loads an assignment with its subtasks.
func (s *Store) GetAssignment(ctx context.Context, id string) (persistence.Assignment, error) {
	assignment, err := scanAssignment(s.queryRow(ctx, `SELECT `+assignmentColumns+` FROM engineering_assignments WHERE id = ?`, id))
	if err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.Subtasks, err = s.readSubtasks(ctx, id); err != nil {
		return persistence.Assignment{}, err
	}
	return assignment, nil
}

// UpdateAssignment replaces the mutable columns and rewrites the subtasks.
func (s *Store) UpdateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	return s.inTx(ctx, func(tx *Store) error {
		res, err := tx.exec(ctx, `UPDATE engineering_assignments SET
				sketch_id = ?, requirement_item = ?, senior_engineer = ?, status = ?, description = ?,
				start_date = ?, end_date = ?, updated_at = ?
			WHERE id = ?`,
			assignment.SketchID,
			assignment.RequirementItem,
			assignment.SeniorEngineer,
			string(assignment.Status),
			assignment.Description,
			nullTime(assignment.StartDate),
			nullTime(assignment.EndDate),
			formatTime(assignment.UpdatedAt),
			assignment.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: update assignment %s: %w", assignment.ID, err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM assignment_subtasks WHERE assignment_id = ?`, assignment.ID); err != nil {
			return fmt.Errorf("sqlstore: clear subtasks %s: %w", assignment.ID, err)
		}
		return tx.writeSubtasks(ctx, assignment.ID, assignment.Subtasks)
	})
}

// ListAssignments returns matching assignments ordered by creation time.
func (s *Store) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SketchID != "" {
		clauses = append(clauses, "sketch_id = ?")
		args = append(args, filter.SketchID)
	}
	if filter.RequirementItem != "" {
		clauses = append(clauses, "requirement_item = ?")
		args = append(args, filter.RequirementItem)
	}
	if filter.SeniorEngineer != "" {
		clauses = append(clauses, "senior_engineer = ?")
		args = append(args, filter.SeniorEngineer)
	}
	query := `SELECT ` + assignmentColumns + ` FROM engineering_assignments`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list assignments: %w", err)
	}
	assignments := make([]persistence.Assignment, 0)
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError(err)
	}
	rows.Close()

	for i := range assignments {
		if assignments[i].Subtasks, err = s.readSubtasks(ctx, assignments[i].ID); err != nil {
			return nil, err
		}
	}
	return assignments, nil
}

func (s *Store) writeSubtasks(ctx context.Context, assignmentID string, subtasks []persistence.Subtask) error {
	for i, sub := range subtasks {
		_, err := s.exec(ctx, `INSERT INTO assignment_subtasks (assignment_id, position, engineer, task_description, status)
			VALUES (?, ?, ?, ?, ?)`,
			assignmentID, i, sub.Engineer, sub.TaskDescription, string(sub.Status))
		if err != nil {
			return fmt.Errorf("sqlstore: insert subtask %d of %s: %w", i, assignmentID, err)
		}
	}
	return nil
}

func (s *Store) readSubtasks(ctx context.Context, assignmentID string) ([]persistence.Subtask, error) {
	rows, err := s.query(ctx, `SELECT engineer, task_description, status
		FROM assignment_subtasks WHERE assignment_id = ? ORDER BY position`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read subtasks %s: %w", assignmentID, err)
	}
	defer rows.Close()

	var subtasks []persistence.Subtask
	for rows.Next() {
		var (
			sub    persistence.Subtask
			status string
		)
		if err := rows.Scan(&sub.Engineer, &sub.TaskDescription, &status); err != nil {
			return nil, mapError(err)
		}
		sub.Status = persistence.Status(status)
		subtasks = append(subtasks, sub)
	}
	return subtasks, mapError(rows.Err())
}

func scanAssignment(row rowScanner) (persistence.Assignment, error) {
	var (
		assignment               persistence.Assignment
		status, created, updated string
		start, end               sql.NullString
	)
	err := row.Scan(
		&assignment.ID, &assignment.SketchID, &assignment.RequirementItem, &assignment.SeniorEngineer,
		&status, &assignment.Description, &start, &end, &created, &updated,
	)
	if err != nil {
		return persistence.Assignment{}, mapError(err)
	}
	assignment.Status = persistence.Status(status)
	if assignment.StartDate, err = parseNullTime(start); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.EndDate, err = parseNullTime(end); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Assignment{}, err
	}
	if assignment.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Assignment{}, err
	}
	return assignment, nil
}

const engineeringTaskColumns = `id, assignment_id, sketch_id, junior_engineer, requirement_item, status,
	start_date, end_date, estimated_hours, actual_hours, updated_at`

// CreateEngineeringTask inserts an engineering task.
func (s *Store) CreateEngineeringTask(ctx context.Context, task persistence.EngineeringTask) error {
	if task.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.exec(ctx, `INSERT INTO engineering_tasks (`+engineeringTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.AssignmentID,
		task.SketchID,
		task.JuniorEngineer,
		task.RequirementItem,
		string(task.Status),
		nullTime(task.StartDate),
		nullTime(task.EndDate),
		nullFloat(task.EstimatedHours),
		nullFloat(task.ActualHours),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert engineering task %s: %w", task.ID, err)
	}
	return nil
}

// GetEngineeringTask loads an engineering task.
func (s *Store) GetEngineeringTask(ctx context.Context, id string) (persistence.EngineeringTask, error) {
	return scanEngineeringTask(s.queryRow(ctx, `SELECT `+engineeringTaskColumns+` FROM engineering_tasks WHERE id = ?`, id))
}

// UpdateEngineeringTask replaces an engineering task's mutable columns.
func (s *Store) UpdateEngineeringTask(ctx context.Context, task persistence.EngineeringTask) error {
	res, err := s.exec(ctx, `UPDATE engineering_tasks SET
			assignment_id = ?, sketch_id = ?, junior_engineer = ?, requirement_item = ?, status = ?,
			start_date = ?, end_date = ?, estimated_hours = ?, actual_hours = ?, updated_at = ?
		WHERE id = ?`,
		task.AssignmentID,
		task.SketchID,
		task.JuniorEngineer,
		task.RequirementItem,
		string(task.Status),
		nullTime(task.StartDate),
		nullTime(task.EndDate),
		nullFloat(task.EstimatedHours),
		nullFloat(task.ActualHours),
		formatTime(task.UpdatedAt),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update engineering task %s: %w", task.ID, err)
	}
	return expectOne(res)
}

// ListEngineeringTasks returns matching engineering tasks ordered by ID.
func (s *Store) ListEngineeringTasks(ctx context.Context, filter persistence.EngineeringTaskFilter) ([]persistence.EngineeringTask, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SketchID != "" {
		clauses = append(clauses, "sketch_id = ?")
		args = append(args, filter.SketchID)
	}
	if filter.AssignmentID != "" {
		clauses = append(clauses, "assignment_id = ?")
		args = append(args, filter.AssignmentID)
	}
	query := `SELECT ` + engineeringTaskColumns + ` FROM engineering_tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list engineering tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]persistence.EngineeringTask, 0)
	for rows.Next() {
		task, err := scanEngineeringTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, mapError(rows.Err())
}

func scanEngineeringTask(row rowScanner) (persistence.EngineeringTask, error) {
	var (
		task              persistence.EngineeringTask
		status, updated   string
		start, end        sql.NullString
		estimated, actual sql.NullFloat64
	)
	err := row.Scan(
		&task.ID, &task.AssignmentID, &task.SketchID, &task.JuniorEngineer, &task.RequirementItem, &status,
		&start, &end, &estimated, &actual, &updated,
	)
	if err != nil {
		return persistence.EngineeringTask{}, mapError(err)
	}
	task.Status = persistence.Status(status)
	task.EstimatedHours = parseNullFloat(estimated)
	task.ActualHours = parseNullFloat(actual)
	if task.StartDate, err = parseNullTime(start); err != nil {
		return persistence.EngineeringTask{}, err
	}
	if task.EndDate, err = parseNullTime(end); err != nil {
		return persistence.EngineeringTask{}, err
	}
	if task.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.EngineeringTask{}, err
	}
	return task, nil
}

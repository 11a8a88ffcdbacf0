package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/example/erp-automation/internal/notify"
	"github.com/example/erp-automation/internal/persistence"
)

// Notifier dispatches best-effort notifications.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

var engineeringStatuses = map[persistence.Status]struct{}{
	persistence.StatusPending:    {},
	persistence.StatusRequired:   {},
	persistence.StatusInProgress: {},
	persistence.StatusReady:      {},
	persistence.StatusModify:     {},
	persistence.StatusCompleted:  {},
	persistence.StatusCancelled:  {},
}

// EngineeringCascade propagates engineering task status changes to their
// assignment and sketch, and generates assignments from requirement rows.
type EngineeringCascade struct {
	store       persistence.Store
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEngineeringCascade wires the cascade. notifier may be nil.
func NewEngineeringCascade(store persistence.Store, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EngineeringCascade {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EngineeringCascade{
		store:       store,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SaveEngineeringTask creates or updates task. When its status differs from
// the stored snapshot the cascade runs in the same unit of work.
func (c *EngineeringCascade) SaveEngineeringTask(ctx context.Context, principal Principal, task persistence.EngineeringTask) (persistence.EngineeringTask, error) {
	logger := serviceLogger(ctx, c.logger, "engineering_cascade", "save_task", "principal_id", principal.UserID, "task_id", task.ID)
	if principal.UserID == "" {
		return persistence.EngineeringTask{}, ErrUnauthorized
	}
	if vErr := validateEngineeringTask(task); vErr.HasErrors() {
		logger.Warn("task rejected", "error_kind", ErrorKind(vErr), "fields", vErr.Error())
		return persistence.EngineeringTask{}, vErr
	}

	err := c.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		var prior *persistence.EngineeringTask
		if task.ID != "" {
			existing, err := tx.GetEngineeringTask(ctx, task.ID)
			switch {
			case err == nil:
				prior = &existing
			case !errors.Is(err, persistence.ErrNotFound):
				return err
			}
		} else {
			task.ID = c.idGenerator()
		}

		now := c.now()
		changed := prior == nil || prior.Status != task.Status
		if changed {
			fillCompletionHours(&task, now)
		}
		task.UpdatedAt = now

		if prior == nil {
			if err := tx.CreateEngineeringTask(ctx, task); err != nil {
				return mapRepoError(err)
			}
		} else if err := tx.UpdateEngineeringTask(ctx, task); err != nil {
			return mapRepoError(err)
		}

		if !changed {
			return nil
		}
		return c.cascade(ctx, tx, task, now, logger)
	})
	if err != nil {
		logger.Error("task save failed", "error", err, "error_kind", ErrorKind(err))
		return persistence.EngineeringTask{}, err
	}
	return task, nil
}

// UpdateEngineeringTaskStatus sets the status of a stored task and cascades.
func (c *EngineeringCascade) UpdateEngineeringTaskStatus(ctx context.Context, principal Principal, taskID string, status persistence.Status) (persistence.EngineeringTask, error) {
	task, err := c.store.GetEngineeringTask(ctx, taskID)
	if err != nil {
		return persistence.EngineeringTask{}, mapRepoError(err)
	}
	task.Status = status
	return c.SaveEngineeringTask(ctx, principal, task)
}

func validateEngineeringTask(task persistence.EngineeringTask) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(task.AssignmentID) == "" {
		vErr.add("assignment_id", "is required")
	}
	if strings.TrimSpace(task.JuniorEngineer) == "" {
		vErr.add("junior_engineer", "is required")
	}
	if strings.TrimSpace(task.RequirementItem) == "" {
		vErr.add("requirement_item", "is required")
	}
	if _, ok := engineeringStatuses[task.Status]; !ok {
		vErr.add("status", fmt.Sprintf("unsupported status %q", task.Status))
	}
	if task.EstimatedHours != nil && *task.EstimatedHours < 0 {
		vErr.add("estimated_hours", "must not be negative")
	}
	if task.ActualHours != nil && *task.ActualHours < 0 {
		vErr.add("actual_hours", "must not be negative")
	}
	if task.StartDate != nil && task.EndDate != nil && task.EndDate.Before(*task.StartDate) {
		vErr.add("end_date", "must be on or after start_date")
	}
	return vErr
}

// fillCompletionHours records actual hours for a task that just completed
// without them: hours since start, else the estimate, else 1.
func fillCompletionHours(task *persistence.EngineeringTask, now time.Time) {
	if task.Status != persistence.StatusCompleted || task.ActualHours != nil {
		return
	}
	var hours float64
	switch {
	case task.StartDate != nil:
		hours = math.Max(0, math.Round(now.Sub(*task.StartDate).Hours()*100)/100)
	case task.EstimatedHours != nil:
		hours = *task.EstimatedHours
	default:
		hours = 1.0
	}
	task.ActualHours = &hours
}

func (c *EngineeringCascade) cascade(ctx context.Context, tx persistence.Repositories, task persistence.EngineeringTask, now time.Time, logger *slog.Logger) error {
	var assignment *persistence.Assignment
	loaded, err := tx.GetAssignment(ctx, task.AssignmentID)
	switch {
	case err == nil:
		assignment = &loaded
	case errors.Is(err, persistence.ErrNotFound):
		logger.Warn("assignment missing for task", "assignment_id", task.AssignmentID)
	default:
		return err
	}

	if assignment != nil {
		if syncAssignment(assignment, task) {
			assignment.UpdatedAt = now
			if err := tx.UpdateAssignment(ctx, *assignment); err != nil {
				return mapRepoError(err)
			}
		}
	}

	sketchID := task.SketchID
	if sketchID == "" && assignment != nil {
		sketchID = assignment.SketchID
	}
	if sketchID == "" {
		return nil
	}
	sketch, err := tx.GetSketch(ctx, sketchID)
	if errors.Is(err, persistence.ErrNotFound) {
		logger.Warn("sketch missing for task", "sketch_id", sketchID)
		return nil
	}
	if err != nil {
		return err
	}

	tasks, assignments, err := sketchTasks(ctx, tx, sketchID)
	if err != nil {
		return err
	}
	tasks = replaceTask(tasks, task)
	if assignment != nil {
		assignments[assignment.ID] = *assignment
	}
	update, changed := matchRequirement(sketch.Requirements, task, tasks, assignments)
	if !changed {
		return nil
	}
	sketch.UpdatedAt = now
	if err := tx.UpdateSketch(ctx, sketch); err != nil {
		return mapRepoError(err)
	}
	logger.Info("requirement updated", "sketch_id", sketch.ID, "item", task.RequirementItem, "status", string(update.Status))
	return nil
}

// syncAssignment mirrors the task status onto the junior engineer's subtask
// rows and completes the assignment once every subtask is Completed. An
// assignment is never moved out of Completed here.
func syncAssignment(assignment *persistence.Assignment, task persistence.EngineeringTask) bool {
	changed := false
	for i := range assignment.Subtasks {
		sub := &assignment.Subtasks[i]
		if sub.Engineer == task.JuniorEngineer && sub.Status != task.Status {
			sub.Status = task.Status
			changed = true
		}
	}
	if assignment.Status == persistence.StatusCompleted || len(assignment.Subtasks) == 0 {
		return changed
	}
	for _, sub := range assignment.Subtasks {
		if sub.Status != persistence.StatusCompleted {
			return changed
		}
	}
	assignment.Status = persistence.StatusCompleted
	return true
}

// SaveSketch stores the sketch and generates assignments for its Required
// rows. It returns the saved sketch and the number of assignments created.
func (c *EngineeringCascade) SaveSketch(ctx context.Context, principal Principal, sketch persistence.Sketch) (persistence.Sketch, int, error) {
	logger := serviceLogger(ctx, c.logger, "engineering_cascade", "save_sketch", "principal_id", principal.UserID, "sketch_id", sketch.ID)
	if principal.UserID == "" {
		return persistence.Sketch{}, 0, ErrUnauthorized
	}
	if vErr := validateSketch(sketch); vErr.HasErrors() {
		logger.Warn("sketch rejected", "error_kind", ErrorKind(vErr), "fields", vErr.Error())
		return persistence.Sketch{}, 0, vErr
	}

	var created []persistence.Assignment
	err := c.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		now := c.now()
		if sketch.ID == "" {
			sketch.ID = c.idGenerator()
		}
		for i := range sketch.Requirements {
			if sketch.Requirements[i].ID == "" {
				sketch.Requirements[i].ID = c.idGenerator()
			}
		}
		sketch.UpdatedAt = now

		_, err := tx.GetSketch(ctx, sketch.ID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			err = tx.CreateSketch(ctx, sketch)
		case err == nil:
			err = tx.UpdateSketch(ctx, sketch)
		}
		if err != nil {
			return mapRepoError(err)
		}

		created, err = c.generateAssignments(ctx, tx, sketch, now, logger)
		return err
	})
	if err != nil {
		logger.Error("sketch save failed", "error", err, "error_kind", ErrorKind(err))
		return persistence.Sketch{}, 0, err
	}
	c.notifyAssignments(ctx, principal, created, logger)
	return sketch, len(created), nil
}

func validateSketch(sketch persistence.Sketch) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(sketch.Title) == "" {
		vErr.add("title", "is required")
	}
	for i, row := range sketch.Requirements {
		if _, ok := engineeringStatuses[row.Status]; !ok {
			vErr.add(fmt.Sprintf("requirements[%d].status", i), fmt.Sprintf("unsupported status %q", row.Status))
		}
		if row.StartDate != nil && row.EndDate != nil && row.EndDate.Before(*row.StartDate) {
			vErr.add(fmt.Sprintf("requirements[%d].end_date", i), "must be on or after start_date")
		}
	}
	return vErr
}

// CreateEngineeringAssignments generates missing assignments for a stored sketch.
func (c *EngineeringCascade) CreateEngineeringAssignments(ctx context.Context, principal Principal, sketchID string) (int, error) {
	logger := serviceLogger(ctx, c.logger, "engineering_cascade", "create_assignments", "principal_id", principal.UserID, "sketch_id", sketchID)
	if principal.UserID == "" {
		return 0, ErrUnauthorized
	}

	var created []persistence.Assignment
	err := c.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		sketch, err := tx.GetSketch(ctx, sketchID)
		if err != nil {
			return mapRepoError(err)
		}
		created, err = c.generateAssignments(ctx, tx, sketch, c.now(), logger)
		return err
	})
	if err != nil {
		logger.Error("assignment generation failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	c.notifyAssignments(ctx, principal, created, logger)
	return len(created), nil
}

// generateAssignments creates a Pending assignment for every Required row
// with an item and engineer that has none yet.
func (c *EngineeringCascade) generateAssignments(ctx context.Context, tx persistence.Repositories, sketch persistence.Sketch, now time.Time, logger *slog.Logger) ([]persistence.Assignment, error) {
	var created []persistence.Assignment
	for _, row := range sketch.Requirements {
		if row.Status != persistence.StatusRequired || row.Item == "" || row.Engineer == "" {
			continue
		}
		existing, err := tx.ListAssignments(ctx, persistence.AssignmentFilter{
			SketchID:        sketch.ID,
			RequirementItem: row.Item,
			SeniorEngineer:  row.Engineer,
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			continue
		}

		assignment := persistence.Assignment{
			ID:              c.idGenerator(),
			SketchID:        sketch.ID,
			RequirementItem: row.Item,
			SeniorEngineer:  row.Engineer,
			Status:          persistence.StatusPending,
			Description:     row.Description,
			StartDate:       copyTime(row.StartDate),
			EndDate:         copyTime(row.EndDate),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			if errors.Is(err, persistence.ErrDuplicate) {
				logger.Info("assignment already exists", "item", row.Item, "engineer", row.Engineer)
				continue
			}
			return nil, mapRepoError(err)
		}
		created = append(created, assignment)
	}
	return created, nil
}

func (c *EngineeringCascade) notifyAssignments(ctx context.Context, principal Principal, assignments []persistence.Assignment, logger *slog.Logger) {
	if c.notifier == nil {
		return
	}
	for _, a := range assignments {
		msg := notify.Message{
			From:      principal.UserID,
			To:        a.SeniorEngineer,
			Subject:   "New Engineering Assignment: " + a.RequirementItem,
			Body:      fmt.Sprintf("You have been assigned %s on sketch %s.", a.RequirementItem, a.SketchID),
			DocType:   DocTypeEngineeringAssignment,
			DocID:     a.ID,
			CreatedAt: a.CreatedAt,
		}
		if err := c.notifier.Notify(ctx, msg); err != nil {
			err = fmt.Errorf("%w: %v", ErrTransient, err)
			logger.Warn("notification failed", "assignment_id", a.ID, "error", err, "error_kind", ErrorKind(err))
		}
	}
}

// RefreshRequirementStatuses recomputes every requirement row of a sketch
// from its engineering tasks and returns the number of rows changed.
func (c *EngineeringCascade) RefreshRequirementStatuses(ctx context.Context, sketchID string) (int, error) {
	logger := serviceLogger(ctx, c.logger, "engineering_cascade", "refresh_requirements", "sketch_id", sketchID)

	updated := 0
	err := c.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		sketch, err := tx.GetSketch(ctx, sketchID)
		if err != nil {
			return mapRepoError(err)
		}
		tasks, assignments, err := sketchTasks(ctx, tx, sketchID)
		if err != nil {
			return err
		}

		changed := MatchRequirements(sketch.Requirements, tasks, assignments)
		if len(changed) == 0 {
			return nil
		}
		sketch.UpdatedAt = c.now()
		if err := tx.UpdateSketch(ctx, sketch); err != nil {
			return mapRepoError(err)
		}
		updated = len(changed)
		return nil
	})
	if err != nil {
		logger.Error("refresh failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.Info("requirements refreshed", "updated", updated)
	return updated, nil
}

// sketchTasks collects the engineering tasks of a sketch, both those naming
// it directly and those linked only through one of its assignments, together
// with their assignments keyed by ID. Tasks are sorted by ID.
func sketchTasks(ctx context.Context, tx persistence.Repositories, sketchID string) ([]persistence.EngineeringTask, map[string]persistence.Assignment, error) {
	tasks, err := tx.ListEngineeringTasks(ctx, persistence.EngineeringTaskFilter{SketchID: sketchID})
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		seen[task.ID] = struct{}{}
	}

	linked, err := tx.ListAssignments(ctx, persistence.AssignmentFilter{SketchID: sketchID})
	if err != nil {
		return nil, nil, err
	}
	assignments := make(map[string]persistence.Assignment, len(linked))
	for _, a := range linked {
		assignments[a.ID] = a
		more, err := tx.ListEngineeringTasks(ctx, persistence.EngineeringTaskFilter{AssignmentID: a.ID})
		if err != nil {
			return nil, nil, err
		}
		for _, task := range more {
			if _, dup := seen[task.ID]; dup || (task.SketchID != "" && task.SketchID != sketchID) {
				continue
			}
			seen[task.ID] = struct{}{}
			tasks = append(tasks, task)
		}
	}

	for _, task := range tasks {
		if _, ok := assignments[task.AssignmentID]; ok || task.AssignmentID == "" {
			continue
		}
		a, err := tx.GetAssignment(ctx, task.AssignmentID)
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		assignments[a.ID] = a
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, assignments, nil
}

// replaceTask swaps in the version of task being saved.
func replaceTask(tasks []persistence.EngineeringTask, task persistence.EngineeringTask) []persistence.EngineeringTask {
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = task
			return tasks
		}
	}
	return append(tasks, task)
}

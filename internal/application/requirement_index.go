package application

import (
	"sort"
	"time"

	"github.com/example/erp-automation/internal/persistence"
)

type requirementKey struct {
	engineer string
	item     string
}

// requirementIndex maps (engineer, item) to the row position in a sketch.
// The first row wins when a sketch lists the same pair twice.
type requirementIndex map[requirementKey]int

func buildRequirementIndex(rows []persistence.RequirementRow) requirementIndex {
	idx := make(requirementIndex, len(rows))
	for i, row := range rows {
		key := requirementKey{engineer: row.Engineer, item: row.Item}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// RequirementStatusFor maps an engineering task status onto its requirement row status.
func RequirementStatusFor(taskStatus persistence.Status) persistence.Status {
	switch taskStatus {
	case persistence.StatusCompleted:
		return persistence.StatusCompleted
	case persistence.StatusInProgress:
		return persistence.StatusReady
	default:
		return persistence.StatusRequired
	}
}

// requirementUpdate is the combined projection of the tasks feeding one
// requirement row.
type requirementUpdate struct {
	Status    persistence.Status
	StartDate *time.Time
	EndDate   *time.Time
}

// requirementGroup collects the tasks that share one (engineer, item) key.
type requirementGroup struct {
	tasks          []persistence.EngineeringTask
	assignmentDone bool
}

// update combines the group. The row is Completed when its assignment is
// Completed or every task is, Ready when any task has started or finished,
// and Required otherwise. Dates span the earliest start and the latest end.
func (g *requirementGroup) update() requirementUpdate {
	var u requirementUpdate
	completed, started := 0, false
	for _, t := range g.tasks {
		switch RequirementStatusFor(t.Status) {
		case persistence.StatusCompleted:
			completed++
			started = true
		case persistence.StatusReady:
			started = true
		}
		if t.StartDate != nil && (u.StartDate == nil || t.StartDate.Before(*u.StartDate)) {
			u.StartDate = t.StartDate
		}
		if t.EndDate != nil && (u.EndDate == nil || t.EndDate.After(*u.EndDate)) {
			u.EndDate = t.EndDate
		}
	}
	switch {
	case g.assignmentDone || completed == len(g.tasks):
		u.Status = persistence.StatusCompleted
	case started:
		u.Status = persistence.StatusReady
	default:
		u.Status = persistence.StatusRequired
	}
	return u
}

// applyRequirementUpdate writes u into rows[pos]. It reports whether the
// row changed.
func applyRequirementUpdate(rows []persistence.RequirementRow, pos int, u requirementUpdate) bool {
	row := &rows[pos]
	changed := false
	if row.Status != u.Status {
		row.Status = u.Status
		changed = true
	}
	if !sameDate(row.StartDate, u.StartDate) {
		row.StartDate = copyTime(u.StartDate)
		changed = true
	}
	if !sameDate(row.EndDate, u.EndDate) {
		row.EndDate = copyTime(u.EndDate)
		changed = true
	}
	return changed
}

// requirementEngineer picks the engineer keyed on the sketch: the
// assignment's senior engineer, else the task's junior engineer.
func requirementEngineer(task persistence.EngineeringTask, assignment *persistence.Assignment) string {
	if assignment != nil && assignment.SeniorEngineer != "" {
		return assignment.SeniorEngineer
	}
	return task.JuniorEngineer
}

func requirementKeyFor(task persistence.EngineeringTask, assignments map[string]persistence.Assignment) (requirementKey, *persistence.Assignment) {
	var assignment *persistence.Assignment
	if a, ok := assignments[task.AssignmentID]; ok {
		assignment = &a
	}
	return requirementKey{engineer: requirementEngineer(task, assignment), item: task.RequirementItem}, assignment
}

func groupRequirementTasks(tasks []persistence.EngineeringTask, assignments map[string]persistence.Assignment) map[requirementKey]*requirementGroup {
	groups := make(map[requirementKey]*requirementGroup)
	for _, task := range tasks {
		key, assignment := requirementKeyFor(task, assignments)
		g, ok := groups[key]
		if !ok {
			g = &requirementGroup{}
			groups[key] = g
		}
		g.tasks = append(g.tasks, task)
		if assignment != nil && assignment.Status == persistence.StatusCompleted {
			g.assignmentDone = true
		}
	}
	return groups
}

// MatchRequirements projects tasks onto rows and returns the sorted positions
// of rows whose final state differs from the input. Tasks sharing a row are
// combined, so the result does not depend on task order. assignments is
// keyed by assignment ID.
func MatchRequirements(rows []persistence.RequirementRow, tasks []persistence.EngineeringTask, assignments map[string]persistence.Assignment) []int {
	idx := buildRequirementIndex(rows)
	var changed []int
	for key, g := range groupRequirementTasks(tasks, assignments) {
		pos, ok := idx[key]
		if !ok {
			continue
		}
		if applyRequirementUpdate(rows, pos, g.update()) {
			changed = append(changed, pos)
		}
	}
	sort.Ints(changed)
	return changed
}

// matchRequirement is MatchRequirements restricted to the row keyed by task.
func matchRequirement(rows []persistence.RequirementRow, task persistence.EngineeringTask, tasks []persistence.EngineeringTask, assignments map[string]persistence.Assignment) (requirementUpdate, bool) {
	key, _ := requirementKeyFor(task, assignments)
	pos, ok := buildRequirementIndex(rows)[key]
	if !ok {
		return requirementUpdate{}, false
	}
	g, ok := groupRequirementTasks(tasks, assignments)[key]
	if !ok {
		return requirementUpdate{}, false
	}
	u := g.update()
	return u, applyRequirementUpdate(rows, pos, u)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

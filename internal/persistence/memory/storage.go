// Package memory provides an in-process implementation of persistence.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/erp-automation/internal/persistence"
)

// Storage keeps every document in maps guarded by a single RWMutex.
//
// Transactions are serialized: WithinTransaction snapshots all maps, runs the
// callback against the live storage and restores the snapshot when the
// callback fails. Writes issued outside a transaction while one is running
// are not isolated from its rollback.
type Storage struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	schedules   map[string]persistence.Schedule
	templates   map[string]persistence.Template
	meetings    map[string]persistence.Meeting
	tasks       map[string]persistence.Task
	sketches    map[string]persistence.Sketch
	assignments map[string]persistence.Assignment
	engTasks    map[string]persistence.EngineeringTask
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		schedules:   make(map[string]persistence.Schedule),
		templates:   make(map[string]persistence.Template),
		meetings:    make(map[string]persistence.Meeting),
		tasks:       make(map[string]persistence.Task),
		sketches:    make(map[string]persistence.Sketch),
		assignments: make(map[string]persistence.Assignment),
		engTasks:    make(map[string]persistence.EngineeringTask),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// WithinTransaction implements persistence.Store.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				s.restore(snap)
				panic(p)
			}
		}()
		return fn(ctx, s)
	}()
	if err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	schedules   map[string]persistence.Schedule
	templates   map[string]persistence.Template
	meetings    map[string]persistence.Meeting
	tasks       map[string]persistence.Task
	sketches    map[string]persistence.Sketch
	assignments map[string]persistence.Assignment
	engTasks    map[string]persistence.EngineeringTask
}

func (s *Storage) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		schedules:   cloneMap(s.schedules, cloneSchedule),
		templates:   cloneMap(s.templates, cloneTemplate),
		meetings:    cloneMap(s.meetings, cloneMeeting),
		tasks:       cloneMap(s.tasks, func(t persistence.Task) persistence.Task { return t }),
		sketches:    cloneMap(s.sketches, cloneSketch),
		assignments: cloneMap(s.assignments, cloneAssignment),
		engTasks:    cloneMap(s.engTasks, cloneEngineeringTask),
	}
}

func (s *Storage) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = snap.schedules
	s.templates = snap.templates
	s.meetings = snap.meetings
	s.tasks = snap.tasks
	s.sketches = snap.sketches
	s.assignments = snap.assignments
	s.engTasks = snap.engTasks
}

// --- ScheduleRepository implementation ---

// CreateSchedule stores a new schedule.
func (s *Storage) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[schedule.ID]; ok {
		return fmt.Errorf("memory: schedule %s: %w", schedule.ID, persistence.ErrDuplicate)
	}
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[id]
	if !ok {
		return persistence.Schedule{}, persistence.ErrNotFound
	}
	return cloneSchedule(schedule), nil
}

// UpdateSchedule replaces an existing schedule.
func (s *Storage) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[schedule.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	schedule.CreatedAt = existing.CreatedAt
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

// ListSchedules returns schedules ordered by name then ID.
func (s *Storage) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Schedule, 0)
	for _, schedule := range s.schedules {
		if filter.Frequency.Valid() && schedule.Frequency != filter.Frequency {
			continue
		}
		if filter.EnabledOnly && !schedule.IsEnabled {
			continue
		}
		out = append(out, cloneSchedule(schedule))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- TemplateRepository implementation ---

// CreateTemplate stores a meeting template.
func (s *Storage) CreateTemplate(ctx context.Context, template persistence.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[template.ID]; ok {
		return fmt.Errorf("memory: template %s: %w", template.ID, persistence.ErrDuplicate)
	}
	s.templates[template.ID] = cloneTemplate(template)
	return nil
}

// GetTemplate retrieves a template by ID.
func (s *Storage) GetTemplate(ctx context.Context, id string) (persistence.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[id]
	if !ok {
		return persistence.Template{}, persistence.ErrNotFound
	}
	return cloneTemplate(template), nil
}

// --- MeetingRepository implementation ---

// CreateMeeting stores a new meeting.
func (s *Storage) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meeting.ID]; ok {
		return fmt.Errorf("memory: meeting %s: %w", meeting.ID, persistence.ErrDuplicate)
	}
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

// GetMeeting retrieves a meeting by ID.
func (s *Storage) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return cloneMeeting(meeting), nil
}

// UpdateMeeting replaces an existing meeting.
func (s *Storage) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.meetings[meeting.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	meeting.CreatedAt = existing.CreatedAt
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

// ListMeetings returns meetings ordered by date then primary start time.
func (s *Storage) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Meeting, 0)
	for _, meeting := range s.meetings {
		if filter.Status != "" && meeting.Status != filter.Status {
			continue
		}
		if filter.ScheduleID != "" && meeting.ScheduleID != filter.ScheduleID {
			continue
		}
		out = append(out, cloneMeeting(meeting))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Primary.From != out[j].Primary.From {
			return out[i].Primary.From < out[j].Primary.From
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- TaskRepository implementation ---

// CreateTask stores a new recurring task.
func (s *Storage) CreateTask(ctx context.Context, task persistence.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("memory: task %s: %w", task.ID, persistence.ErrDuplicate)
	}
	s.tasks[task.ID] = task
	return nil
}

// GetTask retrieves a task by ID.
func (s *Storage) GetTask(ctx context.Context, id string) (persistence.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return persistence.Task{}, persistence.ErrNotFound
	}
	return task, nil
}

// UpdateTask replaces an existing task.
func (s *Storage) UpdateTask(ctx context.Context, task persistence.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

// ListTasks returns tasks ordered by due date then ID.
func (s *Storage) ListTasks(ctx context.Context, filter persistence.TaskFilter) ([]persistence.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Task, 0)
	for _, task := range s.tasks {
		if filter.TaskType != "" && task.TaskType != filter.TaskType {
			continue
		}
		if filter.DueOnOrBefore != nil && task.DueDate.After(*filter.DueOnOrBefore) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- SketchRepository implementation ---

// CreateSketch stores a new sketch with its requirement rows.
func (s *Storage) CreateSketch(ctx context.Context, sketch persistence.Sketch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sketches[sketch.ID]; ok {
		return fmt.Errorf("memory: sketch %s: %w", sketch.ID, persistence.ErrDuplicate)
	}
	s.sketches[sketch.ID] = cloneSketch(sketch)
	return nil
}

// GetSketch retrieves a sketch by ID.
func (s *Storage) GetSketch(ctx context.Context, id string) (persistence.Sketch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sketch, ok := s.sketches[id]
	if !ok {
		return persistence.Sketch{}, persistence.ErrNotFound
	}
	return cloneSketch(sketch), nil
}

// UpdateSketch replaces an existing sketch and its requirement rows.
func (s *Storage) UpdateSketch(ctx context.Context, sketch persistence.Sketch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sketches[sketch.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.sketches[sketch.ID] = cloneSketch(sketch)
	return nil
}

// --- AssignmentRepository implementation ---

// CreateAssignment stores a new assignment, enforcing one assignment per
// (sketch, requirement item, senior engineer).
func (s *Storage) CreateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[assignment.ID]; ok {
		return fmt.Errorf("memory: assignment %s: %w", assignment.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.assignments {
		if existing.SketchID == assignment.SketchID &&
			existing.RequirementItem == assignment.RequirementItem &&
			existing.SeniorEngineer == assignment.SeniorEngineer {
			return fmt.Errorf("memory: assignment for %s/%s/%s: %w", assignment.SketchID, assignment.RequirementItem, assignment.SeniorEngineer, persistence.ErrDuplicate)
		}
	}
	s.assignments[assignment.ID] = cloneAssignment(assignment)
	return nil
}

// GetAssignment retrieves an assignment by ID.
func (s *Storage) GetAssignment(ctx context.Context, id string) (persistence.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assignment, ok := s.assignments[id]
	if !ok {
		return persistence.Assignment{}, persistence.ErrNotFound
	}
	return cloneAssignment(assignment), nil
}

// UpdateAssignment replaces an existing assignment.
func (s *Storage) UpdateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assignments[assignment.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	assignment.CreatedAt = existing.CreatedAt
	s.assignments[assignment.ID] = cloneAssignment(assignment)
	return nil
}

// ListAssignments returns assignments ordered by CreatedAt then ID.
func (s *Storage) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Assignment, 0)
	for _, assignment := range s.assignments {
		if filter.SketchID != "" && assignment.SketchID != filter.SketchID {
			continue
		}
		if filter.RequirementItem != "" && assignment.RequirementItem != filter.RequirementItem {
			continue
		}
		if filter.SeniorEngineer != "" && assignment.SeniorEngineer != filter.SeniorEngineer {
			continue
		}
		out = append(out, cloneAssignment(assignment))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- EngineeringTaskRepository implementation ---

// CreateEngineeringTask stores a new engineering task.
func (s *Storage) CreateEngineeringTask(ctx context.Context, task persistence.EngineeringTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.engTasks[task.ID]; ok {
		return fmt.Errorf("memory: engineering task %s: %w", task.ID, persistence.ErrDuplicate)
	}
	s.engTasks[task.ID] = cloneEngineeringTask(task)
	return nil
}

// GetEngineeringTask retrieves an engineering task by ID.
func (s *Storage) GetEngineeringTask(ctx context.Context, id string) (persistence.EngineeringTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.engTasks[id]
	if !ok {
		return persistence.EngineeringTask{}, persistence.ErrNotFound
	}
	return cloneEngineeringTask(task), nil
}

// UpdateEngineeringTask replaces an existing engineering task.
func (s *Storage) UpdateEngineeringTask(ctx context.Context, task persistence.EngineeringTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.engTasks[task.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.engTasks[task.ID] = cloneEngineeringTask(task)
	return nil
}

// ListEngineeringTasks returns engineering tasks ordered by ID.
func (s *Storage) ListEngineeringTasks(ctx context.Context, filter persistence.EngineeringTaskFilter) ([]persistence.EngineeringTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.EngineeringTask, 0)
	for _, task := range s.engTasks {
		if filter.SketchID != "" && task.SketchID != filter.SketchID {
			continue
		}
		if filter.AssignmentID != "" && task.AssignmentID != filter.AssignmentID {
			continue
		}
		out = append(out, cloneEngineeringTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

package persistence

import (
	"context"
	"time"

	"github.com/example/erp-automation/internal/recurrence"
)

// ScheduleFilter narrows schedule queries. Zero values match everything.
type ScheduleFilter struct {
	Frequency   recurrence.Frequency
	EnabledOnly bool
}

// ScheduleRepository stores recurring meeting schedules and their ledgers.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	UpdateSchedule(ctx context.Context, schedule Schedule) error
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)
}

// TemplateRepository exposes meeting templates.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, template Template) error
	GetTemplate(ctx context.Context, id string) (Template, error)
}

// MeetingFilter narrows meeting queries.
type MeetingFilter struct {
	Status     Status
	ScheduleID string
}

// MeetingRepository stores meeting records.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	UpdateMeeting(ctx context.Context, meeting Meeting) error
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
}

// TaskFilter narrows recurring task queries. DueOnOrBefore is inclusive.
type TaskFilter struct {
	TaskType      TaskType
	DueOnOrBefore *time.Time
}

// TaskRepository stores recurring tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, task Task) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
}

// SketchRepository stores sketches together with their requirement rows.
type SketchRepository interface {
	CreateSketch(ctx context.Context, sketch Sketch) error
	GetSketch(ctx context.Context, id string) (Sketch, error)
	UpdateSketch(ctx context.Context, sketch Sketch) error
}

// AssignmentFilter narrows assignment queries. Empty fields match everything.
type AssignmentFilter struct {
	SketchID        string
	RequirementItem string
	SeniorEngineer  string
}

// AssignmentRepository stores engineering assignments. CreateAssignment
// returns ErrDuplicate when an assignment already exists for the same
// (sketch, requirement item, senior engineer).
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	UpdateAssignment(ctx context.Context, assignment Assignment) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
}

// EngineeringTaskFilter narrows engineering task queries.
type EngineeringTaskFilter struct {
	SketchID     string
	AssignmentID string
}

// EngineeringTaskRepository stores engineering tasks.
type EngineeringTaskRepository interface {
	CreateEngineeringTask(ctx context.Context, task EngineeringTask) error
	GetEngineeringTask(ctx context.Context, id string) (EngineeringTask, error)
	UpdateEngineeringTask(ctx context.Context, task EngineeringTask) error
	ListEngineeringTasks(ctx context.Context, filter EngineeringTaskFilter) ([]EngineeringTask, error)
}

// Repositories groups every document repository of the host store.
type Repositories interface {
	ScheduleRepository
	TemplateRepository
	MeetingRepository
	TaskRepository
	SketchRepository
	AssignmentRepository
	EngineeringTaskRepository
}

// Store is the host document store: typed repositories plus a unit of work.
// Writes made through tx inside fn are committed when fn returns nil and
// discarded otherwise.
type Store interface {
	Repositories
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

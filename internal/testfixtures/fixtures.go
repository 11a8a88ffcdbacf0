package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/recurrence"
)

var (
	templateCounter uint64
	scheduleCounter uint64
	taskCounter     uint64
	sketchCounter   uint64
)

// referenceTime is a Monday morning so weekly schedules fire on it.
var referenceTime = time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date returns y-m-d at UTC midnight.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Admin is the system principal used by scheduled jobs.
func Admin() application.Principal {
	return application.SystemPrincipal("Administrator")
}

// User returns a non-admin principal.
func User(id string) application.Principal {
	return application.Principal{UserID: id}
}

// ----------------------------- Templates -----------------------------

// TemplateOption configures a generated template.
type TemplateOption func(*persistence.Template)

// NewTemplate returns a template with two agenda lines and two participants.
func NewTemplate(opts ...TemplateOption) persistence.Template {
	idx := atomic.AddUint64(&templateCounter, 1)
	tmpl := persistence.Template{
		ID:          fmt.Sprintf("tmpl-%03d", idx),
		Subject:     fmt.Sprintf("Team sync %03d", idx),
		Venue:       "Room A",
		MeetingType: "Internal",
		Agenda: []persistence.AgendaItem{
			{Item: "Status round", Owner: "EMP-1"},
			{Item: "Risks", Owner: "EMP-2"},
		},
		Participants: []persistence.Participant{
			{Employee: "EMP-1"},
			{Contact: "CON-9"},
		},
	}
	for _, opt := range opts {
		opt(&tmpl)
	}
	return tmpl
}

// WithTemplateID overrides the generated template ID.
func WithTemplateID(id string) TemplateOption {
	return func(t *persistence.Template) { t.ID = id }
}

// WithVenue overrides the template venue.
func WithVenue(venue string) TemplateOption {
	return func(t *persistence.Template) { t.Venue = venue }
}

// WithParticipants replaces the template participants.
func WithParticipants(participants ...persistence.Participant) TemplateOption {
	return func(t *persistence.Template) { t.Participants = participants }
}

// ----------------------------- Schedules -----------------------------

// ScheduleOption configures a generated schedule.
type ScheduleOption func(*persistence.Schedule)

// NewSchedule returns an enabled weekly 10:00-11:00 schedule starting on the
// reference date, pending its first occurrence.
func NewSchedule(templateID string, opts ...ScheduleOption) persistence.Schedule {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	start := Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day())
	next := start
	schedule := persistence.Schedule{
		ID:          fmt.Sprintf("sched-%03d", idx),
		Name:        fmt.Sprintf("Schedule %03d", idx),
		Frequency:   recurrence.FrequencyWeekly,
		StartDate:   start,
		NextRunDate: &next,
		IsEnabled:   true,
		TemplateID:  templateID,
		TimeFrom:    "10:00:00",
		TimeTo:      "11:00:00",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&schedule)
	}
	return schedule
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(s *persistence.Schedule) { s.ID = id }
}

// WithFrequency sets the schedule frequency.
func WithFrequency(freq recurrence.Frequency) ScheduleOption {
	return func(s *persistence.Schedule) { s.Frequency = freq }
}

// WithNextRun sets the pending occurrence.
func WithNextRun(next time.Time) ScheduleOption {
	return func(s *persistence.Schedule) {
		n := next
		s.NextRunDate = &n
	}
}

// WithEndDate sets the last allowed occurrence date.
func WithEndDate(end time.Time) ScheduleOption {
	return func(s *persistence.Schedule) {
		e := end
		s.EndDate = &e
	}
}

// WithWindow sets the primary time window.
func WithWindow(from, to string) ScheduleOption {
	return func(s *persistence.Schedule) {
		s.TimeFrom = from
		s.TimeTo = to
	}
}

// Disabled turns the schedule off.
func Disabled() ScheduleOption {
	return func(s *persistence.Schedule) { s.IsEnabled = false }
}

// ----------------------------- Tasks -----------------------------

// NewTask returns a Working task of the given type due at due.
func NewTask(taskType persistence.TaskType, due time.Time) persistence.Task {
	idx := atomic.AddUint64(&taskCounter, 1)
	return persistence.Task{
		ID:        fmt.Sprintf("task-%03d", idx),
		Subject:   fmt.Sprintf("%s check %03d", taskType, idx),
		TaskType:  taskType,
		Status:    persistence.StatusWorking,
		DueDate:   due,
		UpdatedAt: referenceTime,
	}
}

// ----------------------------- Engineering -----------------------------

// EngineeringSet is a sketch with one assignment and one task per subtask.
type EngineeringSet struct {
	Sketch     persistence.Sketch
	Assignment persistence.Assignment
	Tasks      []persistence.EngineeringTask
}

// NewEngineeringSet builds a sketch whose first row (item) is assigned to
// senior and split between juniors. Tasks and subtasks start In Progress
// and the row already reflects them, so a refresh changes nothing.
func NewEngineeringSet(item, senior string, juniors ...string) EngineeringSet {
	idx := atomic.AddUint64(&sketchCounter, 1)
	sketchID := fmt.Sprintf("sketch-%03d", idx)
	assignmentID := fmt.Sprintf("assign-%03d", idx)
	rowStart := referenceTime

	set := EngineeringSet{
		Sketch: persistence.Sketch{
			ID:    sketchID,
			Title: fmt.Sprintf("Sketch %03d", idx),
			Requirements: []persistence.RequirementRow{
				{ID: sketchID + "-row-1", Item: item, Engineer: senior, Status: persistence.StatusReady, StartDate: &rowStart},
			},
			UpdatedAt: referenceTime,
		},
		Assignment: persistence.Assignment{
			ID:              assignmentID,
			SketchID:        sketchID,
			RequirementItem: item,
			SeniorEngineer:  senior,
			Status:          persistence.StatusInProgress,
			CreatedAt:       referenceTime,
			UpdatedAt:       referenceTime,
		},
	}
	for i, junior := range juniors {
		set.Assignment.Subtasks = append(set.Assignment.Subtasks, persistence.Subtask{
			Engineer:        junior,
			TaskDescription: fmt.Sprintf("%s part %d", item, i+1),
			Status:          persistence.StatusInProgress,
		})
		start := referenceTime
		set.Tasks = append(set.Tasks, persistence.EngineeringTask{
			ID:              fmt.Sprintf("%s-task-%d", assignmentID, i+1),
			AssignmentID:    assignmentID,
			SketchID:        sketchID,
			JuniorEngineer:  junior,
			RequirementItem: item,
			Status:          persistence.StatusInProgress,
			StartDate:       &start,
			UpdatedAt:       referenceTime,
		})
	}
	return set
}

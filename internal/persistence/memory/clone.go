package memory

import (
	"time"

	"github.com/example/erp-automation/internal/persistence"
)

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneSchedule(s persistence.Schedule) persistence.Schedule {
	s.EndDate = cloneTime(s.EndDate)
	s.NextRunDate = cloneTime(s.NextRunDate)
	s.LastRunDate = cloneTime(s.LastRunDate)
	s.CreatedMeetings = cloneSlice(s.CreatedMeetings)
	return s
}

func cloneTemplate(t persistence.Template) persistence.Template {
	t.Agenda = cloneSlice(t.Agenda)
	t.Participants = cloneSlice(t.Participants)
	return t
}

func cloneMeeting(m persistence.Meeting) persistence.Meeting {
	m.Agenda = cloneSlice(m.Agenda)
	m.Participants = cloneSlice(m.Participants)
	return m
}

func cloneSketch(s persistence.Sketch) persistence.Sketch {
	if s.Requirements == nil {
		return s
	}
	rows := make([]persistence.RequirementRow, len(s.Requirements))
	for i, row := range s.Requirements {
		row.StartDate = cloneTime(row.StartDate)
		row.EndDate = cloneTime(row.EndDate)
		rows[i] = row
	}
	s.Requirements = rows
	return s
}

func cloneAssignment(a persistence.Assignment) persistence.Assignment {
	a.StartDate = cloneTime(a.StartDate)
	a.EndDate = cloneTime(a.EndDate)
	a.Subtasks = cloneSlice(a.Subtasks)
	return a
}

func cloneEngineeringTask(t persistence.EngineeringTask) persistence.EngineeringTask {
	t.StartDate = cloneTime(t.StartDate)
	t.EndDate = cloneTime(t.EndDate)
	t.EstimatedHours = cloneFloat(t.EstimatedHours)
	t.ActualHours = cloneFloat(t.ActualHours)
	return t
}

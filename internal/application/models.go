package application

import (
	"time"

	"github.com/example/erp-automation/internal/persistence"
)

// Principal represents the authenticated user invoking a service method.
// It becomes the sender of any notification the operation dispatches.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// SystemPrincipal is the actor used by scheduled jobs.
func SystemPrincipal(userID string) Principal {
	if userID == "" {
		userID = "Administrator"
	}
	return Principal{UserID: userID, IsAdmin: true}
}

// ScheduleInput captures caller provided schedule fields.
type ScheduleInput struct {
	Name       string
	Frequency  string
	StartDate  time.Time
	EndDate    *time.Time
	TemplateID string
	TimeFrom   string
	TimeTo     string
	IsEnabled  *bool
}

// RunSummary reports the outcome of one scheduled meeting run.
type RunSummary struct {
	Considered int
	Created    int
	Failed     int
}

// PreviewEntry is one upcoming occurrence of a schedule.
type PreviewEntry struct {
	Date                time.Time
	DayName             string
	TimeWindowPrimary   string
	TimeWindowSecondary string
}

// ForceCancelResult reports the outcome of a force_cancel call.
type ForceCancelResult struct {
	Success bool
	Message string
}

// Supported force_cancel document types.
const (
	DocTypeMeeting               = "Meeting"
	DocTypeTask                  = "Task"
	DocTypeEngineeringAssignment = "Engineering Assignment"
	DocTypeEngineeringTask       = "Engineering Task"
)

// MeetingConflict is a pair of planned meetings that overlap on the same date.
type MeetingConflict struct {
	MeetingID      string
	WithMeetingID  string
	Date           time.Time
	Type           string
	Participant    string
	Venue          string
	PrimaryWindow  persistence.TimeWindow
	ConflictWindow persistence.TimeWindow
}

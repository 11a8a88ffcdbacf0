package persistence

import (
	"time"

	"github.com/example/erp-automation/internal/recurrence"
)

// Status values shared by the documents handled in this module.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusWorking    Status = "Working"
	StatusPlanned    Status = "Planned"
	StatusPending    Status = "Pending"
	StatusRequired   Status = "Required"
	StatusInProgress Status = "In Progress"
	StatusReady      Status = "Ready"
	StatusModify     Status = "Modification"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// LedgerStatus labels entries in a schedule's created-meetings log.
type LedgerStatus string

const (
	// LedgerCreated marks a meeting produced by a fired occurrence.
	LedgerCreated LedgerStatus = "Created"
	// LedgerTest marks a meeting produced on demand for verification.
	LedgerTest LedgerStatus = "Test"
)

// Schedule is a recurring meeting definition.
type Schedule struct {
	ID              string
	Name            string
	Frequency       recurrence.Frequency
	StartDate       time.Time
	EndDate         *time.Time
	NextRunDate     *time.Time
	LastRunDate     *time.Time
	IsEnabled       bool
	TemplateID      string
	TimeFrom        string
	TimeTo          string
	CreatedMeetings []CreatedMeeting
	TotalCreated    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreatedMeeting is one append-only ledger entry of a schedule.
type CreatedMeeting struct {
	MeetingID string
	Date      time.Time
	CreatedAt time.Time
	Status    LedgerStatus
}

// Participant identifies an attendee by employee or external contact.
type Participant struct {
	Employee string
	Contact  string
}

// Key returns the identity used to compare participants across meetings.
func (p Participant) Key() string {
	if p.Employee != "" {
		return "employee:" + p.Employee
	}
	if p.Contact != "" {
		return "contact:" + p.Contact
	}
	return ""
}

// AgendaItem is an ordered agenda line.
type AgendaItem struct {
	Item  string
	Owner string
}

// Template holds the static content copied into each generated meeting.
type Template struct {
	ID           string
	Subject      string
	Venue        string
	MeetingType  string
	Link         string
	Agenda       []AgendaItem
	Participants []Participant
}

// TimeWindow is a pair of local time-of-day strings ("HH:MM:SS").
type TimeWindow struct {
	From string
	To   string
}

// Meeting is a concrete meeting record.
type Meeting struct {
	ID              string
	ScheduleID      string
	Subject         string
	Venue           string
	MeetingType     string
	Link            string
	Date            time.Time
	Primary         TimeWindow
	Secondary       TimeWindow
	DurationSeconds int64
	Status          Status
	Agenda          []AgendaItem
	Participants    []Participant
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskType is the cadence of a recurring task.
type TaskType string

const (
	TaskHourly  TaskType = "Hourly"
	TaskDaily   TaskType = "Daily"
	TaskWeekly  TaskType = "Weekly"
	TaskMonthly TaskType = "Monthly"
)

// Task is a recurring to-do item reset by the rollover jobs.
type Task struct {
	ID        string
	Subject   string
	TaskType  TaskType
	Status    Status
	DueDate   time.Time
	UpdatedAt time.Time
}

// Sketch is the parent document of engineering requirements.
type Sketch struct {
	ID           string
	Title        string
	Requirements []RequirementRow
	UpdatedAt    time.Time
}

// RequirementRow is one engineering requirement line of a sketch.
type RequirementRow struct {
	ID          string
	Item        string
	Engineer    string
	Status      Status
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// Subtask is a delegated unit of work listed on an assignment.
type Subtask struct {
	Engineer        string
	TaskDescription string
	Status          Status
}

// Assignment hands one requirement item of a sketch to a senior engineer.
type Assignment struct {
	ID              string
	SketchID        string
	RequirementItem string
	SeniorEngineer  string
	Status          Status
	Description     string
	StartDate       *time.Time
	EndDate         *time.Time
	Subtasks        []Subtask
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EngineeringTask is the junior engineer's piece of an assignment.
type EngineeringTask struct {
	ID              string
	AssignmentID    string
	SketchID        string
	JuniorEngineer  string
	RequirementItem string
	Status          Status
	StartDate       *time.Time
	EndDate         *time.Time
	EstimatedHours  *float64
	ActualHours     *float64
	UpdatedAt       time.Time
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/recurrence"
)

const (
	// DefaultSecondaryOffset shifts the primary window into the secondary time zone.
	DefaultSecondaryOffset = time.Hour

	defaultPreviewCount = 5
	maxPreviewCount     = 52
)

var errNotDue = errors.New("application: schedule not due")

// MeetingScheduler materializes meetings from recurring schedules.
type MeetingScheduler struct {
	store       persistence.Store
	idGenerator func() string
	now         func() time.Time
	loc         *time.Location
	offset      time.Duration
	logger      *slog.Logger
}

// MeetingSchedulerOptions carries the optional collaborators of a MeetingScheduler.
type MeetingSchedulerOptions struct {
	IDGenerator     func() string
	Now             func() time.Time
	Location        *time.Location
	SecondaryOffset time.Duration
	Logger          *slog.Logger
}

// NewMeetingScheduler wires dependencies for schedule operations.
func NewMeetingScheduler(store persistence.Store, opts MeetingSchedulerOptions) *MeetingScheduler {
	if opts.IDGenerator == nil {
		opts.IDGenerator = func() string { return "" }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SecondaryOffset == 0 {
		opts.SecondaryOffset = DefaultSecondaryOffset
	}
	return &MeetingScheduler{
		store:       store,
		idGenerator: opts.IDGenerator,
		now:         opts.Now,
		loc:         opts.Location,
		offset:      opts.SecondaryOffset,
		logger:      defaultLogger(opts.Logger),
	}
}

// ShouldFire reports whether schedule has an occurrence due on today.
// today is a calendar date as produced by recurrence.Date.
func ShouldFire(schedule persistence.Schedule, today time.Time) bool {
	if !schedule.IsEnabled || schedule.NextRunDate == nil {
		return false
	}
	if schedule.NextRunDate.After(today) {
		return false
	}
	if schedule.EndDate != nil && today.After(*schedule.EndDate) {
		return false
	}
	return true
}

// BuildMeeting derives the meeting for the schedule's next occurrence. It
// touches neither the store nor the schedule.
func BuildMeeting(schedule persistence.Schedule, template persistence.Template, offset time.Duration, now time.Time) (persistence.Meeting, error) {
	if schedule.NextRunDate == nil {
		vErr := &ValidationError{}
		vErr.add("next_run_date", "schedule has no pending occurrence")
		return persistence.Meeting{}, vErr
	}
	meeting, err := buildMeetingOn(schedule, template, *schedule.NextRunDate, offset, now)
	if err != nil {
		return persistence.Meeting{}, err
	}
	meeting.Notes = "Created automatically from recurring schedule " + schedule.Name
	return meeting, nil
}

func buildMeetingOn(schedule persistence.Schedule, template persistence.Template, date time.Time, offset time.Duration, now time.Time) (persistence.Meeting, error) {
	from, to, vErr := parseWindow(schedule.TimeFrom, schedule.TimeTo)
	if vErr.HasErrors() {
		return persistence.Meeting{}, vErr
	}

	agenda := make([]persistence.AgendaItem, len(template.Agenda))
	copy(agenda, template.Agenda)
	participants := make([]persistence.Participant, len(template.Participants))
	copy(participants, template.Participants)

	return persistence.Meeting{
		ScheduleID:      schedule.ID,
		Subject:         template.Subject,
		Venue:           template.Venue,
		MeetingType:     template.MeetingType,
		Link:            template.Link,
		Date:            recurrence.Date(date, time.UTC),
		Primary:         persistence.TimeWindow{From: from.String(), To: to.String()},
		Secondary:       persistence.TimeWindow{From: from.Add(offset).String(), To: to.Add(offset).String()},
		DurationSeconds: to.Seconds() - from.Seconds(),
		Status:          persistence.StatusPlanned,
		Agenda:          agenda,
		Participants:    participants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func parseWindow(fromValue, toValue string) (recurrence.TimeOfDay, recurrence.TimeOfDay, *ValidationError) {
	vErr := &ValidationError{}
	from, err := recurrence.ParseTimeOfDay(fromValue)
	if err != nil {
		vErr.add("time_from", "must be a time of day formatted HH:MM[:SS]")
	}
	to, err := recurrence.ParseTimeOfDay(toValue)
	if err != nil {
		vErr.add("time_to", "must be a time of day formatted HH:MM[:SS]")
	}
	if !vErr.HasErrors() && to <= from {
		vErr.add("time_to", "must be after time_from")
	}
	return from, to, vErr
}

// CreateSchedule validates input and stores a new enabled schedule whose
// first occurrence is its start date.
func (s *MeetingScheduler) CreateSchedule(ctx context.Context, principal Principal, input ScheduleInput) (persistence.Schedule, error) {
	if s == nil {
		return persistence.Schedule{}, fmt.Errorf("MeetingScheduler is nil")
	}
	logger := serviceLogger(ctx, s.logger, "meeting_scheduler", "create_schedule", "principal_id", principal.UserID)
	if principal.UserID == "" {
		return persistence.Schedule{}, ErrUnauthorized
	}

	now := s.now()
	today := recurrence.Date(now, s.loc)
	vErr := &ValidationError{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "is required")
	}
	freq, err := recurrence.ParseFrequency(input.Frequency)
	if err != nil {
		vErr.add("frequency", "must be Daily, Weekly or Monthly")
	}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "is required")
	}
	start := recurrence.Date(input.StartDate, time.UTC)
	if !input.StartDate.IsZero() && start.Before(today) {
		vErr.add("start_date", "must not be in the past")
	}
	var end *time.Time
	if input.EndDate != nil {
		e := recurrence.Date(*input.EndDate, time.UTC)
		end = &e
		if !input.StartDate.IsZero() && e.Before(start) {
			vErr.add("end_date", "must be on or after start_date")
		}
	}
	from, to, windowErr := parseWindow(input.TimeFrom, input.TimeTo)
	vErr.merge(windowErr)

	templateID := strings.TrimSpace(input.TemplateID)
	if templateID == "" {
		vErr.add("template_id", "is required")
	} else if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.Error("template lookup failed", "error", err, "error_kind", ErrorKind(err))
			return persistence.Schedule{}, err
		}
		vErr.add("template_id", "template does not exist")
	}

	if vErr.HasErrors() {
		logger.Warn("schedule rejected", "error_kind", ErrorKind(vErr), "fields", vErr.Error())
		return persistence.Schedule{}, vErr
	}

	enabled := true
	if input.IsEnabled != nil {
		enabled = *input.IsEnabled
	}
	next := start
	schedule := persistence.Schedule{
		ID:          s.idGenerator(),
		Name:        name,
		Frequency:   freq,
		StartDate:   start,
		EndDate:     end,
		NextRunDate: &next,
		IsEnabled:   enabled,
		TemplateID:  templateID,
		TimeFrom:    from.String(),
		TimeTo:      to.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSchedule(ctx, schedule); err != nil {
		err = mapRepoError(err)
		logger.Error("schedule persistence failed", "error", err, "error_kind", ErrorKind(err))
		return persistence.Schedule{}, err
	}
	logger.Info("schedule created", "schedule_id", schedule.ID, "frequency", freq.String())
	return schedule, nil
}

// GetSchedule loads a schedule by ID.
func (s *MeetingScheduler) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return persistence.Schedule{}, mapRepoError(err)
	}
	return schedule, nil
}

// Materialize creates the meeting for the schedule's pending occurrence and
// advances the schedule in the same unit of work.
func (s *MeetingScheduler) Materialize(ctx context.Context, scheduleID string) (persistence.Meeting, error) {
	return s.materialize(ctx, scheduleID, time.Time{})
}

// materialize re-reads the schedule inside the transaction. A non-zero dueOn
// makes the occurrence conditional on ShouldFire(schedule, dueOn).
func (s *MeetingScheduler) materialize(ctx context.Context, scheduleID string, dueOn time.Time) (persistence.Meeting, error) {
	var created persistence.Meeting
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		schedule, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return mapRepoError(err)
		}
		if !dueOn.IsZero() && !ShouldFire(schedule, dueOn) {
			return errNotDue
		}
		template, err := tx.GetTemplate(ctx, schedule.TemplateID)
		if err != nil {
			return mapRepoError(err)
		}

		now := s.now()
		meeting, err := BuildMeeting(schedule, template, s.offset, now)
		if err != nil {
			return err
		}
		next, err := recurrence.NextDate(*schedule.NextRunDate, schedule.Frequency)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("frequency", err.Error())
			return vErr
		}

		meeting.ID = s.idGenerator()
		if err := tx.CreateMeeting(ctx, meeting); err != nil {
			return mapRepoError(err)
		}

		schedule.CreatedMeetings = append(schedule.CreatedMeetings, persistence.CreatedMeeting{
			MeetingID: meeting.ID,
			Date:      meeting.Date,
			CreatedAt: now,
			Status:    persistence.LedgerCreated,
		})
		schedule.TotalCreated++
		schedule.LastRunDate = &now
		schedule.NextRunDate = &next
		schedule.UpdatedAt = now
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return mapRepoError(err)
		}
		created = meeting
		return nil
	})
	if err != nil {
		return persistence.Meeting{}, err
	}
	return created, nil
}

// RunDue materializes every enabled schedule of freq that is due today.
// Failures are logged per schedule and do not stop the run; only a failing
// listing query is returned as an error.
func (s *MeetingScheduler) RunDue(ctx context.Context, freq recurrence.Frequency) (RunSummary, error) {
	logger := serviceLogger(ctx, s.logger, "meeting_scheduler", "run_due", "frequency", freq.String())
	schedules, err := s.store.ListSchedules(ctx, persistence.ScheduleFilter{Frequency: freq, EnabledOnly: true})
	if err != nil {
		logger.Error("listing schedules failed", "error", err, "error_kind", ErrorKind(err))
		return RunSummary{}, err
	}

	today := recurrence.Date(s.now(), s.loc)
	summary := RunSummary{Considered: len(schedules)}
	for _, schedule := range schedules {
		if !ShouldFire(schedule, today) {
			continue
		}
		meeting, err := s.materialize(ctx, schedule.ID, today)
		if errors.Is(err, errNotDue) {
			continue
		}
		if err != nil {
			summary.Failed++
			logger.Error("materialize failed", "schedule_id", schedule.ID, "error", err, "error_kind", ErrorKind(err))
			continue
		}
		summary.Created++
		logger.Info("meeting created", "schedule_id", schedule.ID, "meeting_id", meeting.ID, "date", meeting.Date.Format(time.DateOnly))
	}
	logger.Info("run complete", "considered", summary.Considered, "created", summary.Created, "failed", summary.Failed)
	return summary, nil
}

// CreateTestMeeting creates a meeting dated today without consuming the
// pending occurrence. The ledger records it with status Test.
func (s *MeetingScheduler) CreateTestMeeting(ctx context.Context, principal Principal, scheduleID string) (string, error) {
	logger := serviceLogger(ctx, s.logger, "meeting_scheduler", "create_test_meeting", "principal_id", principal.UserID, "schedule_id", scheduleID)
	if principal.UserID == "" {
		return "", ErrUnauthorized
	}

	var meetingID string
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		schedule, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return mapRepoError(err)
		}
		template, err := tx.GetTemplate(ctx, schedule.TemplateID)
		if err != nil {
			return mapRepoError(err)
		}

		now := s.now()
		meeting, err := buildMeetingOn(schedule, template, recurrence.Date(now, s.loc), s.offset, now)
		if err != nil {
			return err
		}
		meeting.ID = s.idGenerator()
		meeting.Notes = "Test meeting created from recurring schedule " + schedule.Name
		if err := tx.CreateMeeting(ctx, meeting); err != nil {
			return mapRepoError(err)
		}

		schedule.CreatedMeetings = append(schedule.CreatedMeetings, persistence.CreatedMeeting{
			MeetingID: meeting.ID,
			Date:      meeting.Date,
			CreatedAt: now,
			Status:    persistence.LedgerTest,
		})
		schedule.UpdatedAt = now
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return mapRepoError(err)
		}
		meetingID = meeting.ID
		return nil
	})
	if err != nil {
		logger.Error("test meeting failed", "error", err, "error_kind", ErrorKind(err))
		return "", err
	}
	logger.Info("test meeting created", "meeting_id", meetingID)
	return meetingID, nil
}

// PreviewNextMeetings lists up to count upcoming occurrences starting at the
// pending one, stopping at the schedule's end date.
func (s *MeetingScheduler) PreviewNextMeetings(ctx context.Context, scheduleID string, count int) ([]PreviewEntry, error) {
	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return previewSchedule(schedule, count, s.offset)
}

func previewSchedule(schedule persistence.Schedule, count int, offset time.Duration) ([]PreviewEntry, error) {
	if count <= 0 {
		count = defaultPreviewCount
	}
	if count > maxPreviewCount {
		count = maxPreviewCount
	}
	from, to, vErr := parseWindow(schedule.TimeFrom, schedule.TimeTo)
	if vErr.HasErrors() {
		return nil, vErr
	}
	primary := from.String() + " - " + to.String()
	secondary := from.Add(offset).String() + " - " + to.Add(offset).String()

	current := schedule.StartDate
	if schedule.NextRunDate != nil {
		current = *schedule.NextRunDate
	}
	current = recurrence.Date(current, time.UTC)

	entries := make([]PreviewEntry, 0, count)
	for len(entries) < count {
		if schedule.EndDate != nil && current.After(*schedule.EndDate) {
			break
		}
		entries = append(entries, PreviewEntry{
			Date:                current,
			DayName:             current.Weekday().String(),
			TimeWindowPrimary:   primary,
			TimeWindowSecondary: secondary,
		})
		next, err := recurrence.NextDate(current, schedule.Frequency)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("frequency", err.Error())
			return nil, vErr
		}
		current = next
	}
	return entries, nil
}

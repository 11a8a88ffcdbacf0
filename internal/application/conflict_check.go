package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/recurrence"
	"github.com/example/erp-automation/internal/scheduler"
)

// ConflictChecker reports planned meetings that double-book a participant or
// a venue. It never modifies meetings.
type ConflictChecker struct {
	meetings persistence.MeetingRepository
	loc      *time.Location
	logger   *slog.Logger
}

// NewConflictChecker wires the checker. Meeting windows are interpreted in loc.
func NewConflictChecker(meetings persistence.MeetingRepository, loc *time.Location, logger *slog.Logger) *ConflictChecker {
	if loc == nil {
		loc = time.UTC
	}
	return &ConflictChecker{meetings: meetings, loc: loc, logger: defaultLogger(logger)}
}

// Run scans every Planned meeting and returns the conflicts found.
func (c *ConflictChecker) Run(ctx context.Context) ([]MeetingConflict, error) {
	logger := serviceLogger(ctx, c.logger, "conflict_checker", "run")
	meetings, err := c.meetings.ListMeetings(ctx, persistence.MeetingFilter{Status: persistence.StatusPlanned})
	if err != nil {
		logger.Error("listing meetings failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	byID := make(map[string]persistence.Meeting, len(meetings))
	slots := make([]scheduler.Slot, 0, len(meetings))
	for _, m := range meetings {
		slot, ok := c.slotFor(m)
		if !ok {
			logger.Warn("meeting has an invalid window", "meeting_id", m.ID)
			continue
		}
		byID[m.ID] = m
		slots = append(slots, slot)
	}

	var conflicts []MeetingConflict
	for _, pair := range scheduler.FindAll(slots) {
		a, b := byID[pair.MeetingID], byID[pair.WithMeetingID]
		conflict := MeetingConflict{
			MeetingID:      a.ID,
			WithMeetingID:  b.ID,
			Date:           a.Date,
			Type:           string(pair.Type),
			Participant:    pair.Participant,
			Venue:          pair.Venue,
			PrimaryWindow:  a.Primary,
			ConflictWindow: b.Primary,
		}
		logger.Warn("meeting conflict",
			"meeting_id", conflict.MeetingID,
			"with_meeting_id", conflict.WithMeetingID,
			"type", conflict.Type,
			"participant", conflict.Participant,
			"venue", conflict.Venue,
			"date", conflict.Date.Format(time.DateOnly),
		)
		conflicts = append(conflicts, conflict)
	}
	logger.Info("conflict check complete", "meetings", len(slots), "conflicts", len(conflicts))
	return conflicts, nil
}

func (c *ConflictChecker) slotFor(m persistence.Meeting) (scheduler.Slot, bool) {
	from, err := recurrence.ParseTimeOfDay(m.Primary.From)
	if err != nil {
		return scheduler.Slot{}, false
	}
	to, err := recurrence.ParseTimeOfDay(m.Primary.To)
	if err != nil || to <= from {
		return scheduler.Slot{}, false
	}

	participants := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		if key := p.Key(); key != "" {
			participants = append(participants, key)
		}
	}
	return scheduler.Slot{
		MeetingID:    m.ID,
		Participants: participants,
		Venue:        m.Venue,
		Start:        from.On(m.Date, c.loc),
		End:          to.On(m.Date, c.loc),
	}, true
}

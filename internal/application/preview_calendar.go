package application

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"

	"github.com/example/erp-automation/internal/persistence"
)

const calendarProductID = "-//erp-automation//meeting-preview//EN"

// WritePreviewCalendar renders the schedule's upcoming occurrences as an
// iCalendar feed. Event times are the primary window in the scheduler's zone.
func (s *MeetingScheduler) WritePreviewCalendar(ctx context.Context, w io.Writer, scheduleID string, count int) error {
	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return mapRepoError(err)
	}
	template, err := s.store.GetTemplate(ctx, schedule.TemplateID)
	if err != nil {
		return mapRepoError(err)
	}
	entries, err := previewSchedule(schedule, count, s.offset)
	if err != nil {
		return err
	}

	cal, err := buildPreviewCalendar(schedule, template, entries, s)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func buildPreviewCalendar(schedule persistence.Schedule, template persistence.Template, entries []PreviewEntry, s *MeetingScheduler) (*ical.Calendar, error) {
	from, to, vErr := parseWindow(schedule.TimeFrom, schedule.TimeTo)
	if vErr.HasErrors() {
		return nil, vErr
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductID)

	stamp := s.now().UTC()
	for _, entry := range entries {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@erp-automation", schedule.ID, entry.Date.Format("20060102")))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, from.On(entry.Date, s.loc).UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, to.On(entry.Date, s.loc).UTC())
		event.Props.SetText(ical.PropSummary, template.Subject)
		if template.Venue != "" {
			event.Props.SetText(ical.PropLocation, template.Venue)
		}
		event.Props.SetText(ical.PropDescription, previewDescription(schedule, template, entry))
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

func previewDescription(schedule persistence.Schedule, template persistence.Template, entry PreviewEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s occurrence of %s (%s)\n", schedule.Frequency, schedule.Name, entry.DayName)
	fmt.Fprintf(&b, "Secondary window: %s\n", entry.TimeWindowSecondary)
	for i, item := range template.Agenda {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Item)
		if item.Owner != "" {
			fmt.Fprintf(&b, " (%s)", item.Owner)
		}
		b.WriteString("\n")
	}
	if template.Link != "" {
		b.WriteString(template.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

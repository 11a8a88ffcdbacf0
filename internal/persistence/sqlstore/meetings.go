package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/erp-automation/internal/persistence"
)

const meetingColumns = `id, schedule_id, subject, venue, meeting_type, link, meeting_date,
	primary_from, primary_to, secondary_from, secondary_to, duration_seconds, status,
	agenda, participants, notes, created_at, updated_at`

// CreateMeeting inserts a meeting record.
func (s *Store) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}
	agenda, participants, err := encodeMeetingChildren(meeting)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meeting.ID,
		nullString(meeting.ScheduleID),
		meeting.Subject,
		meeting.Venue,
		meeting.MeetingType,
		meeting.Link,
		formatTime(meeting.Date),
		meeting.Primary.From,
		meeting.Primary.To,
		meeting.Secondary.From,
		meeting.Secondary.To,
		meeting.DurationSeconds,
		string(meeting.Status),
		agenda,
		participants,
		meeting.Notes,
		formatTime(meeting.CreatedAt),
		formatTime(meeting.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert meeting %s: %w", meeting.ID, err)
	}
	return nil
}

// GetMeeting loads a meeting record.
func (s *Store) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	return scanMeeting(s.queryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
}

// UpdateMeeting replaces the mutable columns of a meeting.
func (s *Store) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	agenda, participants, err := encodeMeetingChildren(meeting)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE meetings SET
			schedule_id = ?, subject = ?, venue = ?, meeting_type = ?, link = ?, meeting_date = ?,
			primary_from = ?, primary_to = ?, secondary_from = ?, secondary_to = ?, duration_seconds = ?,
			status = ?, agenda = ?, participants = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		nullString(meeting.ScheduleID),
		meeting.Subject,
		meeting.Venue,
		meeting.MeetingType,
		meeting.Link,
		formatTime(meeting.Date),
		meeting.Primary.From,
		meeting.Primary.To,
		meeting.Secondary.From,
		meeting.Secondary.To,
		meeting.DurationSeconds,
		string(meeting.Status),
		agenda,
		participants,
		meeting.Notes,
		formatTime(meeting.UpdatedAt),
		meeting.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update meeting %s: %w", meeting.ID, err)
	}
	return expectOne(res)
}

// ListMeetings returns meetings ordered by date then primary start.
func (s *Store) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ScheduleID != "" {
		clauses = append(clauses, "schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY meeting_date, primary_from, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list meetings: %w", err)
	}
	defer rows.Close()

	meetings := make([]persistence.Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	return meetings, mapError(rows.Err())
}

func encodeMeetingChildren(meeting persistence.Meeting) (string, string, error) {
	agenda, err := encodeJSON(meeting.Agenda)
	if err != nil {
		return "", "", err
	}
	participants, err := encodeJSON(meeting.Participants)
	if err != nil {
		return "", "", err
	}
	return agenda, participants, nil
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var (
		meeting                        persistence.Meeting
		scheduleID                     sql.NullString
		date, status, created, updated string
		agenda, participants           string
	)
	err := row.Scan(
		&meeting.ID, &scheduleID, &meeting.Subject, &meeting.Venue, &meeting.MeetingType, &meeting.Link, &date,
		&meeting.Primary.From, &meeting.Primary.To, &meeting.Secondary.From, &meeting.Secondary.To,
		&meeting.DurationSeconds, &status, &agenda, &participants, &meeting.Notes, &created, &updated,
	)
	if err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	meeting.ScheduleID = scheduleID.String
	meeting.Status = persistence.Status(status)
	if meeting.Date, err = parseTime(date); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Meeting{}, err
	}
	if err := decodeJSON(agenda, &meeting.Agenda); err != nil {
		return persistence.Meeting{}, err
	}
	if err := decodeJSON(participants, &meeting.Participants); err != nil {
		return persistence.Meeting{}, err
	}
	return meeting, nil
}

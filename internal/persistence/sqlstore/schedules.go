package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/recurrence"
)

const scheduleColumns = `id, name, frequency, start_date, end_date, next_run_date, last_run_date,
	is_enabled, template_id, time_from, time_to, total_created, created_at, updated_at`

// CreateSchedule inserts a schedule together with its ledger.
func (s *Store) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.inTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx, `INSERT INTO schedules (`+scheduleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			schedule.ID,
			schedule.Name,
			schedule.Frequency.String(),
			formatTime(schedule.StartDate),
			nullTime(schedule.EndDate),
			nullTime(schedule.NextRunDate),
			nullTime(schedule.LastRunDate),
			boolInt(schedule.IsEnabled),
			schedule.TemplateID,
			schedule.TimeFrom,
			schedule.TimeTo,
			schedule.TotalCreated,
			formatTime(schedule.CreatedAt),
			formatTime(schedule.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: insert schedule %s: %w", schedule.ID, err)
		}
		return tx.writeLedger(ctx, schedule.ID, schedule.CreatedMeetings)
	})
}

// GetSchedule loads a schedule and its ledger.
func (s *Store) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	row := s.queryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row)
	if err != nil {
		return persistence.Schedule{}, err
	}
	ledger, err := s.readLedger(ctx, id)
	if err != nil {
		return persistence.Schedule{}, err
	}
	schedule.CreatedMeetings = ledger
	return schedule, nil
}

// UpdateSchedule replaces the mutable columns and rewrites the ledger.
func (s *Store) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	return s.inTx(ctx, func(tx *Store) error {
		res, err := tx.exec(ctx, `UPDATE schedules SET
				name = ?, frequency = ?, start_date = ?, end_date = ?, next_run_date = ?, last_run_date = ?,
				is_enabled = ?, template_id = ?, time_from = ?, time_to = ?, total_created = ?, updated_at = ?
			WHERE id = ?`,
			schedule.Name,
			schedule.Frequency.String(),
			formatTime(schedule.StartDate),
			nullTime(schedule.EndDate),
			nullTime(schedule.NextRunDate),
			nullTime(schedule.LastRunDate),
			boolInt(schedule.IsEnabled),
			schedule.TemplateID,
			schedule.TimeFrom,
			schedule.TimeTo,
			schedule.TotalCreated,
			formatTime(schedule.UpdatedAt),
			schedule.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: update schedule %s: %w", schedule.ID, err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM schedule_ledger WHERE schedule_id = ?`, schedule.ID); err != nil {
			return fmt.Errorf("sqlstore: clear ledger %s: %w", schedule.ID, err)
		}
		return tx.writeLedger(ctx, schedule.ID, schedule.CreatedMeetings)
	})
}

// ListSchedules returns schedules ordered by name. Ledgers are loaded per row.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Frequency.Valid() {
		clauses = append(clauses, "frequency = ?")
		args = append(args, filter.Frequency.String())
	}
	if filter.EnabledOnly {
		clauses = append(clauses, "is_enabled = 1")
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list schedules: %w", err)
	}
	schedules := make([]persistence.Schedule, 0)
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError(err)
	}
	rows.Close()

	for i := range schedules {
		ledger, err := s.readLedger(ctx, schedules[i].ID)
		if err != nil {
			return nil, err
		}
		schedules[i].CreatedMeetings = ledger
	}
	return schedules, nil
}

func (s *Store) writeLedger(ctx context.Context, scheduleID string, entries []persistence.CreatedMeeting) error {
	for i, entry := range entries {
		_, err := s.exec(ctx, `INSERT INTO schedule_ledger (schedule_id, position, meeting_id, meeting_date, created_at, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			scheduleID, i, entry.MeetingID, formatTime(entry.Date), formatTime(entry.CreatedAt), string(entry.Status))
		if err != nil {
			return fmt.Errorf("sqlstore: insert ledger entry for %s: %w", scheduleID, err)
		}
	}
	return nil
}

func (s *Store) readLedger(ctx context.Context, scheduleID string) ([]persistence.CreatedMeeting, error) {
	rows, err := s.query(ctx, `SELECT meeting_id, meeting_date, created_at, status
		FROM schedule_ledger WHERE schedule_id = ? ORDER BY position`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read ledger %s: %w", scheduleID, err)
	}
	defer rows.Close()

	var entries []persistence.CreatedMeeting
	for rows.Next() {
		var (
			entry         persistence.CreatedMeeting
			date, created string
			status        string
		)
		if err := rows.Scan(&entry.MeetingID, &date, &created, &status); err != nil {
			return nil, mapError(err)
		}
		if entry.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entry.Status = persistence.LedgerStatus(status)
		entries = append(entries, entry)
	}
	return entries, mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (persistence.Schedule, error) {
	var (
		schedule                persistence.Schedule
		frequency               string
		start, created, updated string
		end, nextRun, lastRun   sql.NullString
		enabled                 int
	)
	err := row.Scan(
		&schedule.ID, &schedule.Name, &frequency, &start, &end, &nextRun, &lastRun,
		&enabled, &schedule.TemplateID, &schedule.TimeFrom, &schedule.TimeTo,
		&schedule.TotalCreated, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Schedule{}, persistence.ErrNotFound
		}
		return persistence.Schedule{}, mapError(err)
	}

	if schedule.Frequency, err = recurrence.ParseFrequency(frequency); err != nil {
		return persistence.Schedule{}, fmt.Errorf("sqlstore: schedule %s: %w", schedule.ID, err)
	}
	schedule.IsEnabled = enabled != 0
	if schedule.StartDate, err = parseTime(start); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.EndDate, err = parseNullTime(end); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.NextRunDate, err = parseNullTime(nextRun); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.LastRunDate, err = parseNullTime(lastRun); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Schedule{}, err
	}
	return schedule, nil
}

// CreateTemplate inserts a meeting template.
func (s *Store) CreateTemplate(ctx context.Context, template persistence.Template) error {
	if template.ID == "" {
		return persistence.ErrConstraintViolation
	}
	agenda, err := encodeJSON(template.Agenda)
	if err != nil {
		return err
	}
	participants, err := encodeJSON(template.Participants)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO meeting_templates (id, subject, venue, meeting_type, link, agenda, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		template.ID, template.Subject, template.Venue, template.MeetingType, template.Link, agenda, participants)
	if err != nil {
		return fmt.Errorf("sqlstore: insert template %s: %w", template.ID, err)
	}
	return nil
}

// GetTemplate loads a meeting template.
func (s *Store) GetTemplate(ctx context.Context, id string) (persistence.Template, error) {
	var (
		template             persistence.Template
		agenda, participants string
	)
	err := s.queryRow(ctx, `SELECT id, subject, venue, meeting_type, link, agenda, participants
		FROM meeting_templates WHERE id = ?`, id).
		Scan(&template.ID, &template.Subject, &template.Venue, &template.MeetingType, &template.Link, &agenda, &participants)
	if err != nil {
		return persistence.Template{}, mapError(err)
	}
	if err := decodeJSON(agenda, &template.Agenda); err != nil {
		return persistence.Template{}, err
	}
	if err := decodeJSON(participants, &template.Participants); err != nil {
		return persistence.Template{}, err
	}
	return template, nil
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

type scheduleView struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Frequency       string  `json:"frequency"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date,omitempty"`
	NextRunDate     *string `json:"next_run_date,omitempty"`
	LastRunDate     *string `json:"last_run_date,omitempty"`
	IsEnabled       bool    `json:"is_enabled"`
	TemplateID      string  `json:"template_id"`
	TimeFrom        string  `json:"time_from"`
	TimeTo          string  `json:"time_to"`
	TotalCreated    int     `json:"total_meetings_created"`
	CreatedMeetings []struct {
		MeetingID string `json:"meeting_id"`
		Date      string `json:"meeting_date"`
		Status    string `json:"status"`
	} `json:"created_meetings"`
}

type previewRow struct {
	Date                string `json:"date"`
	DayName             string `json:"day_name"`
	TimeWindowPrimary   string `json:"time_window_primary"`
	TimeWindowSecondary string `json:"time_window_secondary"`
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring meeting schedules",
	}
	cmd.AddCommand(
		newScheduleGetCmd(opts),
		newScheduleCreateCmd(opts),
		newSchedulePreviewCmd(opts),
		newScheduleTestMeetingCmd(opts),
	)
	return cmd
}

func schedulePath(id string) string {
	return "/api/schedules/" + url.PathEscape(id)
}

func newScheduleGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <schedule-id>",
		Short: "Show a schedule and its meeting ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schedule scheduleView
			if err := opts.client().do(cmd.Context(), http.MethodGet, schedulePath(args[0]), nil, &schedule); err != nil {
				return err
			}
			return printSchedule(cmd.OutOrStdout(), opts, schedule)
		},
	}
}

func newScheduleCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		name, frequency, start, end string
		template, from, to          string
		disabled                    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurring meeting schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enabled := !disabled
			body := map[string]any{
				"name":        name,
				"frequency":   frequency,
				"start_date":  start,
				"template_id": template,
				"time_from":   from,
				"time_to":     to,
				"is_enabled":  enabled,
			}
			if end != "" {
				body["end_date"] = end
			}

			var schedule scheduleView
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/schedules", body, &schedule); err != nil {
				return err
			}
			return printSchedule(cmd.OutOrStdout(), opts, schedule)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "schedule name")
	cmd.Flags().StringVar(&frequency, "frequency", "Weekly", "Daily, Weekly or Monthly")
	cmd.Flags().StringVar(&start, "start", "", "first occurrence date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last allowed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&template, "template", "", "meeting template ID")
	cmd.Flags().StringVar(&from, "from", "", "start of the primary window (HH:MM:SS)")
	cmd.Flags().StringVar(&to, "to", "", "end of the primary window (HH:MM:SS)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the schedule disabled")
	return cmd
}

func printSchedule(w io.Writer, opts *rootOptions, s scheduleView) error {
	if opts.json {
		return printJSON(w, s)
	}
	next := "-"
	if s.NextRunDate != nil {
		next = *s.NextRunDate
	}
	renderTable(w, []string{"ID", "Name", "Frequency", "Window", "Next Run", "Enabled", "Created"}, [][]any{
		{s.ID, s.Name, s.Frequency, s.TimeFrom + " - " + s.TimeTo, next, s.IsEnabled, s.TotalCreated},
	})
	if len(s.CreatedMeetings) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(s.CreatedMeetings))
	for _, m := range s.CreatedMeetings {
		rows = append(rows, []any{m.Date, m.MeetingID, m.Status})
	}
	renderTable(w, []string{"Date", "Meeting", "Status"}, rows)
	return nil
}

func newSchedulePreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		count int
		ics   string
	)

	cmd := &cobra.Command{
		Use:   "preview <schedule-id>",
		Short: "Preview the next occurrences of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := "?count=" + strconv.Itoa(count)
			client := opts.client()

			if ics != "" {
				return writeCalendar(cmd, client, schedulePath(args[0])+"/preview.ics"+query, ics)
			}

			var entries []previewRow
			if err := client.do(cmd.Context(), http.MethodGet, schedulePath(args[0])+"/preview"+query, nil, &entries); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]any, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []any{e.Date, e.DayName, e.TimeWindowPrimary, e.TimeWindowSecondary})
			}
			renderTable(cmd.OutOrStdout(), []string{"Date", "Day", "Primary", "Secondary"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of occurrences")
	cmd.Flags().StringVar(&ics, "ics", "", "write an iCalendar feed to this file instead (- for stdout)")
	return cmd
}

func writeCalendar(cmd *cobra.Command, client *apiClient, path, target string) error {
	if target == "-" {
		return client.download(cmd.Context(), path, cmd.OutOrStdout())
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if err := client.download(cmd.Context(), path, f); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Calendar written to %s\n", target)
	return nil
}

func newScheduleTestMeetingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-meeting <schedule-id>",
		Short: "Create a meeting for the schedule's next occurrence without advancing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				MeetingID string `json:"meeting_id"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodPost, schedulePath(args[0])+"/test-meeting", nil, &out); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test meeting %s created\n", out.MeetingID)
			return nil
		},
	}
}

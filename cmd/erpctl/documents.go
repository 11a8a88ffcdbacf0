package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newForceCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force-cancel <doctype> <id>",
		Short: "Force-cancel a submitted document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			body := map[string]string{"doctype": args[0], "id": args[1]}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/force-cancel", body, &out); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			if !out.Success {
				return fmt.Errorf("%s %s was not cancelled", args[0], args[1])
			}
			return nil
		},
	}
}

type conflictRow struct {
	MeetingID      string `json:"meeting_id"`
	WithMeetingID  string `json:"conflicts_with"`
	Date           string `json:"date"`
	Type           string `json:"type"`
	Participant    string `json:"participant,omitempty"`
	Venue          string `json:"venue,omitempty"`
	PrimaryWindow  string `json:"primary_window"`
	ConflictWindow string `json:"conflict_window"`
}

func newConflictsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List overlapping planned meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var conflicts []conflictRow
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/meetings/conflicts", nil, &conflicts); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), conflicts)
			}
			if len(conflicts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conflicts")
				return nil
			}

			rows := make([][]any, 0, len(conflicts))
			for _, c := range conflicts {
				shared := c.Participant
				if c.Type == "venue" {
					shared = c.Venue
				}
				rows = append(rows, []any{c.Date, c.MeetingID, c.WithMeetingID, c.Type, shared, c.PrimaryWindow, c.ConflictWindow})
			}
			renderTable(cmd.OutOrStdout(), []string{"Date", "Meeting", "Conflicts With", "Type", "Shared", "Window", "Other Window"}, rows)
			return nil
		},
	}
}

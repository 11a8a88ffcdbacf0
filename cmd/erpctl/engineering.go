package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newSketchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sketch",
		Short: "Engineering sketch operations",
	}
	cmd.AddCommand(
		newSketchCountCmd(opts, "assignments <sketch-id>", "Create engineering assignments from requirement rows", "assignments", "Assignments created: %d\n"),
		newSketchCountCmd(opts, "refresh <sketch-id>", "Recompute requirement statuses from engineering tasks", "refresh-statuses", "Requirement rows updated: %d\n"),
	)
	return cmd
}

// newSketchCountCmd posts to /api/sketches/{id}/<action> and prints the
// count the API answers with.
func newSketchCountCmd(opts *rootOptions, use, short, action, format string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Created *int `json:"created,omitempty"`
				Updated *int `json:"updated,omitempty"`
			}
			path := "/api/sketches/" + url.PathEscape(args[0]) + "/" + action
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, &out); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), out)
			}
			n := 0
			switch {
			case out.Created != nil:
				n = *out.Created
			case out.Updated != nil:
				n = *out.Updated
			}
			fmt.Fprintf(cmd.OutOrStdout(), format, n)
			return nil
		},
	}
}

type engineeringTaskView struct {
	ID              string   `json:"id"`
	AssignmentID    string   `json:"assignment_id"`
	JuniorEngineer  string   `json:"junior_engineer"`
	RequirementItem string   `json:"requirement_item"`
	Status          string   `json:"status"`
	ActualHours     *float64 `json:"actual_hours,omitempty"`
}

func newTaskStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "task-status <task-id> <status>",
		Short: "Set an engineering task status and cascade it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task engineeringTaskView
			path := "/api/engineering-tasks/" + url.PathEscape(args[0]) + "/status"
			if err := opts.client().do(cmd.Context(), http.MethodPut, path, map[string]string{"status": args[1]}, &task); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), task)
			}
			hours := "-"
			if task.ActualHours != nil {
				hours = fmt.Sprintf("%.2f", *task.ActualHours)
			}
			renderTable(cmd.OutOrStdout(), []string{"Task", "Assignment", "Engineer", "Item", "Status", "Actual Hours"}, [][]any{
				{task.ID, task.AssignmentID, task.JuniorEngineer, task.RequirementItem, task.Status, hours},
			})
			return nil
		},
	}
}

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

type jobRunView struct {
	Job        string `json:"job"`
	Outcome    string `json:"outcome"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Scheduled job operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a scheduled job now",
		Long:  "Run a scheduled job now. Names: rollover-hourly, rollover-daily, rollover-weekly, rollover-monthly, meetings-daily, meetings-weekly, meetings-monthly, meeting-conflicts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var run jobRunView
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/jobs/"+url.PathEscape(args[0])+"/run", nil, &run); err != nil {
				return fmt.Errorf("run job %s: %w", args[0], err)
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), run)
			}
			renderTable(cmd.OutOrStdout(), []string{"Job", "Outcome", "Rows", "Duration"}, [][]any{
				{run.Job, run.Outcome, run.Rows, (time.Duration(run.DurationMS) * time.Millisecond).String()},
			})
			return nil
		},
	})
	return cmd
}

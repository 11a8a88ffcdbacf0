package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

// rootOptions are the flags shared by every API command.
type rootOptions struct {
	apiURL  string
	token   string
	apiKey  string
	json    bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "erpctl",
		Short:        "ERP automation CLI",
		Long:         "Command line interface for the ERP automation service: run jobs, preview schedules, cancel documents and manage credentials.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "url", envOr("ERPCTL_API_URL", defaultAPIURL), "base URL of the automation API")
	flags.StringVar(&opts.token, "token", os.Getenv("ERPCTL_TOKEN"), "bearer token")
	flags.StringVar(&opts.apiKey, "api-key", os.Getenv("ERPCTL_API_KEY"), "static API key, used when no token is given")
	flags.BoolVar(&opts.json, "json", false, "print raw JSON instead of tables")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newForceCancelCmd(opts),
		newConflictsCmd(opts),
		newScheduleCmd(opts),
		newSketchCmd(opts),
		newTaskStatusCmd(opts),
		newJobsCmd(opts),
		newHashKeyCmd(),
		newTokenCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

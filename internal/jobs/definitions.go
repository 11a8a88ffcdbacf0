package jobs

import (
	"context"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/metrics"
	"github.com/example/erp-automation/internal/recurrence"
)

// Job names.
const (
	RolloverHourly   = "rollover-hourly"
	RolloverDaily    = "rollover-daily"
	RolloverWeekly   = "rollover-weekly"
	RolloverMonthly  = "rollover-monthly"
	MeetingsDaily    = "meetings-daily"
	MeetingsWeekly   = "meetings-weekly"
	MeetingsMonthly  = "meetings-monthly"
	MeetingConflicts = "meeting-conflicts"
)

// DefaultSpecs holds the cron spec of every job. The meeting triggers run
// daily so an occurrence is materialized on its own date; each one only
// handles schedules of its frequency.
var DefaultSpecs = map[string]string{
	RolloverHourly:   "0 * * * *",
	RolloverDaily:    "0 0 * * *",
	RolloverWeekly:   "0 0 * * 1",
	RolloverMonthly:  "0 0 1 * *",
	MeetingsDaily:    "5 0 * * *",
	MeetingsWeekly:   "10 0 * * *",
	MeetingsMonthly:  "15 0 * * *",
	MeetingConflicts: "30 0 * * *",
}

// Services are the application entry points driven by the scheduled jobs.
type Services struct {
	Rollover  *application.TaskRollover
	Meetings  *application.MeetingScheduler
	Conflicts *application.ConflictChecker
}

// Definitions builds every job. specs overrides DefaultSpecs per name.
func Definitions(svc Services, specs map[string]string) []Job {
	spec := func(name string) string {
		if s, ok := specs[name]; ok && s != "" {
			return s
		}
		return DefaultSpecs[name]
	}
	meetings := func(freq recurrence.Frequency) Func {
		return func(ctx context.Context) (int, error) {
			summary, err := svc.Meetings.RunDue(ctx, freq)
			if err != nil {
				return 0, err
			}
			metrics.AddMeetingsCreated(freq.String(), summary.Created)
			return summary.Created, nil
		}
	}

	return []Job{
		{Name: RolloverHourly, Spec: spec(RolloverHourly), Run: svc.Rollover.RolloverHourly},
		{Name: RolloverDaily, Spec: spec(RolloverDaily), Run: svc.Rollover.RolloverDaily},
		{Name: RolloverWeekly, Spec: spec(RolloverWeekly), Run: svc.Rollover.RolloverWeekly},
		{Name: RolloverMonthly, Spec: spec(RolloverMonthly), Run: svc.Rollover.RolloverMonthly},
		{Name: MeetingsDaily, Spec: spec(MeetingsDaily), Run: meetings(recurrence.FrequencyDaily)},
		{Name: MeetingsWeekly, Spec: spec(MeetingsWeekly), Run: meetings(recurrence.FrequencyWeekly)},
		{Name: MeetingsMonthly, Spec: spec(MeetingsMonthly), Run: meetings(recurrence.FrequencyMonthly)},
		{Name: MeetingConflicts, Spec: spec(MeetingConflicts), Run: func(ctx context.Context) (int, error) {
			_, err := svc.Conflicts.Run(ctx)
			return 0, err
		}},
	}
}

// RegisterAll registers every job on r.
func RegisterAll(r *Runner, jobs []Job) error {
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return err
		}
	}
	return nil
}

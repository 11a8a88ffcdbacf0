package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/persistence/memory"
	"github.com/example/erp-automation/internal/recurrence"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_Register(t *testing.T) {
	t.Parallel()

	r := NewRunner(time.UTC, 0, quietLogger())
	noop := func(context.Context) (int, error) { return 0, nil }

	if err := r.Register(Job{Name: "a", Spec: "*/5 * * * *", Run: noop}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := r.Register(Job{Name: "a", Spec: "@daily", Run: noop}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if err := r.Register(Job{Name: "b", Spec: "every tuesday", Run: noop}); err == nil {
		t.Fatal("expected invalid spec to be rejected")
	}
	if err := r.Register(Job{Name: "c", Spec: "@daily"}); err == nil {
		t.Fatal("expected missing run func to be rejected")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "a" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestRunner_RunNowOutcomes(t *testing.T) {
	t.Parallel()

	r := NewRunner(time.UTC, time.Second, quietLogger())
	boom := errors.New("boom")
	jobs := []Job{
		{Name: "ok", Spec: "@daily", Run: func(context.Context) (int, error) { return 4, nil }},
		{Name: "fails", Spec: "@daily", Run: func(context.Context) (int, error) { return 1, boom }},
		{Name: "panics", Spec: "@daily", Run: func(context.Context) (int, error) { panic("bad row") }},
	}
	if err := RegisterAll(r, jobs); err != nil {
		t.Fatalf("RegisterAll returned error: %v", err)
	}

	tests := []struct {
		name    string
		outcome string
		rows    int
		err     error
	}{
		{name: "ok", outcome: OutcomeSuccess, rows: 4},
		{name: "fails", outcome: OutcomeError, rows: 1, err: boom},
		{name: "panics", outcome: OutcomePanic},
	}
	for _, tt := range tests {
		res, err := r.RunNow(context.Background(), tt.name)
		if err != nil {
			t.Fatalf("%s: RunNow returned error: %v", tt.name, err)
		}
		if res.Outcome != tt.outcome || res.Rows != tt.rows {
			t.Fatalf("%s: unexpected result %+v", tt.name, res)
		}
		if tt.err != nil && !errors.Is(res.Err, tt.err) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.err, res.Err)
		}
	}

	if _, err := r.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestRunner_RunNowSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	r := NewRunner(time.UTC, 0, quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	err := r.Register(Job{Name: "slow", Spec: "@daily", Run: func(context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	}})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.RunNow(context.Background(), "slow")
	}()
	<-started

	res, err := r.RunNow(context.Background(), "slow")
	if !errors.Is(err, ErrJobRunning) || res.Outcome != OutcomeSkipped {
		t.Fatalf("expected skipped run, got %+v, %v", res, err)
	}
	close(release)
	<-done
}

func TestRunner_StartStop(t *testing.T) {
	t.Parallel()

	r := NewRunner(time.UTC, 0, quietLogger())
	if err := r.Register(Job{Name: "noop", Spec: "@hourly", Run: func(context.Context) (int, error) { return 0, nil }}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	r.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

func TestDefinitions_MeetingsWeeklyMaterializesDueSchedules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	today := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	if err := store.CreateTemplate(ctx, persistence.Template{ID: "tmpl", Subject: "Sync"}); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if err := store.CreateSchedule(ctx, persistence.Schedule{
		ID:          "s-1",
		Name:        "Sync",
		Frequency:   recurrence.FrequencyWeekly,
		StartDate:   today,
		NextRunDate: &today,
		IsEnabled:   true,
		TemplateID:  "tmpl",
		TimeFrom:    "09:00:00",
		TimeTo:      "09:30:00",
	}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	now := func() time.Time { return today.Add(10 * time.Minute) }
	svc := Services{
		Rollover:  application.NewTaskRollover(store, now, time.UTC, quietLogger()),
		Meetings:  application.NewMeetingScheduler(store, application.MeetingSchedulerOptions{Now: now, Logger: quietLogger(), IDGenerator: func() string { return "m-1" }}),
		Conflicts: application.NewConflictChecker(store, time.UTC, quietLogger()),
	}
	defs := Definitions(svc, map[string]string{RolloverHourly: "@every 1h"})
	if len(defs) != len(DefaultSpecs) {
		t.Fatalf("expected %d jobs, got %d", len(DefaultSpecs), len(defs))
	}
	for _, def := range defs {
		if def.Name == RolloverHourly && def.Spec != "@every 1h" {
			t.Fatalf("override not applied: %q", def.Spec)
		}
		if def.Name == MeetingsDaily && def.Spec != DefaultSpecs[MeetingsDaily] {
			t.Fatalf("default not applied: %q", def.Spec)
		}
	}

	r := NewRunner(time.UTC, 0, quietLogger())
	if err := RegisterAll(r, defs); err != nil {
		t.Fatalf("RegisterAll returned error: %v", err)
	}
	res, err := r.RunNow(ctx, MeetingsWeekly)
	if err != nil {
		t.Fatalf("RunNow returned error: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.Rows != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := store.GetMeeting(ctx, "m-1"); err != nil {
		t.Fatalf("meeting not created: %v", err)
	}

	for _, name := range []string{RolloverHourly, RolloverDaily, RolloverWeekly, RolloverMonthly, MeetingConflicts} {
		if res, err := r.RunNow(ctx, name); err != nil || res.Outcome != OutcomeSuccess {
			t.Fatalf("%s: unexpected result %+v, %v", name, res, err)
		}
	}
}

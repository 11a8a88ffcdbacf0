package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/persistence/memory"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func testTemplate() persistence.Template {
	return persistence.Template{
		ID:          "tmpl-1",
		Subject:     "Weekly sync",
		Venue:       "Room A",
		MeetingType: "Internal",
		Link:        "https://meet.example.com/sync",
		Agenda: []persistence.AgendaItem{
			{Item: "Status", Owner: "alice"},
			{Item: "Risks"},
		},
		Participants: []persistence.Participant{
			{Employee: "EMP-1"},
			{Contact: "CON-9"},
		},
	}
}

func newSeededStore(t *testing.T) *memory.Storage {
	t.Helper()
	store := memory.New()
	if err := store.CreateTemplate(context.Background(), testTemplate()); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return store
}

func mustCreateSchedule(t *testing.T, store persistence.Store, schedule persistence.Schedule) {
	t.Helper()
	if err := store.CreateSchedule(context.Background(), schedule); err != nil {
		t.Fatalf("seed schedule %s: %v", schedule.ID, err)
	}
}

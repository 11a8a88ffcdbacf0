package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/persistence/memory"
	"github.com/example/erp-automation/internal/persistence/sqlstore"
)

// NewSQLiteStore opens a migrated SQL store on a temporary SQLite file. The
// store is closed when tb finishes.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, "sqlite", filepath.Join(tb.TempDir(), "erp.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *memory.Storage {
	return memory.New()
}

// Seed is a set of documents written into a store before a test runs.
type Seed struct {
	Templates        []persistence.Template
	Schedules        []persistence.Schedule
	Meetings         []persistence.Meeting
	Tasks            []persistence.Task
	Sketches         []persistence.Sketch
	Assignments      []persistence.Assignment
	EngineeringTasks []persistence.EngineeringTask
}

// Add appends an engineering set to the seed.
func (s *Seed) Add(set EngineeringSet) {
	s.Sketches = append(s.Sketches, set.Sketch)
	s.Assignments = append(s.Assignments, set.Assignment)
	s.EngineeringTasks = append(s.EngineeringTasks, set.Tasks...)
}

// Apply writes every seeded document in one transaction and fails tb on error.
func (s Seed) Apply(tb testing.TB, store persistence.Store) {
	tb.Helper()

	err := store.WithinTransaction(context.Background(), func(ctx context.Context, tx persistence.Repositories) error {
		for _, t := range s.Templates {
			if err := tx.CreateTemplate(ctx, t); err != nil {
				return err
			}
		}
		for _, sc := range s.Schedules {
			if err := tx.CreateSchedule(ctx, sc); err != nil {
				return err
			}
		}
		for _, m := range s.Meetings {
			if err := tx.CreateMeeting(ctx, m); err != nil {
				return err
			}
		}
		for _, t := range s.Tasks {
			if err := tx.CreateTask(ctx, t); err != nil {
				return err
			}
		}
		for _, sk := range s.Sketches {
			if err := tx.CreateSketch(ctx, sk); err != nil {
				return err
			}
		}
		for _, a := range s.Assignments {
			if err := tx.CreateAssignment(ctx, a); err != nil {
				return err
			}
		}
		for _, et := range s.EngineeringTasks {
			if err := tx.CreateEngineeringTask(ctx, et); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("failed to seed store: %v", err)
	}
}

package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/notify"
	"github.com/example/erp-automation/internal/persistence"
)

// ServiceFactory builds application services that share one deterministic
// clock, ID sequence and notifier.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	Notifier    *RecordingNotifier
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
		Notifier:    &RecordingNotifier{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	if factory.Notifier == nil {
		factory.Notifier = &RecordingNotifier{}
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the zone used for calendar dates.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

func (f *ServiceFactory) NewMeetingScheduler(store persistence.Store) *application.MeetingScheduler {
	return application.NewMeetingScheduler(store, application.MeetingSchedulerOptions{
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Location:    f.Location,
		Logger:      f.Logger,
	})
}

func (f *ServiceFactory) NewTaskRollover(tasks persistence.TaskRepository) *application.TaskRollover {
	return application.NewTaskRollover(tasks, f.Clock.NowFunc(), f.Location, f.Logger)
}

func (f *ServiceFactory) NewEngineeringCascade(store persistence.Store) *application.EngineeringCascade {
	return application.NewEngineeringCascade(store, f.Notifier, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

func (f *ServiceFactory) NewDocumentCanceller(store persistence.Store) *application.DocumentCanceller {
	return application.NewDocumentCanceller(store, f.Clock.NowFunc(), f.Logger)
}

func (f *ServiceFactory) NewConflictChecker(meetings persistence.MeetingRepository) *application.ConflictChecker {
	return application.NewConflictChecker(meetings, f.Location, f.Logger)
}

// RecordingNotifier keeps every message it is asked to send. Err, when set,
// is returned from Notify after the message is recorded.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	Err      error
}

// Notify records msg.
func (n *RecordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.Err
}

// Messages returns a copy of the recorded messages.
func (n *RecordingNotifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Message, len(n.messages))
	copy(out, n.messages)
	return out
}

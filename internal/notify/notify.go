// Package notify delivers best-effort notifications to engineers.
//
// Service queues messages and sends them from a small worker pool behind a
// token-bucket limiter. Callers never wait on delivery: Notify only fails
// when the message cannot be queued.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled  = errors.New("notify: disabled")
	ErrQueueFull = errors.New("notify: queue full")
	ErrStopped   = errors.New("notify: stopped")
)

// Message is a notification addressed to one recipient.
type Message struct {
	From      string
	To        string
	Subject   string
	Body      string
	DocType   string
	DocID     string
	CreatedAt time.Time
}

// Sender performs the actual delivery of a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Config controls the delivery pipeline.
type Config struct {
	Enabled     bool
	Workers     int
	QueueSize   int
	RatePerSec  int
	RetryMax    int
	RetryBase   time.Duration
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Service is an async notification pipeline. It is safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	sender    Sender
	log       *slog.Logger
	limiter   *rate.Limiter
	queue     chan Message
	accepting bool
	sendWG    sync.WaitGroup
	workerWG  sync.WaitGroup
	runCancel context.CancelFunc

	sentMu sync.Mutex
	sent   int
	failed int
}

// New builds a Service. Start must be called before Notify accepts messages.
func New(cfg Config, sender Sender, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		sender:  sender,
		log:     log.With("component", "notify"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil || !s.cfg.Enabled {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.queue = make(chan Message, s.cfg.QueueSize)
	s.accepting = true
	s.runCancel = cancel

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go func(worker int, q <-chan Message) {
			defer s.workerWG.Done()
			for msg := range q {
				s.deliver(runCtx, worker, msg)
			}
		}(i, s.queue)
	}
}

// Stop stops intake and drains queued messages until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.mu.Unlock()

	s.sendWG.Wait()
	close(q)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	cancel()

	s.mu.Lock()
	s.queue = nil
	s.runCancel = nil
	s.mu.Unlock()
}

// Notify queues msg for delivery.
func (s *Service) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	select {
	case q <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns the number of delivered and failed messages.
func (s *Service) Stats() (sent, failed int) {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	return s.sent, s.failed
}

// send calls the sender, turning a panic into an error for this message.
func (s *Service) send(ctx context.Context, worker int, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in notify sender", slog.Int("worker", worker), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("notify: sender panic: %v", r)
		}
	}()
	return s.sender.Send(ctx, msg)
}

func (s *Service) deliver(ctx context.Context, worker int, msg Message) {
	if s.sender == nil {
		return
	}
	attempts := 1 + s.cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err := s.send(callCtx, worker, msg)
		cancel()
		if err == nil {
			s.sentMu.Lock()
			s.sent++
			s.sentMu.Unlock()
			return
		}
		lastErr = err
		s.log.Debug("notify send failed", slog.Any("err", err), slog.Int("attempt", attempt), slog.Int("max", attempts))

		if attempt == attempts {
			break
		}
		t := time.NewTimer(s.cfg.RetryBase * time.Duration(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	s.sentMu.Lock()
	s.failed++
	s.sentMu.Unlock()
	s.log.Warn("notification dropped",
		slog.String("error_kind", "transient"),
		slog.String("to", msg.To),
		slog.String("doctype", msg.DocType),
		slog.String("docname", msg.DocID),
		slog.Any("err", lastErr),
	)
}

package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nalonix/better-auth/internal/auth/entity"
)

// Recorder persists one audit event. Implementations must tolerate
// redelivery; the consumer deduplicates by event ID on a best-effort
// basis only.
type Recorder interface {
	Record(ctx context.Context, event entity.AuditEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// AuditConsumer drains the bus and hands each event to the recorder,
// retrying transient failures with exponential backoff.
type AuditConsumer struct {
	bus         *Bus
	recorder    Recorder
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        sync.Map
	wg          sync.WaitGroup
}

func NewAuditConsumer(bus *Bus, recorder Recorder, cfg ConsumerConfig) *AuditConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &AuditConsumer{
		bus:         bus,
		recorder:    recorder,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

func (c *AuditConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

func (c *AuditConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *AuditConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *AuditConsumer) processEvent(event entity.AuditEvent) {
	if c.recorder == nil {
		return
	}

	if event.EventID != "" {
		if _, loaded := c.seen.LoadOrStore(event.EventID, struct{}{}); loaded {
			slog.Info("skip duplicate audit event", "event_id", event.EventID, "kind", event.Kind)
			return
		}
	}

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.recorder.Record(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to record audit event after retries", "event_id", event.EventID, "kind", event.Kind, "error", err)
			return
		}

		if !sleepBackoff(backoff) {
			return
		}
		backoff *= 2
	}
}

func sleepBackoff(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
	return true
}

// LogRecorder writes audit events to the service log. It is the default
// recorder when no external audit sink is configured.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, event entity.AuditEvent) error {
	if event.EventID == "" {
		return errors.New("missing event id")
	}

	slog.Info("audit event",
		"event_id", event.EventID,
		"kind", event.Kind,
		"user_id", event.UserID,
		"ip", event.IPAddress,
		"at", event.At,
	)
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/ridemediator/internal/ride/domain"
)

// DefaultSubject is used when NewPublisher gets an empty subject.
const DefaultSubject = "ride.events"

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_events_published_total",
		Help: "Ride events successfully written to NATS, by type.",
	}, []string{"type"})
	publishFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ride_events_publish_fail_total",
		Help: "Ride events dropped after exhausting publish retries.",
	})
)

type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher writes ride events to a NATS subject.
type Publisher struct {
	conn     natsPublisher
	subject  string
	logger   *zap.Logger
	retryMax int
	backoff  time.Duration
}

// NewPublisher builds a Publisher using the provided NATS connection. A nil
// connection yields a publisher that drops every event.
func NewPublisher(conn *nats.Conn, subject string, logger *zap.Logger) *Publisher {
	p := newPublisher(nil, subject, logger)
	if conn != nil {
		p.conn = conn
	}
	return p
}

func newPublisher(conn natsPublisher, subject string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, subject: subject, logger: logger, retryMax: 3, backoff: 50 * time.Millisecond}
}

// Publish satisfies domain.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.RideEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("x-event-type", string(event.Type))
	if id := traceIDFromContext(ctx); id != "" {
		msg.Header.Set("x-trace-id", id)
	}

	var attempt int
	for {
		attempt++
		err := p.conn.PublishMsg(msg)
		if err == nil {
			publishTotal.WithLabelValues(string(event.Type)).Inc()
			return nil
		}
		p.logger.Warn("publish failed", zap.Error(err), zap.Int("attempt", attempt), zap.String("type", string(event.Type)))
		if attempt >= p.retryMax {
			publishFailTotal.Inc()
			return fmt.Errorf("publish %s: %w", event.Type, err)
		}
		select {
		case <-time.After(time.Duration(attempt*attempt) * p.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.RideEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event domain.RideEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []domain.RideEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RideEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t domain.RideEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Fanout publishes each event to every publisher in order and returns the first error.
type Fanout []domain.EventPublisher

func (f Fanout) Publish(ctx context.Context, event domain.RideEvent) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

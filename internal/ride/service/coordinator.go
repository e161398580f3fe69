package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/ridemediator/internal/ride/domain"
	"github.com/example/ridemediator/internal/ride/matching"
	"github.com/example/ridemediator/internal/ride/queue"
	"github.com/example/ridemediator/internal/ride/repository"
)

// Config tunes candidate selection.
type Config struct {
	CandidateLimit int
	// Rank orders available drivers. Nil selects matching.RandomRanker(Seed).
	Rank matching.RankFunc
	Seed uint64
}

// Coordinator matches passengers to drivers and serialises confirmations per driver.
// It is safe for concurrent use.
type Coordinator struct {
	registry *repository.MemoryRegistry
	queues   queue.Store
	events   domain.EventPublisher
	clock    domain.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	cfg      Config

	mu       sync.Mutex
	lanes    map[uuid.UUID]*lane
	queuedAt map[uuid.UUID]uuid.UUID
	claims   map[uuid.UUID]*passengerClaim
}

// passengerClaim pins a passenger to the one driver its in-flight confirm calls target.
type passengerClaim struct {
	driverID uuid.UUID
	calls    int
}

// lane guards one driver's queue. deciding is the passenger whose offer is with
// the driver right now, uuid.Nil when none.
type lane struct {
	mu       sync.Mutex
	deciding uuid.UUID
}

var _ domain.Mediator = (*Coordinator)(nil)

// New constructs a Coordinator. Nil collaborators fall back to in-memory or no-op versions.
func New(queues queue.Store, events domain.EventPublisher, clock domain.Clock, logger *zap.Logger, cfg Config) *Coordinator {
	if queues == nil {
		queues = queue.NewMemoryStore()
	}
	if events == nil {
		events = nopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = matching.DefaultCandidateLimit
	}
	if cfg.Rank == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		cfg.Rank = matching.RandomRanker(seed)
	}
	return &Coordinator{
		registry: repository.NewMemoryRegistry(),
		queues:   queues,
		events:   events,
		clock:    clock,
		logger:   logger,
		tracer:   otel.Tracer("ride.coordinator"),
		cfg:      cfg,
		lanes:    make(map[uuid.UUID]*lane),
		queuedAt: make(map[uuid.UUID]uuid.UUID),
		claims:   make(map[uuid.UUID]*passengerClaim),
	}
}

// RegisterDriver adds d to the pool, failing with domain.ErrDuplicateEntity on a known ID or name.
func (c *Coordinator) RegisterDriver(d *domain.Driver) error {
	if err := c.registry.AddDriver(d); err != nil {
		return err
	}
	c.logger.Info("driver registered", zap.String("driver_id", d.ID.String()), zap.String("name", d.Name))
	return nil
}

// RegisterPassenger adds p, failing with domain.ErrDuplicateEntity on a known ID or name.
func (c *Coordinator) RegisterPassenger(p *domain.Passenger) error {
	if err := c.registry.AddPassenger(p); err != nil {
		return err
	}
	c.logger.Info("passenger registered", zap.String("passenger_id", p.ID.String()), zap.String("name", p.Name))
	return nil
}

// Driver returns a registered driver.
func (c *Coordinator) Driver(id uuid.UUID) (*domain.Driver, error) {
	return c.registry.Driver(id)
}

// Passenger returns a registered passenger.
func (c *Coordinator) Passenger(id uuid.UUID) (*domain.Passenger, error) {
	return c.registry.Passenger(id)
}

// RequestRide ranks the currently available drivers and offers the best few to the passenger.
func (c *Coordinator) RequestRide(ctx context.Context, passengerID uuid.UUID, location domain.Location) ([]domain.Candidate, error) {
	ctx, span := c.tracer.Start(ctx, "ride.request", trace.WithAttributes(
		attribute.String("passenger_id", passengerID.String()),
	))
	defer span.End()

	p, err := c.registry.Passenger(passengerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown passenger")
		return nil, err
	}

	var available []*domain.Driver
	for _, d := range c.registry.Drivers() {
		if d.Available() {
			available = append(available, d)
		}
	}
	ranked := matching.TopK(c.cfg.Rank(location, available), c.cfg.CandidateLimit)
	candidates := matching.Candidates(ranked)

	matching.ObserveCandidates(len(candidates))
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	c.logger.Debug("candidates offered",
		zap.String("passenger", p.Name),
		zap.String("location", string(location)),
		zap.Int("available", len(available)),
		zap.Int("offered", len(candidates)),
	)

	p.ShowOptions(candidates)
	c.publish(ctx, domain.RideEvent{
		Type:        domain.EventRideRequested,
		PassengerID: &p.ID,
		Location:    location,
		Candidates:  len(candidates),
	})
	return candidates, nil
}

// ConfirmRide offers passengerID to driverID. An unavailable driver yields
// OutcomeRejected with no state change. Otherwise the passenger joins the driver's
// queue once; only the head gets a decision, everyone else sees OutcomeQueued and
// must poll again. Concurrent calls for one passenger against different drivers
// fail with domain.ErrDecisionPending.
func (c *Coordinator) ConfirmRide(ctx context.Context, driverID, passengerID uuid.UUID) (domain.Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "ride.confirm", trace.WithAttributes(
		attribute.String("driver_id", driverID.String()),
		attribute.String("passenger_id", passengerID.String()),
	))
	defer span.End()

	outcome, err := c.confirm(ctx, driverID, passengerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return "", err
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	matching.ObserveOutcome(outcome)

	eventType := domain.EventRideRejected
	switch outcome {
	case domain.OutcomeConfirmed:
		eventType = domain.EventRideConfirmed
	case domain.OutcomeQueued:
		eventType = domain.EventRideQueued
	}
	c.publish(ctx, domain.RideEvent{
		Type:        eventType,
		DriverID:    &driverID,
		PassengerID: &passengerID,
		Outcome:     outcome,
	})
	return outcome, nil
}

func (c *Coordinator) confirm(ctx context.Context, driverID, passengerID uuid.UUID) (domain.Outcome, error) {
	d, err := c.registry.Driver(driverID)
	if err != nil {
		return "", err
	}
	p, err := c.registry.Passenger(passengerID)
	if err != nil {
		return "", err
	}
	if !d.Available() {
		c.logger.Info("driver not available", zap.String("driver", d.Name), zap.String("passenger", p.Name))
		return domain.OutcomeRejected, nil
	}
	if err := c.claim(passengerID, driverID); err != nil {
		return "", err
	}
	defer c.release(passengerID)

	if current, ok := p.AssignedDriver(); ok {
		return "", fmt.Errorf("%w: %s", domain.ErrAlreadyAssigned, current)
	}
	if err := c.leaveOtherQueue(ctx, driverID, passengerID); err != nil {
		return "", err
	}

	l := c.laneFor(driverID)
	l.mu.Lock()
	if !d.Available() {
		l.mu.Unlock()
		return domain.OutcomeRejected, nil
	}
	pos, err := c.queues.Enqueue(ctx, driverID, passengerID)
	if err != nil {
		l.mu.Unlock()
		return "", fmt.Errorf("enqueue: %w", err)
	}
	c.track(passengerID, driverID)
	if pos != 0 || l.deciding != uuid.Nil {
		head, _, err := c.queues.Head(ctx, driverID)
		l.mu.Unlock()
		if err != nil {
			c.logger.Warn("read queue head", zap.String("driver_id", driverID.String()), zap.Error(err))
		}
		c.logger.Info("passenger waiting for driver",
			zap.String("driver", d.Name),
			zap.String("passenger", p.Name),
			zap.Int("position", pos),
			zap.String("head", head.String()),
		)
		return domain.OutcomeQueued, nil
	}
	l.deciding = passengerID
	l.mu.Unlock()

	start := time.Now()
	accepted := d.DecideOnRide(ctx, passengerID)
	matching.ObserveDecision(accepted, time.Since(start))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.deciding = uuid.Nil
	head, ok, err := c.queues.PopHead(ctx, driverID)
	if err != nil {
		// The passenger keeps its place at the head and decides again on the next poll.
		if accepted {
			d.ReleaseAccept()
		}
		return "", fmt.Errorf("pop queue head: %w", err)
	}
	if !ok || head != passengerID {
		c.logger.Error("queue head changed during decision",
			zap.String("driver_id", driverID.String()),
			zap.String("expected", passengerID.String()),
			zap.String("got", head.String()),
		)
	}
	c.untrack(passengerID, driverID)

	if !accepted {
		c.logger.Info("driver declined ride", zap.String("driver", d.Name), zap.String("passenger", p.Name))
		return domain.OutcomeRejected, nil
	}
	if current, taken := p.AssignedDriver(); taken {
		d.ReleaseAccept()
		return "", fmt.Errorf("%w: %s", domain.ErrAlreadyAssigned, current)
	}
	d.AssignPassenger(passengerID)
	p.AssignDriver(driverID)
	c.logger.Info("ride confirmed", zap.String("driver", d.Name), zap.String("passenger", p.Name))
	return domain.OutcomeConfirmed, nil
}

// CompleteRide returns the driver to the pool and frees its passenger.
func (c *Coordinator) CompleteRide(ctx context.Context, driverID uuid.UUID) error {
	d, err := c.registry.Driver(driverID)
	if err != nil {
		return err
	}
	l := c.laneFor(driverID)
	l.mu.Lock()
	passengerID, had := d.CompleteRide()
	if had {
		if p, err := c.registry.Passenger(passengerID); err == nil {
			if assigned, ok := p.AssignedDriver(); ok && assigned == driverID {
				p.ClearDriver()
			}
		}
	}
	l.mu.Unlock()

	c.logger.Info("ride completed", zap.String("driver", d.Name), zap.Bool("had_passenger", had))
	event := domain.RideEvent{Type: domain.EventRideCompleted, DriverID: &driverID}
	if had {
		event.PassengerID = &passengerID
	}
	c.publish(ctx, event)
	return nil
}

// QueueLength reports how many passengers wait on driverID.
func (c *Coordinator) QueueLength(ctx context.Context, driverID uuid.UUID) (int, error) {
	if _, err := c.registry.Driver(driverID); err != nil {
		return 0, err
	}
	return c.queues.Len(ctx, driverID)
}

// leaveOtherQueue withdraws passengerID from any queue other than target's, keeping
// each passenger in at most one queue.
func (c *Coordinator) leaveOtherQueue(ctx context.Context, target, passengerID uuid.UUID) error {
	c.mu.Lock()
	prev, ok := c.queuedAt[passengerID]
	c.mu.Unlock()
	if !ok || prev == target {
		return nil
	}

	other := c.laneFor(prev)
	other.mu.Lock()
	defer other.mu.Unlock()
	if other.deciding == passengerID {
		return fmt.Errorf("%w: driver %s", domain.ErrDecisionPending, prev)
	}
	if err := c.queues.Remove(ctx, prev, passengerID); err != nil {
		return fmt.Errorf("withdraw from queue: %w", err)
	}
	c.untrack(passengerID, prev)
	c.logger.Debug("passenger switched driver",
		zap.String("passenger_id", passengerID.String()),
		zap.String("from", prev.String()),
		zap.String("to", target.String()),
	)
	return nil
}

// claim pins passengerID to driverID for the duration of one confirm call. Calls
// for the same pair stack; a call for another driver fails.
func (c *Coordinator) claim(passengerID, driverID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.claims[passengerID]; ok {
		if cl.driverID != driverID {
			return fmt.Errorf("%w: driver %s", domain.ErrDecisionPending, cl.driverID)
		}
		cl.calls++
		return nil
	}
	c.claims[passengerID] = &passengerClaim{driverID: driverID, calls: 1}
	return nil
}

func (c *Coordinator) release(passengerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.claims[passengerID]
	if !ok {
		return
	}
	cl.calls--
	if cl.calls <= 0 {
		delete(c.claims, passengerID)
	}
}

func (c *Coordinator) laneFor(driverID uuid.UUID) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lanes[driverID]
	if !ok {
		l = &lane{}
		c.lanes[driverID] = l
	}
	return l
}

func (c *Coordinator) track(passengerID, driverID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedAt[passengerID] = driverID
}

func (c *Coordinator) untrack(passengerID, driverID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queuedAt[passengerID] == driverID {
		delete(c.queuedAt, passengerID)
	}
}

func (c *Coordinator) publish(ctx context.Context, event domain.RideEvent) {
	event.At = c.clock.Now()
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("publish ride event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.RideEvent) error { return nil }

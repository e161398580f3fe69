package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicateEntity    = errors.New("entity already registered")
	ErrInvalidSelection   = errors.New("driver not in candidate set")
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyAssigned    = errors.New("passenger already has a driver")
	ErrSelectionAbandoned = errors.New("selection abandoned")
	ErrDecisionPending    = errors.New("driver decision pending for passenger")
)

// Location is an opaque pickup description. Nothing in the matching path interprets it.
type Location string

type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeQueued    Outcome = "QUEUED"
)

type DriverState string

const (
	DriverAvailable DriverState = "AVAILABLE"
	DriverDeciding  DriverState = "DECIDING"
	DriverAssigned  DriverState = "ASSIGNED"
)

// Candidate is the driver view offered to a passenger.
type Candidate struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DecisionFunc asks a driver whether to take the ride offered by passengerID.
// It must return synchronously.
type DecisionFunc func(ctx context.Context, driverID, passengerID uuid.UUID) bool

// DisplayFunc presents the ranked candidates to a passenger. The return is not consumed.
type DisplayFunc func(passengerID uuid.UUID, candidates []Candidate)

// ChooseFunc picks a driver name out of candidates. ok=false abandons the selection.
type ChooseFunc func(ctx context.Context, passengerID uuid.UUID, candidates []Candidate) (name string, ok bool)

// Mediator is the capability a passenger needs from the coordinator.
type Mediator interface {
	RequestRide(ctx context.Context, passengerID uuid.UUID, location Location) ([]Candidate, error)
	ConfirmRide(ctx context.Context, driverID, passengerID uuid.UUID) (Outcome, error)
}

type RideEventType string

const (
	EventRideRequested RideEventType = "RideRequested"
	EventRideConfirmed RideEventType = "RideConfirmed"
	EventRideRejected  RideEventType = "RideRejected"
	EventRideQueued    RideEventType = "RideQueued"
	EventRideCompleted RideEventType = "RideCompleted"
)

type RideEvent struct {
	Type        RideEventType `json:"type"`
	DriverID    *uuid.UUID    `json:"driver_id,omitempty"`
	PassengerID *uuid.UUID    `json:"passenger_id,omitempty"`
	Location    Location      `json:"location,omitempty"`
	Outcome     Outcome       `json:"outcome,omitempty"`
	Candidates  int           `json:"candidates,omitempty"`
	At          time.Time     `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event RideEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

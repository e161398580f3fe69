package domain

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Driver holds availability and the passenger currently being driven.
// The passenger is referenced by ID only; the driver never owns it.
type Driver struct {
	ID   uuid.UUID
	Name string

	decide DecisionFunc

	mu        sync.RWMutex
	available bool
	deciding  bool
	passenger *uuid.UUID
}

// NewDriver creates an available driver. A nil decide declines every offer.
func NewDriver(name string, decide DecisionFunc) *Driver {
	return &Driver{ID: uuid.New(), Name: name, decide: decide, available: true}
}

// Available reports whether the driver can take a new passenger.
func (d *Driver) Available() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.available
}

// CurrentPassenger returns the passenger being driven, if any.
func (d *Driver) CurrentPassenger() (uuid.UUID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.passenger == nil {
		return uuid.Nil, false
	}
	return *d.passenger, true
}

// State summarises availability and any decision in progress.
func (d *Driver) State() DriverState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case !d.available:
		return DriverAssigned
	case d.deciding:
		return DriverDeciding
	default:
		return DriverAvailable
	}
}

// Candidate returns the view offered to passengers.
func (d *Driver) Candidate() Candidate {
	return Candidate{ID: d.ID, Name: d.Name}
}

// DecideOnRide asks the decision hook about passengerID. It fails closed when the
// driver is already taken. On accept the driver stops being available before
// this call returns, so deciding and reserving happen together.
//
// The hook runs without the driver lock held; callers serialize decisions per driver.
func (d *Driver) DecideOnRide(ctx context.Context, passengerID uuid.UUID) bool {
	d.mu.Lock()
	if !d.available || d.deciding {
		d.mu.Unlock()
		return false
	}
	d.deciding = true
	d.mu.Unlock()

	accepted := d.decide != nil && d.decide(ctx, d.ID, passengerID)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.deciding = false
	if !accepted || !d.available {
		return false
	}
	d.available = false
	return true
}

// AssignPassenger records the passenger being driven. Only valid after an accept.
func (d *Driver) AssignPassenger(passengerID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := passengerID
	d.passenger = &id
	d.available = false
}

// ReleaseAccept returns an accepted driver to the pool when the ride could not be
// recorded. It does nothing once a passenger is assigned.
func (d *Driver) ReleaseAccept() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.passenger == nil {
		d.available = true
	}
}

// CompleteRide puts the driver back into the pool and returns the passenger that was dropped off.
func (d *Driver) CompleteRide() (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.passenger
	d.passenger = nil
	d.available = true
	if prev == nil {
		return uuid.Nil, false
	}
	return *prev, true
}

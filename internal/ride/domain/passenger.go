package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const maxInvalidSelections = 3

// Passenger requests rides through a Mediator and remembers the driver it was bound to.
type Passenger struct {
	ID   uuid.UUID
	Name string

	mediator Mediator
	display  DisplayFunc
	choose   ChooseFunc

	mu     sync.RWMutex
	driver *uuid.UUID
}

// NewPassenger wires a passenger to its mediator. display and choose may be nil.
func NewPassenger(name string, mediator Mediator, display DisplayFunc, choose ChooseFunc) *Passenger {
	return &Passenger{ID: uuid.New(), Name: name, mediator: mediator, display: display, choose: choose}
}

// AssignedDriver returns the driver bound to the passenger, if any.
func (p *Passenger) AssignedDriver() (uuid.UUID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.driver == nil {
		return uuid.Nil, false
	}
	return *p.driver, true
}

// AssignDriver binds the passenger to driverID.
func (p *Passenger) AssignDriver(driverID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := driverID
	p.driver = &id
}

// ClearDriver drops the binding after the ride ends.
func (p *Passenger) ClearDriver() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.driver = nil
}

// ShowOptions hands the candidate list to the display hook.
func (p *Passenger) ShowOptions(candidates []Candidate) {
	if p.display == nil {
		return
	}
	p.display(p.ID, append([]Candidate(nil), candidates...))
}

// RequestRide asks the mediator for candidates near location.
func (p *Passenger) RequestRide(ctx context.Context, location Location) ([]Candidate, error) {
	return p.mediator.RequestRide(ctx, p.ID, location)
}

// ChooseDriver confirms the candidate called name. A name outside candidates
// yields ErrInvalidSelection and no confirmation attempt.
func (p *Passenger) ChooseDriver(ctx context.Context, candidates []Candidate, name string) (Outcome, error) {
	selected, ok := findCandidate(candidates, name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSelection, name)
	}
	return p.mediator.ConfirmRide(ctx, selected.ID, p.ID)
}

// SelectRide runs the choice loop with the injected chooser. Invalid names are
// re-prompted a bounded number of times, rejected drivers are dropped from the
// offer and the passenger picks again. It reports true only on confirmation;
// a queued request returns false and is left for the caller to re-poll.
func (p *Passenger) SelectRide(ctx context.Context, candidates []Candidate) (bool, error) {
	if p.choose == nil {
		return false, ErrSelectionAbandoned
	}
	remaining := append([]Candidate(nil), candidates...)
	invalid := 0
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		name, ok := p.choose(ctx, p.ID, remaining)
		if !ok {
			return false, ErrSelectionAbandoned
		}
		outcome, err := p.ChooseDriver(ctx, remaining, name)
		if err != nil {
			if errors.Is(err, ErrInvalidSelection) {
				invalid++
				if invalid >= maxInvalidSelections {
					return false, err
				}
				continue
			}
			return false, err
		}
		switch outcome {
		case OutcomeConfirmed:
			return true, nil
		case OutcomeQueued:
			return false, nil
		default:
			remaining = dropCandidate(remaining, name)
		}
	}
	return false, nil
}

func findCandidate(candidates []Candidate, name string) (Candidate, bool) {
	for _, c := range candidates {
		if c.Name == name {
			return c, true
		}
	}
	return Candidate{}, false
}

func dropCandidate(candidates []Candidate, name string) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

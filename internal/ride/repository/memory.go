package repository

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/example/ridemediator/internal/ride/domain"
)

// MemoryRegistry holds every driver and passenger known to a coordinator.
// IDs and names are both unique per kind.
type MemoryRegistry struct {
	mu sync.RWMutex

	drivers       map[uuid.UUID]*domain.Driver
	driverOrder   []uuid.UUID
	driverNames   map[string]uuid.UUID
	passengers    map[uuid.UUID]*domain.Passenger
	passengerName map[string]uuid.UUID
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		drivers:       make(map[uuid.UUID]*domain.Driver),
		driverNames:   make(map[string]uuid.UUID),
		passengers:    make(map[uuid.UUID]*domain.Passenger),
		passengerName: make(map[string]uuid.UUID),
	}
}

// AddDriver registers d, failing with domain.ErrDuplicateEntity on a known ID or name.
func (m *MemoryRegistry) AddDriver(d *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[d.ID]; ok {
		return fmt.Errorf("%w: driver %s", domain.ErrDuplicateEntity, d.ID)
	}
	if _, ok := m.driverNames[d.Name]; ok {
		return fmt.Errorf("%w: driver %q", domain.ErrDuplicateEntity, d.Name)
	}
	m.drivers[d.ID] = d
	m.driverNames[d.Name] = d.ID
	m.driverOrder = append(m.driverOrder, d.ID)
	return nil
}

// AddPassenger registers p, failing with domain.ErrDuplicateEntity on a known ID or name.
func (m *MemoryRegistry) AddPassenger(p *domain.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passengers[p.ID]; ok {
		return fmt.Errorf("%w: passenger %s", domain.ErrDuplicateEntity, p.ID)
	}
	if _, ok := m.passengerName[p.Name]; ok {
		return fmt.Errorf("%w: passenger %q", domain.ErrDuplicateEntity, p.Name)
	}
	m.passengers[p.ID] = p
	m.passengerName[p.Name] = p.ID
	return nil
}

// Driver looks up a driver by ID, wrapping domain.ErrNotFound when unknown.
func (m *MemoryRegistry) Driver(id uuid.UUID) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: driver %s", domain.ErrNotFound, id)
	}
	return d, nil
}

// Passenger looks up a passenger by ID, wrapping domain.ErrNotFound when unknown.
func (m *MemoryRegistry) Passenger(id uuid.UUID) (*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, fmt.Errorf("%w: passenger %s", domain.ErrNotFound, id)
	}
	return p, nil
}

// Drivers returns all drivers in registration order.
func (m *MemoryRegistry) Drivers() []*domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Driver, 0, len(m.driverOrder))
	for _, id := range m.driverOrder {
		out = append(out, m.drivers[id])
	}
	return out
}

package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store keeps one FIFO of waiting passengers per driver. Enqueue is idempotent per
// passenger: a passenger already waiting keeps its place.
//
// Stores do not serialise a driver's decision; callers hold their own per-driver lock
// around a sequence of calls.
type Store interface {
	// Enqueue appends passenger unless present and returns its zero-based position.
	Enqueue(ctx context.Context, driverID, passengerID uuid.UUID) (int, error)
	Head(ctx context.Context, driverID uuid.UUID) (uuid.UUID, bool, error)
	PopHead(ctx context.Context, driverID uuid.UUID) (uuid.UUID, bool, error)
	Remove(ctx context.Context, driverID, passengerID uuid.UUID) error
	Len(ctx context.Context, driverID uuid.UUID) (int, error)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[uuid.UUID][]uuid.UUID
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[uuid.UUID][]uuid.UUID)}
}

func (m *MemoryStore) Enqueue(_ context.Context, driverID, passengerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	for i, id := range q {
		if id == passengerID {
			return i, nil
		}
	}
	m.queues[driverID] = append(q, passengerID)
	return len(q), nil
}

func (m *MemoryStore) Head(_ context.Context, driverID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	if len(q) == 0 {
		return uuid.Nil, false, nil
	}
	return q[0], true, nil
}

func (m *MemoryStore) PopHead(_ context.Context, driverID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	if len(q) == 0 {
		return uuid.Nil, false, nil
	}
	head := q[0]
	m.set(driverID, q[1:])
	return head, true, nil
}

func (m *MemoryStore) Remove(_ context.Context, driverID, passengerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	out := make([]uuid.UUID, 0, len(q))
	for _, id := range q {
		if id != passengerID {
			out = append(out, id)
		}
	}
	m.set(driverID, out)
	return nil
}

func (m *MemoryStore) Len(_ context.Context, driverID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[driverID]), nil
}

func (m *MemoryStore) set(driverID uuid.UUID, q []uuid.UUID) {
	if len(q) == 0 {
		delete(m.queues, driverID)
		return
	}
	m.queues[driverID] = q
}

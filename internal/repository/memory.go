package repository

import (
	"context"
	"sync"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. A single mutex spans both stores, so each ApplyEvent is
// atomic by construction and the creation race of the Postgres
// implementation cannot occur here.
type MemoryRepository struct {
	mu         sync.RWMutex
	events     []models.Event
	identities map[string]*models.Identity
	nextID     int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		identities: make(map[string]*models.Identity),
		nextID:     1,
	}
}

func (r *MemoryRepository) ApplyEvent(ctx context.Context, ev *models.Event) (ApplyOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = r.nextID
	r.nextID++
	ev.ReceivedAt = time.Now().UTC()
	r.events = append(r.events, *ev)

	failedInc := int64(0)
	if ev.IsFailure() {
		failedInc = 1
	}

	id, ok := r.identities[ev.ComputerName]
	if !ok {
		r.identities[ev.ComputerName] = &models.Identity{
			ComputerName:   ev.ComputerName,
			UserName:       ev.UserName,
			IPAddress:      ev.IPAddress,
			FirstSeen:      ev.Time,
			LastSeen:       ev.Time,
			TotalEvents:    1,
			FailedAttempts: failedInc,
			Status:         models.StatusActive,
		}
		return IdentityCreated, nil
	}

	id.UserName = ev.UserName
	id.IPAddress = ev.IPAddress
	id.LastSeen = ev.Time
	id.TotalEvents++
	id.FailedAttempts += failedInc
	return IdentityUpdated, nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []models.Event{}
	// Newest first by insertion order.
	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i]
		if filter.ComputerName != "" && ev.ComputerName != filter.ComputerName {
			continue
		}
		if filter.IPAddress != "" && ev.IPAddress != filter.IPAddress {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		if filter.Status != "" && ev.Status != filter.Status {
			continue
		}
		if filter.Start != nil && ev.Time.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && ev.Time.After(*filter.End) {
			continue
		}
		matched = append(matched, ev)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.Event{}, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepository) GetIdentity(ctx context.Context, computerName string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identities[computerName]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	cp := *id
	return &cp, nil
}

func (r *MemoryRepository) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Identity, 0, len(r.identities))
	for _, id := range r.identities {
		out = append(out, *id)
	}
	// Most recently seen first, matching the Postgres projection.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastSeen.After(out[i].LastSeen) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *MemoryRepository) SetIdentityStatus(ctx context.Context, computerName string, status models.IdentityStatus) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.identities[computerName]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	id.Status = status
	cp := *id
	return &cp, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryRepository) Close() {}

// EventCount reports the number of stored events; used by tests asserting
// atomicity.
func (r *MemoryRepository) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

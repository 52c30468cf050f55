package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

var (
	// ErrIdentityNotFound is returned when no summary exists for a computer name.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrUnavailable marks storage failures that are safe to retry: lost
	// connections, timed-out operations, an exhausted pool. Callers surface
	// these as retryable instead of blocking on reconnection.
	ErrUnavailable = errors.New("storage unavailable")
)

// ApplyOutcome tags what ApplyEvent did to the identity summary.
type ApplyOutcome int

const (
	// IdentityCreated means the event was the first for its computer name.
	IdentityCreated ApplyOutcome = iota
	// IdentityUpdated means an existing summary was incremented.
	IdentityUpdated
	// IdentityUpdatedAfterConflict means the summary did not exist on the
	// initial read but another writer created it first; the increment was
	// applied as an update after losing the creation race.
	IdentityUpdatedAfterConflict
)

func (o ApplyOutcome) String() string {
	switch o {
	case IdentityCreated:
		return "created"
	case IdentityUpdated:
		return "updated"
	case IdentityUpdatedAfterConflict:
		return "updated_after_conflict"
	default:
		return "unknown"
	}
}

// Repository persists events and their derived identity summaries.
//
// ApplyEvent is the atomic unit of ingestion: it appends the event and
// applies the corresponding summary mutation in one transaction. Either both
// become visible or neither does. On return the event's ID and ReceivedAt
// are populated from the store.
type Repository interface {
	ApplyEvent(ctx context.Context, ev *models.Event) (ApplyOutcome, error)

	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)

	GetIdentity(ctx context.Context, computerName string) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	SetIdentityStatus(ctx context.Context, computerName string, status models.IdentityStatus) (*models.Identity, error)

	Ping(ctx context.Context) error
	Close()
}

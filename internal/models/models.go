package models

import "time"

// IdentityStatus is the lifecycle flag on an identity summary. It is changed
// only through the status-management endpoint, never by the ingest path.
type IdentityStatus string

const (
	StatusActive    IdentityStatus = "active"
	StatusSuspended IdentityStatus = "suspended"
	StatusBlocked   IdentityStatus = "blocked"
)

// Valid reports whether s is one of the known lifecycle values.
func (s IdentityStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBlocked:
		return true
	}
	return false
}

// EventStatusFailure is the event status value that counts toward
// failed_attempts on the identity summary.
const EventStatusFailure = "failure"

// Event is a stored login/security event. Events are immutable once stored;
// ID and ReceivedAt are assigned by the store on append and define the
// insertion order used by all query projections.
type Event struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"event_id"`
	Time         time.Time `json:"time"`
	ComputerName string    `json:"computer_name"`
	UserName     string    `json:"user_name"`
	EventType    string    `json:"event_type"`
	IPAddress    string    `json:"ip_address"`
	Status       string    `json:"status"`
	ReceivedAt   time.Time `json:"received_at"`
}

// IsFailure reports whether the event counts as a failed attempt.
func (e *Event) IsFailure() bool {
	return e.Status == EventStatusFailure
}

// Identity is the denormalized per-computer rollup derived from the event
// stream. One row per computer_name; created lazily on the first event and
// never deleted by the ingest path.
type Identity struct {
	ComputerName   string         `json:"computer_name"`
	UserName       string         `json:"user_name"`
	IPAddress      string         `json:"ip_address"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	TotalEvents    int64          `json:"total_events"`
	FailedAttempts int64          `json:"failed_attempts"`
	Status         IdentityStatus `json:"status"`
}

// EventPayload is the wire form of an incoming event. Time is an RFC 3339
// timestamp supplied by the agent; it is treated as a logical field, not as
// the store's ordering key.
type EventPayload struct {
	EventID      string `json:"event_id"`
	Time         string `json:"time"`
	ComputerName string `json:"computer_name"`
	UserName     string `json:"user_name"`
	EventType    string `json:"event_type"`
	IPAddress    string `json:"ip_address"`
	Status       string `json:"status"`
}

// IngestRequest is the body of POST /api/events.
type IngestRequest struct {
	Events []EventPayload `json:"events"`
}

// IngestResponse reports how many events the engine durably stored.
type IngestResponse struct {
	Count int `json:"count"`
}

// StatusUpdateRequest is the body of PUT /api/identities/{name}/status.
type StatusUpdateRequest struct {
	Status IdentityStatus `json:"status"`
}

// EventFilter selects events for the query projections. String fields are
// ANDed when non-empty; Start/End bound the caller-supplied time field,
// inclusive on both ends.
type EventFilter struct {
	ComputerName string
	IPAddress    string
	EventType    string
	Status       string
	Start        *time.Time
	End          *time.Time
	Limit        int
	Offset       int
}

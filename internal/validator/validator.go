package validator

import (
	"fmt"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// Error describes a structurally invalid event payload. A single invalid
// event rejects the whole batch before anything is written.
type Error struct {
	Index  int
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid event at index %d: field %q %s", e.Index, e.Field, e.Reason)
}

// ValidateBatch checks every payload for required fields and a parseable
// timestamp, returning the decoded events in batch order. It writes nothing;
// the first invalid payload fails the call.
func ValidateBatch(batch []models.EventPayload) ([]models.Event, error) {
	events := make([]models.Event, 0, len(batch))
	for i, p := range batch {
		ev, err := validate(i, p)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func validate(index int, p models.EventPayload) (models.Event, error) {
	required := []struct {
		field string
		value string
	}{
		{"event_id", p.EventID},
		{"time", p.Time},
		{"computer_name", p.ComputerName},
		{"user_name", p.UserName},
		{"event_type", p.EventType},
		{"ip_address", p.IPAddress},
		{"status", p.Status},
	}
	for _, r := range required {
		if r.value == "" {
			return models.Event{}, &Error{Index: index, Field: r.field, Reason: "is required"}
		}
	}

	ts, err := time.Parse(time.RFC3339, p.Time)
	if err != nil {
		return models.Event{}, &Error{Index: index, Field: "time", Reason: "must be an RFC 3339 timestamp"}
	}

	return models.Event{
		EventID:      p.EventID,
		Time:         ts,
		ComputerName: p.ComputerName,
		UserName:     p.UserName,
		EventType:    p.EventType,
		IPAddress:    p.IPAddress,
		Status:       p.Status,
	}, nil
}

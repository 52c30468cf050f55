// Package dlq captures events that failed to store, so a batch rejected
// mid-way can be replayed instead of lost.
package dlq

import (
	"context"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// Failure reasons recorded on dead-lettered events.
const (
	ReasonStorageError = "storage_error"
	ReasonUnavailable  = "storage_unavailable"
)

// FailedEvent is the envelope written to the dead-letter queue.
type FailedEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Event     models.EventPayload `json:"event"`
	Error     string              `json:"error"`
	Reason    string              `json:"reason"`
}

// Writer records events that could not be stored.
type Writer interface {
	Write(ctx context.Context, ev models.EventPayload, err error, reason string) error
	Close()
}

// NopWriter discards dead-lettered events. Used when no queue is configured.
type NopWriter struct{}

func (NopWriter) Write(ctx context.Context, ev models.EventPayload, err error, reason string) error {
	return nil
}

func (NopWriter) Close() {}

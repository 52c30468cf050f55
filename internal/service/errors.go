package service

import (
	"errors"
	"fmt"

	"github.com/telhawk-systems/loginwatch/internal/repository"
)

// PartialBatchError reports a batch that failed after some events were
// already durably committed. Committed events stay committed; the caller is
// told exactly how far ingestion got so the remainder can be retried.
type PartialBatchError struct {
	// Committed is the number of events durably stored before the failure.
	Committed int
	// FailedIndex is the position in the submitted batch that failed.
	FailedIndex int
	// ComputerName identifies the event that failed.
	ComputerName string
	Err          error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch failed at index %d (computer %q) after %d events committed: %v",
		e.FailedIndex, e.ComputerName, e.Committed, e.Err)
}

func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the underlying failure was transient storage
// unavailability, in which case the caller may resubmit the uncommitted
// suffix of the batch.
func (e *PartialBatchError) Retryable() bool {
	return errors.Is(e.Err, repository.ErrUnavailable)
}

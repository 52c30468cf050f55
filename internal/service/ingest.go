package service

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/dlq"
	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/metrics"
	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/repository"
	"github.com/telhawk-systems/loginwatch/internal/validator"
)

// IngestService applies batches of login events to storage.
//
// A batch is validated up front and rejected whole if any payload is
// malformed; nothing is written in that case. Valid batches are applied one
// event at a time, each event an atomic append-plus-rollup unit. If an apply
// fails mid-batch the committed prefix stays committed, the failing event is
// dead-lettered, and the caller gets a PartialBatchError carrying the
// committed count.
type IngestService struct {
	repo   repository.Repository
	deadQ  dlq.Writer
	logger *logging.Logger
}

func NewIngestService(repo repository.Repository, deadQ dlq.Writer, logger *logging.Logger) *IngestService {
	if deadQ == nil {
		deadQ = dlq.NopWriter{}
	}
	return &IngestService{
		repo:   repo,
		deadQ:  deadQ,
		logger: logger,
	}
}

// Ingest validates and stores a batch, returning the number of events
// durably committed. On validation failure the count is zero and the error
// is a *validator.Error. On a mid-batch storage failure the error is a
// *PartialBatchError.
func (s *IngestService) Ingest(ctx context.Context, payloads []models.EventPayload) (int, error) {
	events, err := validator.ValidateBatch(payloads)
	if err != nil {
		metrics.ValidationFailures.Inc()
		return 0, err
	}

	for i := range events {
		ev := &events[i]

		start := time.Now()
		outcome, err := s.repo.ApplyEvent(ctx, ev)
		metrics.ApplyDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			retryable := errors.Is(err, repository.ErrUnavailable)
			s.recordFailure(ctx, payloads[i], err, retryable)
			return i, &PartialBatchError{
				Committed:    i,
				FailedIndex:  i,
				ComputerName: ev.ComputerName,
				Err:          err,
			}
		}

		metrics.EventsIngested.WithLabelValues(outcome.String()).Inc()
		if outcome == repository.IdentityUpdatedAfterConflict {
			s.logger.InfoContext(ctx, "identity creation race resolved",
				logging.Computer(ev.ComputerName),
				logging.EventID(ev.EventID))
		}
	}

	s.logger.InfoContext(ctx, "batch ingested", logging.Count(len(events)))
	return len(events), nil
}

func (s *IngestService) recordFailure(ctx context.Context, payload models.EventPayload, cause error, retryable bool) {
	label := "false"
	reason := dlq.ReasonStorageError
	if retryable {
		label = "true"
		reason = dlq.ReasonUnavailable
	}
	metrics.StorageErrors.WithLabelValues(label).Inc()
	metrics.PartialBatchFailures.Inc()

	s.logger.ErrorContext(ctx, "event apply failed",
		logging.Computer(payload.ComputerName),
		logging.EventID(payload.EventID),
		logging.Error(cause))

	if err := s.deadQ.Write(ctx, payload, cause, reason); err != nil {
		s.logger.ErrorContext(ctx, "dead-letter write failed", logging.Error(err))
	}
}

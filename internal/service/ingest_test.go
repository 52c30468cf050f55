package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/repository"
	"github.com/telhawk-systems/loginwatch/internal/validator"
)

// failAfterRepo delegates to an inner repository but fails every ApplyEvent
// once the call count reaches failAt.
type failAfterRepo struct {
	repository.Repository
	mu     sync.Mutex
	calls  int
	failAt int
	err    error
}

func (r *failAfterRepo) ApplyEvent(ctx context.Context, ev *models.Event) (repository.ApplyOutcome, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()
	if n >= r.failAt {
		return 0, r.err
	}
	return r.Repository.ApplyEvent(ctx, ev)
}

// captureDLQ records dead-lettered payloads in memory.
type captureDLQ struct {
	mu      sync.Mutex
	entries []models.EventPayload
	reasons []string
}

func (d *captureDLQ) Write(ctx context.Context, ev models.EventPayload, err error, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, ev)
	d.reasons = append(d.reasons, reason)
	return nil
}

func (d *captureDLQ) Close() {}

func payload(computer, user, status string, ts time.Time) models.EventPayload {
	return models.EventPayload{
		EventID:      "evt-" + computer,
		Time:         ts.Format(time.RFC3339),
		ComputerName: computer,
		UserName:     user,
		EventType:    "login",
		IPAddress:    "10.0.0.1",
		Status:       status,
	}
}

func testLogger() *logging.Logger {
	return logging.Default()
}

func TestIngest_StoresBatchAndRollsUp(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewIngestService(repo, nil, testLogger())
	ctx := context.Background()
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	count, err := svc.Ingest(ctx, []models.EventPayload{
		payload("PC1", "alice", "failure", t1),
		payload("PC1", "alice", "success", t1.Add(time.Hour)),
		payload("PC2", "bob", "success", t1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, repo.EventCount())

	id, err := repo.GetIdentity(ctx, "PC1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id.TotalEvents)
	assert.Equal(t, int64(1), id.FailedAttempts)
	assert.Equal(t, t1, id.FirstSeen)
	assert.Equal(t, t1.Add(time.Hour), id.LastSeen)
}

func TestIngest_ValidationRejectsWholeBatch(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewIngestService(repo, nil, testLogger())
	ctx := context.Background()
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	bad := payload("PC2", "bob", "success", t1)
	bad.IPAddress = ""

	count, err := svc.Ingest(ctx, []models.EventPayload{
		payload("PC1", "alice", "success", t1),
		bad,
	})
	require.Error(t, err)
	assert.Equal(t, 0, count)

	var verr *validator.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "ip_address", verr.Field)

	// Nothing may be written when validation fails, not even the valid prefix.
	assert.Equal(t, 0, repo.EventCount())
}

func TestIngest_PartialBatchFailure(t *testing.T) {
	inner := repository.NewMemoryRepository()
	boom := fmt.Errorf("apply: %w", repository.ErrUnavailable)
	repo := &failAfterRepo{Repository: inner, failAt: 3, err: boom}
	dq := &captureDLQ{}
	svc := NewIngestService(repo, dq, testLogger())
	ctx := context.Background()
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	batch := []models.EventPayload{
		payload("PC1", "alice", "success", t1),
		payload("PC2", "bob", "success", t1),
		payload("PC3", "carol", "success", t1),
		payload("PC4", "dave", "success", t1),
	}
	count, err := svc.Ingest(ctx, batch)
	require.Error(t, err)
	assert.Equal(t, 2, count)

	var perr *PartialBatchError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Committed)
	assert.Equal(t, 2, perr.FailedIndex)
	assert.Equal(t, "PC3", perr.ComputerName)
	assert.True(t, perr.Retryable())

	// The committed prefix stays committed.
	assert.Equal(t, 2, inner.EventCount())
	_, err = inner.GetIdentity(ctx, "PC1")
	assert.NoError(t, err)
	_, err = inner.GetIdentity(ctx, "PC3")
	assert.ErrorIs(t, err, repository.ErrIdentityNotFound)

	// The failing event was dead-lettered with the retryable reason.
	require.Len(t, dq.entries, 1)
	assert.Equal(t, "PC3", dq.entries[0].ComputerName)
	assert.Equal(t, "storage_unavailable", dq.reasons[0])
}

func TestIngest_NonRetryableFailure(t *testing.T) {
	inner := repository.NewMemoryRepository()
	repo := &failAfterRepo{Repository: inner, failAt: 1, err: errors.New("constraint violated")}
	dq := &captureDLQ{}
	svc := NewIngestService(repo, dq, testLogger())

	count, err := svc.Ingest(context.Background(), []models.EventPayload{
		payload("PC1", "alice", "success", time.Now().UTC()),
	})
	require.Error(t, err)
	assert.Equal(t, 0, count)

	var perr *PartialBatchError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Retryable())
	require.Len(t, dq.reasons, 1)
	assert.Equal(t, "storage_error", dq.reasons[0])
}

func TestIngest_EmptyBatch(t *testing.T) {
	svc := NewIngestService(repository.NewMemoryRepository(), nil, testLogger())
	count, err := svc.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIngest_ConcurrentBatchesSameIdentity(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewIngestService(repo, nil, testLogger())
	ctx := context.Background()
	const workers = 10
	const perBatch = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]models.EventPayload, perBatch)
			for i := range batch {
				ts := time.Date(2025, 6, 1, 9, w, i, 0, time.UTC)
				batch[i] = payload("PC-SHARED", "alice", "failure", ts)
			}
			_, err := svc.Ingest(ctx, batch)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	id, err := repo.GetIdentity(ctx, "PC-SHARED")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perBatch), id.TotalEvents)
	assert.Equal(t, int64(workers*perBatch), id.FailedAttempts)
	assert.Equal(t, workers*perBatch, repo.EventCount())

	ids, err := repo.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/notification"
	"github.com/telhawk-systems/loginwatch/internal/repository"
)

type captureChannel struct {
	mu      sync.Mutex
	reports []*notification.Report
}

func (c *captureChannel) Send(ctx context.Context, report *notification.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, report)
	return nil
}

func (c *captureChannel) Type() string { return "capture" }

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

func newEvent(t *testing.T, i int) *models.Event {
	t.Helper()
	return &models.Event{
		EventID:      "evt-sweep",
		Time:         time.Now().UTC().Add(-time.Duration(i) * time.Minute),
		ComputerName: "PC1",
		UserName:     "alice",
		EventType:    "login",
		IPAddress:    "10.0.0.1",
		Status:       models.EventStatusFailure,
	}
}

func seedFailures(t *testing.T, repo *repository.MemoryRepository, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ev := newEvent(t, i)
		_, err := repo.ApplyEvent(ctx, ev)
		require.NoError(t, err)
	}
}

func TestSweep_BelowThreshold(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seedFailures(t, repo, 2)
	ch := &captureChannel{}
	s := New(repo, ch, logging.Default(), Config{Threshold: 5, Lookback: time.Hour})

	s.Sweep(context.Background())
	assert.Equal(t, 0, ch.count())
}

func TestSweep_TriggersCriticalReport(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seedFailures(t, repo, 6)
	ch := &captureChannel{}
	s := New(repo, ch, logging.Default(), Config{Threshold: 5, Lookback: time.Hour})

	s.Sweep(context.Background())
	require.Equal(t, 1, ch.count())
	assert.Equal(t, notification.KindCriticalAlert, ch.reports[0].Kind)
}

func TestSweep_IgnoresOldFailures(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	// Failures older than the lookback window must not count.
	for i := 0; i < 6; i++ {
		ev := newEvent(t, i)
		ev.Time = time.Now().UTC().Add(-48 * time.Hour)
		_, err := repo.ApplyEvent(ctx, ev)
		require.NoError(t, err)
	}
	ch := &captureChannel{}
	s := New(repo, ch, logging.Default(), Config{Threshold: 5, Lookback: time.Hour})

	s.Sweep(ctx)
	assert.Equal(t, 0, ch.count())
}

func TestSchedulerLifecycle(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ch := &captureChannel{}
	s := New(repo, ch, logging.Default(), Config{Interval: 10 * time.Millisecond, Threshold: 1, Lookback: time.Hour})
	seedFailures(t, repo, 2)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "double start must fail")

	// Let at least one tick fire.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "double stop must fail")

	assert.Greater(t, ch.count(), 0)
}

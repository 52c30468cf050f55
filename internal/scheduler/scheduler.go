// Package scheduler runs the periodic failed-login sweep: it scans recent
// events for bursts of failures and delivers a critical report when the
// burst crosses the configured threshold.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/metrics"
	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/notification"
	"github.com/telhawk-systems/loginwatch/internal/repository"
)

// Config configures the failed-login sweep.
type Config struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// Lookback bounds how far back each sweep scans.
	Lookback time.Duration
	// Threshold is the minimum number of failures in the lookback window
	// that triggers a critical report.
	Threshold int
}

// Scheduler owns the sweep loop lifecycle.
type Scheduler struct {
	mu       sync.Mutex
	repo     repository.Repository
	channel  notification.Channel
	logger   *logging.Logger
	cfg      Config
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(repo repository.Repository, channel notification.Channel, logger *logging.Logger, cfg Config) *Scheduler {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 5
	}
	return &Scheduler{
		repo:    repo,
		channel: channel,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start begins the sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "failed-login sweep starting",
		"interval", s.cfg.Interval.String(),
		"threshold", s.cfg.Threshold)

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop gracefully stops the sweep loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one scan over the lookback window. Exported so an operator can
// trigger it on demand.
func (s *Scheduler) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SweepRuns.Inc()
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	since := time.Now().UTC().Add(-s.cfg.Lookback)
	failures, err := s.repo.ListEvents(ctx, models.EventFilter{
		Status: models.EventStatusFailure,
		Start:  &since,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep query failed", logging.Error(err))
		return
	}

	if len(failures) < s.cfg.Threshold {
		s.logger.DebugContext(ctx, "sweep below threshold", logging.Count(len(failures)))
		return
	}

	report, err := notification.CriticalSecurityAlert(failures)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep report render failed", logging.Error(err))
		return
	}
	if err := s.channel.Send(ctx, report); err != nil {
		s.logger.ErrorContext(ctx, "sweep report delivery failed", logging.Error(err))
		return
	}
	s.logger.InfoContext(ctx, "critical report delivered", logging.Count(len(failures)))
}

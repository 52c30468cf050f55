package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/telhawk-systems/loginwatch/internal/config"
	"github.com/telhawk-systems/loginwatch/internal/dlq"
	"github.com/telhawk-systems/loginwatch/internal/handlers"
	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/notification"
	"github.com/telhawk-systems/loginwatch/internal/ratelimit"
	"github.com/telhawk-systems/loginwatch/internal/repository"
	"github.com/telhawk-systems/loginwatch/internal/scheduler"
	"github.com/telhawk-systems/loginwatch/internal/server"
	"github.com/telhawk-systems/loginwatch/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	ctx := context.Background()

	repo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer repo.Close()

	var deadQ dlq.Writer = dlq.NopWriter{}
	if cfg.DLQ.Enabled {
		q, err := dlq.NewJetStreamQueue(ctx, cfg.DLQ.NatsURL)
		if err != nil {
			log.Fatalf("Failed to connect dead-letter queue: %v", err)
		}
		defer q.Close()
		deadQ = q
	}

	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.Redis.Enabled {
		limiter, err = ratelimit.NewRedisRateLimiter(cfg.Redis.URL, cfg.Redis.RateLimit, cfg.Redis.Window)
		if err != nil {
			log.Fatalf("Failed to connect rate limiter: %v", err)
		}
	}
	defer limiter.Close()

	reporter := buildReporter(cfg, logger)

	ingestSvc := service.NewIngestService(repo, deadQ, logger)
	querySvc := service.NewQueryService(repo)
	handler := handlers.New(ingestSvc, querySvc, repo, limiter, reporter, logger)

	if cfg.Sweep.Enabled {
		sweep := scheduler.New(repo, reporter, logger, scheduler.Config{
			Interval:  cfg.Sweep.Interval,
			Lookback:  cfg.Sweep.Lookback,
			Threshold: cfg.Sweep.Threshold,
		})
		if err := sweep.Start(ctx); err != nil {
			log.Fatalf("Failed to start sweep: %v", err)
		}
		defer sweep.Stop()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("loginwatch listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info("server stopped")
}

func buildRepository(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.Repository, error) {
	if cfg.Database.Backend == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	connString := cfg.Database.Postgres.ConnString()

	logger.Info("running database migrations")
	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, connString)
	if err != nil {
		return nil, fmt.Errorf("initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return repository.NewPostgresRepository(ctx, connString, cfg.Database.OpTimeout, cfg.Database.MaxConnectWait)
}

func buildReporter(cfg *config.Config, logger *logging.Logger) notification.Channel {
	var channels []notification.Channel
	if cfg.Notification.SMTP.Enabled {
		channels = append(channels, notification.NewEmailChannel(
			cfg.Notification.SMTP.Host,
			cfg.Notification.SMTP.Port,
			cfg.Notification.SMTP.Username,
			cfg.Notification.SMTP.Password,
			cfg.Notification.SMTP.From,
			cfg.Notification.SMTP.To,
		))
	}
	if cfg.Notification.Webhook != "" {
		channels = append(channels, notification.NewWebhookChannel(cfg.Notification.Webhook, 10*time.Second))
	}
	if len(channels) == 0 {
		return &notification.LogChannel{Logger: logger}
	}
	return &notification.Multi{Channels: channels}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// setupTestDatabase starts a PostgreSQL testcontainer and applies the
// migrations. Requires a Docker daemon; set LOGINWATCH_SKIP_DB_TESTS to
// skip locally.
func setupTestDatabase(t *testing.T) (*PostgresRepository, func()) {
	t.Helper()

	if os.Getenv("LOGINWATCH_SKIP_DB_TESTS") != "" {
		t.Skip("Skipping database integration tests (LOGINWATCH_SKIP_DB_TESTS set)")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("loginwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr, 10*time.Second, 30*time.Second)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create repository: %v", err)
	}

	cleanup := func() {
		repo.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
	return repo, cleanup
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func TestPostgresApplyEvent_Scenario(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	outcome, err := repo.ApplyEvent(ctx, newEvent("PC1", "alice", "10.0.0.1", "failure", t1))
	require.NoError(t, err)
	assert.Equal(t, IdentityCreated, outcome)

	outcome, err = repo.ApplyEvent(ctx, newEvent("PC1", "alice", "10.0.0.1", "success", t2))
	require.NoError(t, err)
	assert.Equal(t, IdentityUpdated, outcome)

	id, err := repo.GetIdentity(ctx, "PC1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id.TotalEvents)
	assert.Equal(t, int64(1), id.FailedAttempts)
	assert.True(t, id.FirstSeen.Equal(t1))
	assert.True(t, id.LastSeen.Equal(t2))

	events, err := repo.ListEvents(ctx, models.EventFilter{ComputerName: "PC1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotZero(t, events[0].ID)
	assert.False(t, events[0].ReceivedAt.IsZero())
	// Newest insertion first.
	assert.True(t, events[0].ID > events[1].ID)
}

func TestPostgresApplyEvent_ConcurrentCreation(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := time.Date(2025, 6, 1, 9, 0, i, 0, time.UTC)
			_, err := repo.ApplyEvent(ctx, newEvent("PC-RACE", "alice", "10.0.0.1", "success", ts))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	id, err := repo.GetIdentity(ctx, "PC-RACE")
	require.NoError(t, err)
	assert.Equal(t, int64(n), id.TotalEvents, "every concurrent apply must land on the single surviving record")

	events, err := repo.ListEvents(ctx, models.EventFilter{ComputerName: "PC-RACE"})
	require.NoError(t, err)
	assert.Len(t, events, n)
}

func TestPostgresTimeRange_Inclusive(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	times := []time.Time{start.Add(-time.Minute), start, start.Add(time.Hour), end, end.Add(time.Minute)}
	for i, ts := range times {
		_, err := repo.ApplyEvent(ctx, newEvent(fmt.Sprintf("PC%d", i), "alice", "10.0.0.1", "success", ts))
		require.NoError(t, err)
	}

	got, err := repo.ListEvents(ctx, models.EventFilter{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPostgresSetIdentityStatus(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.SetIdentityStatus(ctx, "ghost", models.StatusBlocked)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	_, err = repo.ApplyEvent(ctx, newEvent("PC1", "alice", "10.0.0.1", "success", time.Now().UTC()))
	require.NoError(t, err)

	id, err := repo.SetIdentityStatus(ctx, "PC1", models.StatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, id.Status)
}

func TestNewPostgresRepository_InvalidConnString(t *testing.T) {
	_, err := NewPostgresRepository(context.Background(), "invalid://connection", time.Second, time.Second)
	require.Error(t, err)
}

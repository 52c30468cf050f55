package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

const defaultOpTimeout = 10 * time.Second

// PostgresRepository implements Repository on a pgx connection pool. The
// pool is owned by the caller's lifecycle and injected into the services;
// every operation is bounded by the configured storage timeout so a stalled
// connection fails the call instead of hanging it.
type PostgresRepository struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
}

// NewPostgresRepository connects to PostgreSQL. The initial ping is retried
// with capped exponential backoff so the service survives the database
// coming up after it, but gives up once maxConnectWait elapses.
func NewPostgresRepository(ctx context.Context, connString string, opTimeout, maxConnectWait time.Duration) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	r := &PostgresRepository{pool: pool, opTimeout: opTimeout}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = maxConnectWait

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		return pool.Ping(pingCtx)
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return r, nil
}

func (r *PostgresRepository) Close() { r.pool.Close() }

// Ping reports whether the store is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// ApplyEvent appends ev and applies its identity summary mutation in a
// single transaction. The identity write follows insert-then-update: a
// unique insert is attempted when no summary exists, and a writer that
// loses the creation race falls back to a keyed update. Counter increments
// happen in SQL, so concurrent appliers never lose updates under read
// committed isolation.
func (r *PostgresRepository) ApplyEvent(ctx context.Context, ev *models.Event) (ApplyOutcome, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, classify("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO events (event_id, time, computer_name, user_name, event_type, ip_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, received_at`,
		ev.EventID, ev.Time, ev.ComputerName, ev.UserName, ev.EventType, ev.IPAddress, ev.Status,
	).Scan(&ev.ID, &ev.ReceivedAt)
	if err != nil {
		return 0, classify("insert event", err)
	}

	outcome, err := r.upsertIdentity(ctx, tx, ev)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify("commit", err)
	}
	return outcome, nil
}

func (r *PostgresRepository) upsertIdentity(ctx context.Context, tx pgx.Tx, ev *models.Event) (ApplyOutcome, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM identities WHERE computer_name = $1)`,
		ev.ComputerName,
	).Scan(&exists)
	if err != nil {
		return 0, classify("lookup identity", err)
	}

	failedInc := 0
	if ev.IsFailure() {
		failedInc = 1
	}

	if !exists {
		tag, err := tx.Exec(ctx, `
			INSERT INTO identities (computer_name, user_name, ip_address, first_seen, last_seen, total_events, failed_attempts, status)
			VALUES ($1, $2, $3, $4, $4, 1, $5, $6)
			ON CONFLICT (computer_name) DO NOTHING`,
			ev.ComputerName, ev.UserName, ev.IPAddress, ev.Time, failedInc, models.StatusActive,
		)
		if err != nil {
			return 0, classify("create identity", err)
		}
		if tag.RowsAffected() == 1 {
			return IdentityCreated, nil
		}
		// Lost the creation race to a concurrent writer; apply as an update.
		if err := r.updateIdentity(ctx, tx, ev, failedInc); err != nil {
			return 0, err
		}
		return IdentityUpdatedAfterConflict, nil
	}

	if err := r.updateIdentity(ctx, tx, ev, failedInc); err != nil {
		return 0, err
	}
	return IdentityUpdated, nil
}

func (r *PostgresRepository) updateIdentity(ctx context.Context, tx pgx.Tx, ev *models.Event, failedInc int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE identities
		SET user_name = $2,
		    ip_address = $3,
		    last_seen = $4,
		    total_events = total_events + 1,
		    failed_attempts = failed_attempts + $5
		WHERE computer_name = $1`,
		ev.ComputerName, ev.UserName, ev.IPAddress, ev.Time, failedInc,
	)
	if err != nil {
		return classify("update identity", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update identity %q: no row", ev.ComputerName)
	}
	return nil
}

// ListEvents returns events matching the filter, newest first by insertion
// order. All filter columns are indexed access paths.
func (r *PostgresRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := `SELECT id, event_id, time, computer_name, user_name, event_type, ip_address, status, received_at FROM events`
	conditions := []string{}
	args := []any{}
	argPos := 1

	if filter.ComputerName != "" {
		conditions = append(conditions, fmt.Sprintf("computer_name = $%d", argPos))
		args = append(args, filter.ComputerName)
		argPos++
	}
	if filter.IPAddress != "" {
		conditions = append(conditions, fmt.Sprintf("ip_address = $%d", argPos))
		args = append(args, filter.IPAddress)
		argPos++
	}
	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argPos))
		args = append(args, filter.EventType)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("time >= $%d", argPos))
		args = append(args, *filter.Start)
		argPos++
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("time <= $%d", argPos))
		args = append(args, *filter.End)
		argPos++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("query events", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(
			&ev.ID, &ev.EventID, &ev.Time, &ev.ComputerName, &ev.UserName,
			&ev.EventType, &ev.IPAddress, &ev.Status, &ev.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate events", err)
	}
	return events, nil
}

// GetIdentity returns the summary for a computer name.
func (r *PostgresRepository) GetIdentity(ctx context.Context, computerName string) (*models.Identity, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var id models.Identity
	err := r.pool.QueryRow(ctx, `
		SELECT computer_name, user_name, ip_address, first_seen, last_seen, total_events, failed_attempts, status
		FROM identities
		WHERE computer_name = $1`,
		computerName,
	).Scan(
		&id.ComputerName, &id.UserName, &id.IPAddress, &id.FirstSeen,
		&id.LastSeen, &id.TotalEvents, &id.FailedAttempts, &id.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, classify("get identity", err)
	}
	return &id, nil
}

// ListIdentities returns all summaries, most recently seen first.
func (r *PostgresRepository) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT computer_name, user_name, ip_address, first_seen, last_seen, total_events, failed_attempts, status
		FROM identities
		ORDER BY last_seen DESC`)
	if err != nil {
		return nil, classify("list identities", err)
	}
	defer rows.Close()

	identities := []models.Identity{}
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(
			&id.ComputerName, &id.UserName, &id.IPAddress, &id.FirstSeen,
			&id.LastSeen, &id.TotalEvents, &id.FailedAttempts, &id.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate identities", err)
	}
	return identities, nil
}

// SetIdentityStatus updates the lifecycle flag and returns the updated
// summary, or ErrIdentityNotFound.
func (r *PostgresRepository) SetIdentityStatus(ctx context.Context, computerName string, status models.IdentityStatus) (*models.Identity, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var id models.Identity
	err := r.pool.QueryRow(ctx, `
		UPDATE identities
		SET status = $2
		WHERE computer_name = $1
		RETURNING computer_name, user_name, ip_address, first_seen, last_seen, total_events, failed_attempts, status`,
		computerName, status,
	).Scan(
		&id.ComputerName, &id.UserName, &id.IPAddress, &id.FirstSeen,
		&id.LastSeen, &id.TotalEvents, &id.FailedAttempts, &id.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, classify("set identity status", err)
	}
	return &id, nil
}

// classify wraps err, tagging connectivity and timeout failures with
// ErrUnavailable so callers can report them as retryable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Class 08 = connection exceptions.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return true
	}
	return false
}

// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/streamglass/pulse/internal/model"
	"github.com/streamglass/pulse/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertPost writes the enriched post inside a single transaction. The
// unique constraint on post_id makes the write idempotent under stream
// redelivery.
func (s *PostgresStore) UpsertPost(ctx context.Context, post *model.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := queryUpsertPost(ctx, tx, post); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	return queryListPosts(ctx, s.db, filter)
}

func (s *PostgresStore) PostsSince(ctx context.Context, since time.Time) ([]*model.Post, error) {
	return queryPostsSince(ctx, s.db, since)
}

func (s *PostgresStore) SentimentBuckets(ctx context.Context, period string, start, end time.Time, source string) ([]model.BucketRow, error) {
	return querySentimentBuckets(ctx, s.db, period, start, end, source)
}

func (s *PostgresStore) SentimentCounts(ctx context.Context, start, end time.Time, source string) ([]model.LabelCount, error) {
	return querySentimentCounts(ctx, s.db, start, end, source)
}

func (s *PostgresStore) TopEmotions(ctx context.Context, start, end time.Time, source string, limit int) ([]model.LabelCount, error) {
	return queryTopEmotions(ctx, s.db, start, end, source, limit)
}

func (s *PostgresStore) InsertAlert(ctx context.Context, alert *model.Alert) error {
	return queryInsertAlert(ctx, s.db, alert)
}

func (s *PostgresStore) ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	return queryListAlerts(ctx, s.db, limit)
}

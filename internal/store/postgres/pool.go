// Package postgres is the primary Metadata Adaptor implementation (§6),
// backed by database/sql and lib/pq.
//
// Grounded on the internal/common/database.go
// InitializeDatabase, which opens a *sql.DB, applies the same pool
// sizing, and optionally executes a schema file — this package keeps
// that exact shape (Open mirrors InitializeDatabase) and adds the
// study-scoped advisory-lock primitives §4.4 needs, which the prior
// repository-pattern persistence layer had no equivalent for.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/opencga/catalog-core/internal/catalogconfig"
	"github.com/opencga/catalog-core/internal/cataloglog"
)

// Open establishes the connection pool per cfg, mirroring
// InitializeDatabase's pool-sizing convention, and optionally applies a
// schema file on first connect.
func Open(cfg catalogconfig.PostgresConfig, schemaFilePath string) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if schemaFilePath != "" {
		schema, err := os.ReadFile(schemaFilePath)
		if err != nil {
			return nil, fmt.Errorf("reading schema file: %w", err)
		}
		if _, err := db.Exec(string(schema)); err != nil {
			return nil, fmt.Errorf("applying schema file: %w", err)
		}
	}

	cataloglog.LogInfo(fmt.Sprintf("connected to postgres at %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName))
	return db, nil
}

// Store is the concrete Metadata Adaptor over a *sql.DB.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Conn implements studymeta.LockStore: advisory locks are session-scoped
// in Postgres, so lock holders need a single dedicated connection.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

// TryAdvisoryLock implements studymeta.LockStore using
// pg_try_advisory_lock, scoped to the study id.
func (s *Store) TryAdvisoryLock(ctx context.Context, conn *sql.Conn, studyID int64) (bool, error) {
	var acquired bool
	row := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", studyID)
	if err := row.Scan(&acquired); err != nil {
		return false, err
	}
	return acquired, nil
}

// AdvisoryUnlock implements studymeta.LockStore using pg_advisory_unlock.
func (s *Store) AdvisoryUnlock(ctx context.Context, conn *sql.Conn, studyID int64) error {
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", studyID)
	return err
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors surfaced when a partial unique index rejects a mutation.
// The indexes live in migrations/001_schema.sql; they are the authority for
// replay rejection and content dedup among STORED records, so the guarantees
// hold under concurrent coordinators.
var (
	// ErrTransferRedeemed means a different STORED record already references
	// the same settlement transfer.
	ErrTransferRedeemed = errors.New("settlement transfer already redeemed by another record")

	// ErrDuplicateContent means a different STORED record already holds the
	// same (owner, content hash) pair.
	ErrDuplicateContent = errors.New("content already stored for this owner")

	// ErrRecordNotPending means the record left PENDING state before the
	// mutation landed, e.g. the reconciler abandoned it during a slow
	// settlement wait.
	ErrRecordNotPending = errors.New("record is no longer pending")
)

const (
	transferRefConstraint  = "uq_ingestions_transfer_stored"
	ownerContentConstraint = "uq_ingestions_owner_hash_stored"
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
}

// Connect creates a new database connection
func Connect(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// RunMigrations executes the schema migrations atomically
func RunMigrations(db *DB, migrationPath string) error {
	content, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to load migration file: %w", err)
	}

	return db.InTransaction(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
		return nil
	})
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Ping verifies the database connection
func (db *DB) Ping() error {
	return db.DB.Ping()
}

// InTransaction executes a function within a transaction
func (db *DB) InTransaction(fn func(*sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// mapUniqueViolation translates Postgres unique violations on the partial
// indexes into the package sentinels. Other errors pass through unchanged.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}

	switch pqErr.Constraint {
	case transferRefConstraint:
		return ErrTransferRedeemed
	case ownerContentConstraint:
		return ErrDuplicateContent
	}
	return err
}

// ToNullString converts an empty string to a NULL value
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

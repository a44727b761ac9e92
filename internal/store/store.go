package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/stockline/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is stamped into PRAGMA user_version. Bump it and add
// a step to runMigrations when schema.sql changes shape.
const currentSchemaVersion = 1

// Store is the entity store. Reads outside a transaction go through the
// embedded reader; writes go through Tx.
type Store struct {
	reader
	db *sqlx.DB
}

// Option configures Open.
type Option func(*options)

type options struct {
	maxOpenConns  int
	busyTimeoutMS int
}

// WithMaxOpenConns sets the connection pool size. SQLite has a single
// writer, so the default of 1 avoids SQLITE_BUSY entirely.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long a connection waits for the write lock.
func WithBusyTimeout(ms int) Option {
	return func(o *options) {
		if ms >= 0 {
			o.busyTimeoutMS = ms
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Pragmas are passed in the DSN so every pooled connection gets them, not
// only the first one.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{maxOpenConns: 1, busyTimeoutMS: 5000}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqlx.Open("sqlite3", dsn(path, o))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{reader: reader{q: db}, db: db}, nil
}

func dsn(path string, o options) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.Itoa(o.busyTimeoutMS))
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	params.Set("_loc", "UTC")
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle for read-model projections.
// Writes must go through WithTx.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside one write transaction. The transaction commits only
// if fn returns nil; any error rolls back every write fn made.
//
// Errors are mapped to the domain taxonomy: lock contention becomes
// CONFLICT so the caller knows to retry.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{reader: reader{q: sqlTx}, tx: sqlTx}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations stamps user_version. A database written by a newer schema
// is refused rather than silently downgraded.
func runMigrations(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// mapError translates driver errors into domain errors. Errors it does not
// recognise are wrapped unchanged.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return domain.Conflict(op, "database is busy", err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return domain.Conflict(op, "unique constraint violated", err)
		case se.ExtendedCode == sqlite3.ErrConstraintCheck:
			return &domain.Error{Code: domain.ErrCodeValidation, Op: op, Message: "check constraint violated", Err: err}
		case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return &domain.Error{Code: domain.ErrCodeValidation, Op: op, Message: "referenced record does not exist", Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound maps sql.ErrNoRows to NOT_FOUND for entity/id.
func notFound(op, entity string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(op, entity, id)
	}
	return mapError(op, err)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.Get(&value, fmt.Sprintf("PRAGMA %s", name)); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

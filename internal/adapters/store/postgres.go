// Package store defines the persistence gateway contract for the
// relational system of record.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/okian/finbrief/pkg/logger"
)

// Connection-pool settings for the shared *sql.DB.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Postgres implements Gateway backed by a PostgreSQL database.
type Postgres struct {
	db    *sql.DB
	clock Clock
	log   logger.Logger
}

// Compile-time check that Postgres implements Gateway.
var _ Gateway = (*Postgres)(nil)

// Option applies a configuration option to the Postgres gateway.
type Option func(*Postgres)

// WithClock overrides the time source used for defaulted timestamps.
func WithClock(clock Clock) Option {
	return func(p *Postgres) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the gateway.
func WithLogger(log logger.Logger) Option {
	return func(p *Postgres) {
		if log != nil {
			p.log = log
		}
	}
}

// New opens a connection to the PostgreSQL database at the given DSN and
// configures the connection pool.
func New(dsn string, opts ...Option) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(db, opts...), nil
}

// NewWithDB wraps an existing database handle. Used by tests that supply a
// mock driver.
func NewWithDB(db *sql.DB, opts ...Option) *Postgres {
	p := &Postgres{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
		log:   logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close closes the underlying database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

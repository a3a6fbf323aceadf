package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// DBOptions tune the connection pool. Zero values fall back to defaults
// sized for a single-campus deployment.
type DBOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (o DBOptions) normalize() DBOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	return o
}

// NewDB opens a Postgres connection pool. The pool is returned even
// when the initial ping fails so callers can serve degraded and let
// /healthz report the outage.
func NewDB(connString string, opts DBOptions) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	opts = opts.normalize()
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Healthy reports whether the database currently answers a ping.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

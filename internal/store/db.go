package store

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return &DB{Client: db}, db.PingContext(pingCtx)
}

// Migrate creates missing tables. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// Healthy reports whether the database answers a ping.
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

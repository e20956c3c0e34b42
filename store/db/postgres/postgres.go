// Package postgres holds the optional pgvector-backed semantic product
// index. The engine stays fully functional when this package is not wired
// in; it only sharpens retrieval ranking.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Import the Postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DB wraps the postgres handle holding the product embedding table.
type DB struct {
	db *sql.DB
}

// NewDB opens the vector database and runs the schema migration.
func NewDB(dsn string, dimensions int) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("vector dsn required")
	}
	pgDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vector db")
	}
	d := &DB{db: pgDB}
	if err := d.migrate(context.Background(), dimensions); err != nil {
		_ = pgDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context, dimensions int) error {
	if _, err := d.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return errors.Wrap(err, "failed to create vector extension")
	}
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS product_embedding (
			id SERIAL PRIMARY KEY,
			product_name TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (product_name, model)
		)
	`, dimensions)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to migrate product embedding schema")
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += placeholder(i)
	}
	return out
}

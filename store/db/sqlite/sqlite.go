// Package sqlite backs the outlet registry with a local SQLite file.
// Queries are parameterised from structured filter values only; user text
// never reaches a WHERE clause.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/outlet"
	"github.com/kopibot/kopibot/internal/profile"
)

// DB wraps the sqlite handle behind the outlet registry surface.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

var _ outlet.Registry = (*DB)(nil)

// NewDB opens the outlet database and runs the schema migration.
//
// Notes:
// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
// - WAL journal mode prevents locking issues; a single connection is
//   optimal with WAL for a local file.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	d := &DB{db: sqliteDB, profile: profile}
	if err := d.migrate(context.Background()); err != nil {
		_ = sqliteDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS outlet (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			hours TEXT NOT NULL DEFAULT '{}',
			services TEXT NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_outlet_city ON outlet (city);
		CREATE INDEX IF NOT EXISTS idx_outlet_state ON outlet (state);
	`
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to migrate outlet schema")
	}
	return nil
}

// Seed upserts the given outlets. City and state are derived once at
// write time so reads stay a plain indexed lookup.
func (d *DB) Seed(ctx context.Context, outlets []catalog.Outlet) error {
	stmt := `
		INSERT INTO outlet (name, address, city, state, hours, services)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name)
		DO UPDATE SET
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			hours = EXCLUDED.hours,
			services = EXCLUDED.services
	`
	for _, o := range outlets {
		hours, err := json.Marshal(o.Hours)
		if err != nil {
			return errors.Wrapf(err, "failed to encode hours for %s", o.Name)
		}
		services, err := json.Marshal(o.Services)
		if err != nil {
			return errors.Wrapf(err, "failed to encode services for %s", o.Name)
		}
		city := cityOf(o)
		if _, err := d.db.ExecContext(ctx, stmt, o.Name, o.Address, city, stateOf(o, city), string(hours), string(services)); err != nil {
			return errors.Wrapf(err, "failed to upsert outlet %s", o.Name)
		}
	}
	return nil
}

// All returns every outlet in catalogue order.
func (d *DB) All(ctx context.Context) ([]catalog.Outlet, error) {
	return d.query(ctx, `SELECT name, address, hours, services FROM outlet ORDER BY id`)
}

// ByCity returns the outlets whose derived city or state matches, so
// state-level areas like "selangor" resolve the same as towns.
func (d *DB) ByCity(ctx context.Context, city string) ([]catalog.Outlet, error) {
	return d.query(ctx, `SELECT name, address, hours, services FROM outlet WHERE city = ? OR state = ? ORDER BY id`, city, city)
}

func (d *DB) query(ctx context.Context, stmt string, args ...any) ([]catalog.Outlet, error) {
	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query outlets")
	}
	defer rows.Close()

	var outlets []catalog.Outlet
	for rows.Next() {
		var o catalog.Outlet
		var hours, services string
		if err := rows.Scan(&o.Name, &o.Address, &hours, &services); err != nil {
			return nil, errors.Wrap(err, "failed to scan outlet")
		}
		if err := json.Unmarshal([]byte(hours), &o.Hours); err != nil {
			return nil, errors.Wrapf(err, "corrupt hours for %s", o.Name)
		}
		if err := json.Unmarshal([]byte(services), &o.Services); err != nil {
			return nil, errors.Wrapf(err, "corrupt services for %s", o.Name)
		}
		outlets = append(outlets, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outlets, nil
}

// cityOf resolves the canonical city an outlet belongs to, or empty when
// no known city matches its name or address.
func cityOf(o catalog.Outlet) string {
	for _, city := range knownCities {
		if outlet.CityMatches(o, city) {
			return city
		}
	}
	return ""
}

var knownCities = []string{
	"petaling jaya",
	"subang jaya",
	"shah alam",
	"damansara",
	"cheras",
	"bangsar",
	"puchong",
	"ampang",
	"mont kiara",
	"bukit bintang",
	"kepong",
	"setapak",
	"klang",
	"putrajaya",
	"cyberjaya",
	"kuala lumpur",
}

// stateOf resolves the state-level area an outlet files under: an explicit
// "Selangor" in the address wins, otherwise the derived city decides.
func stateOf(o catalog.Outlet, city string) string {
	if outlet.CityMatches(o, "selangor") {
		return "selangor"
	}
	return cityState[city]
}

var cityState = map[string]string{
	"petaling jaya": "selangor",
	"subang jaya":   "selangor",
	"shah alam":     "selangor",
	"damansara":     "selangor",
	"puchong":       "selangor",
	"ampang":        "selangor",
	"klang":         "selangor",
	"cyberjaya":     "selangor",
	"cheras":        "kuala lumpur",
	"bangsar":       "kuala lumpur",
	"mont kiara":    "kuala lumpur",
	"bukit bintang": "kuala lumpur",
	"kepong":        "kuala lumpur",
	"setapak":       "kuala lumpur",
	"kuala lumpur":  "kuala lumpur",
	"putrajaya":     "putrajaya",
}

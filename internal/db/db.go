package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"elite-trader/internal/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB wraps the market database connection (SQLite or PostgreSQL).
type DB struct {
	sql     *sql.DB
	dialect dialect
}

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open opens (or creates) the database and runs migrations. driver is "sqlite" or
// "postgres"; for sqlite, dsn is a file path.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "sqlite":
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("open db: unknown driver %q", driver)
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" {
		// One writer at a time; also keeps ":memory:" databases on a single connection.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, dialect: dialect{driver: driver}}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s database", driver))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.dialect.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.dialect.rebind(query), args...)
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS system (
				id           BIGINT PRIMARY KEY,
				name         TEXT NOT NULL,
				position_x   DOUBLE PRECISION NOT NULL,
				position_y   DOUBLE PRECISION NOT NULL,
				position_z   DOUBLE PRECISION NOT NULL,
				needs_permit BOOLEAN NOT NULL DEFAULT FALSE
			);
			CREATE INDEX IF NOT EXISTS idx_system_position ON system(position_x, position_y, position_z);

			CREATE TABLE IF NOT EXISTS station (
				id                   BIGINT PRIMARY KEY,
				system_id            BIGINT NOT NULL REFERENCES system(id),
				name                 TEXT NOT NULL,
				max_landing_pad_size TEXT NOT NULL DEFAULT 'None',
				distance_to_star     BIGINT,
				has_market           BOOLEAN NOT NULL DEFAULT FALSE,
				is_planetary         BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at           TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_station_system ON station(system_id);

			CREATE TABLE IF NOT EXISTS listing (
				station_id   BIGINT NOT NULL REFERENCES station(id),
				commodity_id BIGINT NOT NULL,
				name         TEXT NOT NULL,
				buy_price    BIGINT,
				sell_price   BIGINT,
				stock        BIGINT NOT NULL DEFAULT 0,
				UNIQUE (station_id, name)
			);

			INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (market tables)")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS route_history (
				run_id          TEXT PRIMARY KEY,
				created_at      TEXT NOT NULL,
				from_station    TEXT NOT NULL,
				to_station      TEXT NOT NULL DEFAULT '',
				hops            INTEGER NOT NULL,
				sum_gain        BIGINT NOT NULL,
				flight_time     DOUBLE PRECISION NOT NULL,
				gain_per_second DOUBLE PRECISION NOT NULL,
				candidates      INTEGER NOT NULL DEFAULT 0,
				duration_ms     BIGINT NOT NULL DEFAULT 0,
				params_json     TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_route_history_created ON route_history(created_at);

			CREATE TABLE IF NOT EXISTS route_legs (
				run_id          TEXT NOT NULL REFERENCES route_history(run_id),
				seq             INTEGER NOT NULL,
				from_station_id BIGINT NOT NULL,
				to_station_id   BIGINT NOT NULL,
				from_name       TEXT NOT NULL,
				to_name         TEXT NOT NULL,
				cargo_json      TEXT NOT NULL,
				gain            BIGINT NOT NULL,
				jumps           INTEGER NOT NULL,
				flight_time     DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, seq)
			);

			INSERT INTO schema_version (version) VALUES (2) ON CONFLICT DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (route history)")
	}

	return nil
}

// Counts reports how many systems, stations and listings are stored.
func (d *DB) Counts(ctx context.Context) (systems, stations, listings int64, err error) {
	for _, c := range []struct {
		table string
		dst   *int64
	}{{"system", &systems}, {"station", &stations}, {"listing", &listings}} {
		if err = d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return 0, 0, 0, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return systems, stations, listings, nil
}

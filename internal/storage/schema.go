package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name  string
		query string
	}{
		{"locations", locationsTable},
		{"weather", weatherTable},
		{"users", usersTable},
		{"user_queries", userQueriesTable},
	}
	for _, step := range steps {
		if _, err := db.ExecContext(ctx, step.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", step.name, err)
		}
	}
	return nil
}

const locationsTable = `
CREATE TABLE IF NOT EXISTS locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	geocode TEXT NOT NULL UNIQUE,
	county TEXT NOT NULL,
	district TEXT NOT NULL,
	full_name TEXT NOT NULL UNIQUE,
	latitude REAL,
	longitude REAL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locations_county_district ON locations(county, district);
`

const weatherTable = `
CREATE TABLE IF NOT EXISTS weather (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	weather_condition TEXT NOT NULL,
	weather_emoji TEXT,
	precipitation_probability INTEGER CHECK(precipitation_probability IS NULL OR (precipitation_probability >= 0 AND precipitation_probability <= 100)),
	min_temperature INTEGER,
	max_temperature INTEGER,
	raw_description TEXT NOT NULL,
	UNIQUE(location_id, start_time, end_time, fetched_at)
);
CREATE INDEX IF NOT EXISTS idx_weather_start_time ON weather(start_time);
CREATE INDEX IF NOT EXISTS idx_weather_location_fetched ON weather(location_id, fetched_at);
`

const usersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	line_user_id TEXT NOT NULL UNIQUE,
	display_name TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	home_location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
	work_location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const userQueriesTable = `
CREATE TABLE IF NOT EXISTS user_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	query_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_queries_user_time ON user_queries(user_id, query_time DESC);
`

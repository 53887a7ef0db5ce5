package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ImportStats summarizes a catalog import.
type ImportStats struct {
	Locations int64
	Forecasts int64
}

// ImportCatalogSnapshot merges a catalog snapshot database into this database.
// Locations are matched by full name so ids referenced by users stay stable,
// even when a division is given a new geocode.
// Forecast rows are replaced entirely and re-keyed onto local location ids.
// User tables are never touched.
func (db *DB) ImportCatalogSnapshot(ctx context.Context, snapshotPath string) (ImportStats, error) {
	start := time.Now()
	var stats ImportStats

	// ATTACH is connection scoped, so the whole import runs on one connection.
	conn, err := db.w().Conn(ctx)
	if err != nil {
		return stats, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS snap`, snapshotPath); err != nil {
		return stats, fmt.Errorf("attach snapshot: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `DETACH DATABASE snap`); err != nil {
			slog.WarnContext(ctx, "failed to detach snapshot", "error", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	locations, err := mergeLocations(ctx, tx, time.Now().Unix())
	if err != nil {
		return stats, err
	}
	stats.Locations = locations

	if _, err := tx.ExecContext(ctx, `DELETE FROM main.weather`); err != nil {
		return stats, fmt.Errorf("clear forecasts: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO main.weather (location_id, start_time, end_time, fetched_at, weather_condition, weather_emoji,
			precipitation_probability, min_temperature, max_temperature, raw_description)
		SELECT l.id, w.start_time, w.end_time, w.fetched_at, w.weather_condition, w.weather_emoji,
			w.precipitation_probability, w.min_temperature, w.max_temperature, w.raw_description
		FROM snap.weather w
		JOIN snap.locations sl ON sl.id = w.location_id
		JOIN main.locations l ON l.geocode = sl.geocode
	`)
	if err != nil {
		return stats, fmt.Errorf("copy forecasts: %w", err)
	}
	stats.Forecasts, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "catalog snapshot imported",
		"locations", stats.Locations,
		"forecasts", stats.Forecasts,
		"duration_ms", time.Since(start).Milliseconds())
	return stats, nil
}

// Both geocode and full_name are unique, so codes are moved out of the way
// before rows are re-keyed. A row whose code was handed to another division
// and whose own name left the catalog keeps a "~<id>" placeholder code.
var mergeSteps = []struct {
	name  string
	query string
	count bool
}{
	{"park re-coded rows", `
		UPDATE main.locations AS m SET geocode = '~' || m.id
		WHERE EXISTS (
			SELECT 1 FROM snap.locations s
			WHERE s.county || s.district = m.full_name AND s.geocode <> m.geocode)`, false},
	{"release reused codes", `
		UPDATE main.locations AS m SET geocode = '~' || m.id
		WHERE EXISTS (
			SELECT 1 FROM snap.locations s
			WHERE s.geocode = m.geocode AND s.county || s.district <> m.full_name)`, false},
	{"update locations", `
		UPDATE main.locations AS m SET
			geocode = s.geocode,
			county = s.county,
			district = s.district,
			latitude = s.latitude,
			longitude = s.longitude,
			updated_at = ?1
		FROM snap.locations AS s
		WHERE s.county || s.district = m.full_name`, true},
	{"insert locations", `
		INSERT INTO main.locations (geocode, county, district, full_name, latitude, longitude, created_at, updated_at)
		SELECT s.geocode, s.county, s.district, s.county || s.district, s.latitude, s.longitude, ?1, ?1
		FROM snap.locations AS s
		WHERE NOT EXISTS (SELECT 1 FROM main.locations m WHERE m.full_name = s.county || s.district)`, true},
}

func mergeLocations(ctx context.Context, tx *sql.Tx, now int64) (int64, error) {
	var merged int64
	for _, step := range mergeSteps {
		var args []any
		if step.count {
			args = append(args, now)
		}
		res, err := tx.ExecContext(ctx, step.query, args...)
		if err != nil {
			return 0, fmt.Errorf("merge locations: %s: %w", step.name, err)
		}
		if step.count {
			n, _ := res.RowsAffected()
			merged += n
		}
	}
	return merged, nil
}

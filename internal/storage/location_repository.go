package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const locationColumns = `id, geocode, county, district, full_name, latitude, longitude, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var (
		loc      Location
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&loc.ID, &loc.Geocode, &loc.County, &loc.District, &loc.FullName,
		&lat, &lon, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		loc.Latitude = &lat.Float64
	}
	if lon.Valid {
		loc.Longitude = &lon.Float64
	}
	return &loc, nil
}

func (db *DB) queryLocations(ctx context.Context, operation, query string, args ...any) ([]Location, error) {
	start := time.Now()
	rows, err := db.r().QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query locations", "operation", operation, "error", err)
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer func() { _ = rows.Close() }()

	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", operation, err)
		}
		locations = append(locations, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", operation, err)
	}

	logSlow(ctx, operation, start, 100*time.Millisecond, "count", len(locations))
	return locations, nil
}

// WithCoordinates returns every location that has both latitude and longitude,
// in stable id order.
func (db *DB) WithCoordinates(ctx context.Context) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`
	return db.queryLocations(ctx, "WithCoordinates", query)
}

// ListLocations returns the whole catalog ordered by id.
func (db *DB) ListLocations(ctx context.Context) ([]Location, error) {
	return db.queryLocations(ctx, "ListLocations", `SELECT `+locationColumns+` FROM locations ORDER BY id`)
}

// SearchByName returns locations whose full name contains name, ordered by full name.
func (db *DB) SearchByName(ctx context.Context, name string) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE full_name LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY full_name`
	return db.queryLocations(ctx, "SearchByName", query, escapeLike(name))
}

// GetByCountyDistrict returns the location with exactly this county and district.
// Returns nil, nil when absent.
func (db *DB) GetByCountyDistrict(ctx context.Context, county, district string) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE county = ? AND district = ?`
	loc, err := scanLocation(db.r().QueryRowContext(ctx, query, county, district))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query location",
			"county", county,
			"district", district,
			"error", err)
		return nil, fmt.Errorf("query location: %w", err)
	}
	return loc, nil
}

// GetLocationByID returns the location with this id, or nil, nil when absent.
func (db *DB) GetLocationByID(ctx context.Context, id int64) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`
	loc, err := scanLocation(db.r().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query location %d: %w", id, err)
	}
	return loc, nil
}

// UpsertLocation inserts a location or updates the existing row with the same geocode.
// FullName is always derived from County and District.
func (db *DB) UpsertLocation(ctx context.Context, loc *Location) error {
	query := `
		INSERT INTO locations (geocode, county, district, full_name, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(geocode) DO UPDATE SET
			county = excluded.county,
			district = excluded.district,
			full_name = excluded.full_name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now().Unix()
	loc.FullName = loc.County + loc.District
	if err := db.w().QueryRowContext(ctx, query, loc.Geocode, loc.County, loc.District, loc.FullName,
		nullableFloat(loc.Latitude), nullableFloat(loc.Longitude), now, now).Scan(&loc.ID); err != nil {
		slog.ErrorContext(ctx, "failed to upsert location",
			"geocode", loc.Geocode,
			"error", err)
		return fmt.Errorf("upsert location %s: %w", loc.Geocode, err)
	}
	return nil
}

// CountLocations returns the catalog size.
func (db *DB) CountLocations(ctx context.Context) (int, error) {
	var count int
	if err := db.r().QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return count, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

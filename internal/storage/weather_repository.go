package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// SaveForecasts stores forecast windows in a single transaction.
// Rows that already exist for the same location, window and fetch time are replaced.
func (db *DB) SaveForecasts(ctx context.Context, forecasts []Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	query := `
		INSERT INTO weather (location_id, start_time, end_time, fetched_at, weather_condition, weather_emoji,
			precipitation_probability, min_temperature, max_temperature, raw_description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id, start_time, end_time, fetched_at) DO UPDATE SET
			weather_condition = excluded.weather_condition,
			weather_emoji = excluded.weather_emoji,
			precipitation_probability = excluded.precipitation_probability,
			min_temperature = excluded.min_temperature,
			max_temperature = excluded.max_temperature,
			raw_description = excluded.raw_description
	`

	start := time.Now()
	tx, err := db.w().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare forecast batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range forecasts {
		if _, err := stmt.ExecContext(ctx, f.LocationID, f.StartTime.Unix(), f.EndTime.Unix(), f.FetchedAt.Unix(),
			f.WeatherCondition, nullableString(f.WeatherEmoji), nullableInt(f.PrecipitationProbability),
			nullableInt(f.MinTemperature), nullableInt(f.MaxTemperature), f.RawDescription); err != nil {
			slog.ErrorContext(ctx, "failed to save forecast",
				"location_id", f.LocationID,
				"start_time", f.StartTime,
				"error", err)
			return fmt.Errorf("save forecast for location %d: %w", f.LocationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast batch: %w", err)
	}

	logSlow(ctx, "SaveForecasts", start, 500*time.Millisecond, "count", len(forecasts))
	return nil
}

// GetUpcomingForecasts returns up to limit windows from the most recent fetch for the
// location that have not ended before now, ordered by start time.
func (db *DB) GetUpcomingForecasts(ctx context.Context, locationID int64, now time.Time, limit int) ([]Forecast, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, location_id, start_time, end_time, fetched_at, weather_condition, weather_emoji,
			precipitation_probability, min_temperature, max_temperature, raw_description
		FROM weather
		WHERE location_id = ?
			AND fetched_at = (SELECT MAX(fetched_at) FROM weather WHERE location_id = ?)
			AND end_time > ?
		ORDER BY start_time
		LIMIT ?
	`

	rows, err := db.r().QueryContext(ctx, query, locationID, locationID, now.Unix(), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query forecasts",
			"location_id", locationID,
			"error", err)
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var forecasts []Forecast
	for rows.Next() {
		var (
			f                     Forecast
			start, end, fetched   int64
			emoji                 sql.NullString
			pop, minTemp, maxTemp sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.LocationID, &start, &end, &fetched, &f.WeatherCondition, &emoji,
			&pop, &minTemp, &maxTemp, &f.RawDescription); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		f.StartTime = time.Unix(start, 0)
		f.EndTime = time.Unix(end, 0)
		f.FetchedAt = time.Unix(fetched, 0)
		f.WeatherEmoji = emoji.String
		f.PrecipitationProbability = intPtr(pop)
		f.MinTemperature = intPtr(minTemp)
		f.MaxTemperature = intPtr(maxTemp)
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// DeleteForecastsBefore removes windows that ended before cutoff.
func (db *DB) DeleteForecastsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.w().ExecContext(ctx, `DELETE FROM weather WHERE end_time < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete old forecasts: %w", err)
	}
	return result.RowsAffected()
}

// CountForecasts returns the number of stored forecast windows.
func (db *DB) CountForecasts(ctx context.Context) (int, error) {
	var count int
	if err := db.r().QueryRowContext(ctx, `SELECT COUNT(*) FROM weather`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count forecasts: %w", err)
	}
	return count, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

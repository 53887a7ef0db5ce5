package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const userColumns = `id, line_user_id, display_name, is_active, home_location_id, work_location_id, created_at, updated_at`

func scanUser(row rowScanner) (*User, error) {
	var (
		u          User
		name       sql.NullString
		home, work sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.LineUserID, &name, &u.IsActive, &home, &work, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.DisplayName = name.String
	if home.Valid {
		u.HomeLocationID = &home.Int64
	}
	if work.Valid {
		u.WorkLocationID = &work.Int64
	}
	return &u, nil
}

// GetUserByLineID returns the user with this LINE user id, or nil, nil when absent.
func (db *DB) GetUserByLineID(ctx context.Context, lineUserID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE line_user_id = ?`
	u, err := scanUser(db.r().QueryRowContext(ctx, query, lineUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query user", "error", err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// CreateOrReactivateUser records a follow event. New users are created active;
// returning users are reactivated and keep their preset locations.
func (db *DB) CreateOrReactivateUser(ctx context.Context, lineUserID, displayName string) (*User, error) {
	query := `
		INSERT INTO users (line_user_id, display_name, is_active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(line_user_id) DO UPDATE SET
			is_active = 1,
			display_name = COALESCE(excluded.display_name, users.display_name),
			updated_at = excluded.updated_at
		RETURNING ` + userColumns

	now := time.Now().Unix()
	u, err := scanUser(db.w().QueryRowContext(ctx, query, lineUserID, nullableString(displayName), now, now))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create or reactivate user", "error", err)
		return nil, fmt.Errorf("create or reactivate user: %w", err)
	}
	return u, nil
}

// DeactivateUser marks a user inactive after an unfollow.
// Reports false when the user is unknown.
func (db *DB) DeactivateUser(ctx context.Context, lineUserID string) (bool, error) {
	result, err := db.w().ExecContext(ctx,
		`UPDATE users SET is_active = 0, updated_at = ? WHERE line_user_id = ?`,
		time.Now().Unix(), lineUserID)
	if err != nil {
		return false, fmt.Errorf("deactivate user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate user: %w", err)
	}
	return n > 0, nil
}

// SetUserLocation stores the home or work location of a user.
// Users that never followed the bot (e.g. opened the LIFF page first) are created on the fly.
func (db *DB) SetUserLocation(ctx context.Context, lineUserID string, locationType UserLocationType, locationID int64) error {
	var column string
	switch locationType {
	case UserLocationHome:
		column = "home_location_id"
	case UserLocationWork:
		column = "work_location_id"
	default:
		return fmt.Errorf("unknown location type %q", locationType)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO users (line_user_id, is_active, ` + column + `, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT(line_user_id) DO UPDATE SET
			` + column + ` = excluded.` + column + `,
			updated_at = excluded.updated_at
	`
	if _, err := db.w().ExecContext(ctx, query, lineUserID, locationID, now, now); err != nil {
		slog.ErrorContext(ctx, "failed to set user location",
			"location_type", string(locationType),
			"location_id", locationID,
			"error", err)
		return fmt.Errorf("set %s location: %w", locationType, err)
	}
	return nil
}

// RecordQuery appends a successful weather lookup to the user's history.
func (db *DB) RecordQuery(ctx context.Context, userID, locationID int64) error {
	if _, err := db.w().ExecContext(ctx,
		`INSERT INTO user_queries (user_id, location_id, query_time) VALUES (?, ?, ?)`,
		userID, locationID, time.Now().Unix()); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// GetRecentQueries returns up to limit distinct locations the user queried,
// most recent first. The user's home and work locations are excluded.
func (db *DB) GetRecentQueries(ctx context.Context, userID int64, limit int) ([]Location, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT l.id, l.geocode, l.county, l.district, l.full_name, l.latitude, l.longitude, l.created_at, l.updated_at
		FROM (
			SELECT location_id, MAX(id) AS last_query
			FROM user_queries
			WHERE user_id = ?
			GROUP BY location_id
		) q
		JOIN locations l ON l.id = q.location_id
		JOIN users u ON u.id = ?
		WHERE (u.home_location_id IS NULL OR l.id != u.home_location_id)
			AND (u.work_location_id IS NULL OR l.id != u.work_location_id)
		ORDER BY q.last_query DESC
		LIMIT ?
	`
	return db.queryLocations(ctx, "GetRecentQueries", query, userID, userID, limit)
}

// CountActiveUsers returns the number of users currently following the bot.
func (db *DB) CountActiveUsers(ctx context.Context) (int, error) {
	var count int
	if err := db.r().QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

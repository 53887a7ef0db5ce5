package storage

import (
	"context"
	"time"
)

// LocationRepository reads and maintains the administrative division catalog.
type LocationRepository interface {
	WithCoordinates(ctx context.Context) ([]Location, error)
	ListLocations(ctx context.Context) ([]Location, error)
	SearchByName(ctx context.Context, name string) ([]Location, error)
	GetByCountyDistrict(ctx context.Context, county, district string) (*Location, error)
	GetLocationByID(ctx context.Context, id int64) (*Location, error)
	UpsertLocation(ctx context.Context, loc *Location) error
	CountLocations(ctx context.Context) (int, error)
}

// WeatherRepository stores forecast windows per location.
type WeatherRepository interface {
	SaveForecasts(ctx context.Context, forecasts []Forecast) error

	// GetUpcomingForecasts returns windows of the latest fetch that end after now.
	GetUpcomingForecasts(ctx context.Context, locationID int64, now time.Time, limit int) ([]Forecast, error)

	DeleteForecastsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountForecasts(ctx context.Context) (int, error)
}

// UserRepository manages LINE users, their preset locations and query history.
type UserRepository interface {
	GetUserByLineID(ctx context.Context, lineUserID string) (*User, error)
	CreateOrReactivateUser(ctx context.Context, lineUserID, displayName string) (*User, error)
	DeactivateUser(ctx context.Context, lineUserID string) (bool, error)
	SetUserLocation(ctx context.Context, lineUserID string, locationType UserLocationType, locationID int64) error
	RecordQuery(ctx context.Context, userID, locationID int64) error

	// GetRecentQueries excludes the user's home and work locations.
	GetRecentQueries(ctx context.Context, userID int64, limit int) ([]Location, error)

	CountActiveUsers(ctx context.Context) (int, error)
}

// HealthRepository defines the interface for health check operations.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// Repository is the aggregate interface implemented by DB.
type Repository interface {
	LocationRepository
	WeatherRepository
	UserRepository
	HealthRepository
	Close() error
}

var (
	_ LocationRepository = (*DB)(nil)
	_ WeatherRepository  = (*DB)(nil)
	_ UserRepository     = (*DB)(nil)
	_ HealthRepository   = (*DB)(nil)
	_ Repository         = (*DB)(nil)
)

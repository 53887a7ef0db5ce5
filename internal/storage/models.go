package storage

import "time"

// Location is one administrative division of the catalog (e.g. 新北市永和區).
// Rows are written by the external ingestion process and arrive through catalog snapshots.
type Location struct {
	ID        int64    `json:"id"`
	Geocode   string   `json:"geocode"`
	County    string   `json:"county"`
	District  string   `json:"district"`
	FullName  string   `json:"full_name"` // always County + District
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// Forecast is a single 3-hour forecast window for a location.
type Forecast struct {
	ID                       int64
	LocationID               int64
	StartTime                time.Time
	EndTime                  time.Time
	FetchedAt                time.Time
	WeatherCondition         string
	WeatherEmoji             string
	PrecipitationProbability *int
	MinTemperature           *int
	MaxTemperature           *int
	RawDescription           string
}

// User is a LINE user who has followed the bot.
type User struct {
	ID             int64
	LineUserID     string
	DisplayName    string
	IsActive       bool
	HomeLocationID *int64
	WorkLocationID *int64
	CreatedAt      int64
	UpdatedAt      int64
}

// UserLocationType selects which preset location of a user is addressed.
type UserLocationType string

// Preset location types accepted by SetUserLocation.
const (
	UserLocationHome UserLocationType = "home"
	UserLocationWork UserLocationType = "work"
)

// Valid reports whether t is a known preset location type.
func (t UserLocationType) Valid() bool {
	return t == UserLocationHome || t == UserLocationWork
}

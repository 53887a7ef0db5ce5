package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func float(v float64) *float64 { return &v }

func seedLocation(t *testing.T, db *DB, geocode, county, district string, lat, lon *float64) *Location {
	t.Helper()
	loc := &Location{Geocode: geocode, County: county, District: district, Latitude: lat, Longitude: lon}
	if err := db.UpsertLocation(context.Background(), loc); err != nil {
		t.Fatalf("UpsertLocation(%s) failed: %v", geocode, err)
	}
	return loc
}

func TestNew_FileSystemDatabase(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "weamind.db")

	ctx := context.Background()
	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created: %s", dbPath)
	}

	seedLocation(t, db, "6300500", "臺北市", "大安區", float(25.0263), float(121.5436))

	loc, err := db.GetByCountyDistrict(ctx, "臺北市", "大安區")
	if err != nil {
		t.Fatalf("GetByCountyDistrict failed: %v", err)
	}
	if loc == nil || loc.FullName != "臺北市大安區" {
		t.Errorf("Expected 臺北市大安區 from reader pool, got %+v", loc)
	}

	if db.SizeBytes() == 0 {
		t.Error("Expected non-zero database size")
	}
}

func TestNew_InMemoryPing(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if db.SizeBytes() != 0 {
		t.Errorf("Expected zero size for in-memory database, got %d", db.SizeBytes())
	}
}

func TestClose_LaterCallsReturnErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		path string
	}{
		{"in memory", ":memory:"},
		{"file with reader pool", filepath.Join(t.TempDir(), "closed.db")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(ctx, tt.path)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if err := db.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			if _, err := db.CountLocations(ctx); err == nil || !strings.Contains(err.Error(), "sql: database is closed") {
				t.Errorf("CountLocations after Close = %v, want \"sql: database is closed\"", err)
			}
			if _, err := db.GetUserByLineID(ctx, "U1"); err == nil {
				t.Error("GetUserByLineID after Close should fail")
			}
			if err := db.Ping(ctx); err == nil {
				t.Error("Ping after Close should fail")
			}
			if err := db.Close(); err != nil {
				t.Errorf("second Close = %v", err)
			}
		})
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	if err := InitSchema(context.Background(), db.w()); err != nil {
		t.Fatalf("Second InitSchema failed: %v", err)
	}
}

func TestCreateSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	db, err := New(ctx, filepath.Join(dir, "source.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()
	seedLocation(t, db, "6500400", "新北市", "永和區", float(25.0081), float(121.5149))

	dest := filepath.Join(dir, "snapshot.db")
	if err := db.CreateSnapshot(ctx, dest); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	copied, err := New(ctx, dest)
	if err != nil {
		t.Fatalf("Failed to open snapshot: %v", err)
	}
	defer func() { _ = copied.Close() }()

	count, err := copied.CountLocations(ctx)
	if err != nil {
		t.Fatalf("CountLocations failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 location in snapshot, got %d", count)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "永和", "永和"},
		{"percent", "50%", `50\%`},
		{"underscore", "a_b", `a\_b`},
		{"backslash", `a\b`, `a\\b`},
		{"mixed", `%_\`, `\%\_\\`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := escapeLike(tt.input); got != tt.expected {
				t.Errorf("escapeLike(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

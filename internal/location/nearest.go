package location

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// DefaultMaxDistanceKm is how far a point may be from the closest division
// centroid and still resolve to it. Points in open water between islands stay unresolved.
const DefaultMaxDistanceKm = 50.0

// FindNearest returns the catalog entry closest to (lat, lon).
//
// It returns nil without touching the catalog when the point is outside InTaiwan,
// and nil when the closest entry is farther than maxKm. Ties go to the first
// entry in catalog order. The scan is linear; the catalog holds a few hundred rows.
func FindNearest(ctx context.Context, catalog Catalog, lat, lon, maxKm float64) (*storage.Location, error) {
	if !InTaiwan(lat, lon) {
		slog.DebugContext(ctx, "coordinates outside service area", "lat", lat, "lon", lon)
		return nil, nil
	}

	locations, err := catalog.WithCoordinates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load located catalog: %w", err)
	}

	var (
		nearest *storage.Location
		minDist = math.Inf(1)
	)
	for i := range locations {
		loc := &locations[i]
		if !loc.HasCoordinates() {
			continue
		}
		d := HaversineKm(lat, lon, *loc.Latitude, *loc.Longitude)
		if d < minDist {
			minDist = d
			nearest = loc
		}
	}

	if nearest == nil {
		slog.WarnContext(ctx, "no catalog locations with coordinates")
		return nil, nil
	}
	if minDist > maxKm {
		slog.DebugContext(ctx, "nearest location too far",
			"location", nearest.FullName,
			"distance_km", minDist)
		return nil, nil
	}
	return nearest, nil
}

package location

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two points
// given in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dPhi / 2)
	sinLon := math.Sin(dLambda / 2)
	a := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon

	// Guard against rounding above 1 near antipodal points.
	a = math.Min(a, 1)
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// Window is an inclusive latitude/longitude rectangle.
type Window struct {
	Name           string
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the window, bounds included.
func (w Window) Contains(lat, lon float64) bool {
	return lat >= w.MinLat && lat <= w.MaxLat && lon >= w.MinLon && lon <= w.MaxLon
}

// TaiwanWindows covers the territory as a union of disjoint rectangles.
// The main window also holds Penghu, Green Island, Orchid Island and Wuqiu.
var TaiwanWindows = []Window{
	{Name: "main", MinLat: 21.9, MaxLat: 25.3, MinLon: 119.3, MaxLon: 122.0},
	{Name: "kinmen", MinLat: 24.35, MaxLat: 24.55, MinLon: 118.19, MaxLon: 118.5},
	{Name: "matsu", MinLat: 25.9, MaxLat: 26.45, MinLon: 119.85, MaxLon: 120.55},
	{Name: "pratas", MinLat: 20.6, MaxLat: 20.8, MinLon: 116.6, MaxLon: 116.9},
}

// InTaiwan reports whether the point falls inside any of TaiwanWindows.
func InTaiwan(lat, lon float64) bool {
	for _, w := range TaiwanWindows {
		if w.Contains(lat, lon) {
			return true
		}
	}
	return false
}

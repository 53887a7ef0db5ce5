package location

import (
	"context"
	"sort"
	"strings"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

type fakeCatalog struct {
	locations   []storage.Location
	err         error
	scans       int
	exactLookup int
}

func (f *fakeCatalog) add(county, district string, coords ...float64) *fakeCatalog {
	loc := storage.Location{
		ID:       int64(len(f.locations) + 1),
		County:   county,
		District: district,
		FullName: county + district,
	}
	if len(coords) == 2 {
		lat, lon := coords[0], coords[1]
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	f.locations = append(f.locations, loc)
	return f
}

func (f *fakeCatalog) WithCoordinates(context.Context) ([]storage.Location, error) {
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.Location
	for _, loc := range f.locations {
		if loc.HasCoordinates() {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchByName(_ context.Context, name string) ([]storage.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.Location
	for _, loc := range f.locations {
		if strings.Contains(loc.FullName, name) {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeCatalog) GetByCountyDistrict(_ context.Context, county, district string) (*storage.Location, error) {
	f.exactLookup++
	if f.err != nil {
		return nil, f.err
	}
	for _, loc := range f.locations {
		if loc.County == county && loc.District == district {
			return &loc, nil
		}
	}
	return nil, nil
}

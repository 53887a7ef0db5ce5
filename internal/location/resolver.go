package location

import (
	"context"
	"strings"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// Source tells which signal produced a location.
type Source string

const (
	SourceText    Source = "text"
	SourceAddress Source = "address"
	SourceGPS     Source = "gps"
)

// Resolver is the entry point used by message handlers. It is safe for concurrent use.
type Resolver struct {
	catalog       Catalog
	registry      *Registry
	address       *AddressExtractor
	maxDistanceKm float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDistanceKm overrides DefaultMaxDistanceKm. Non-positive values are ignored.
func WithMaxDistanceKm(km float64) Option {
	return func(r *Resolver) {
		if km > 0 {
			r.maxDistanceKm = km
		}
	}
}

// NewResolver creates a Resolver over catalog. A nil registry behaves as empty.
func NewResolver(catalog Catalog, registry *Registry, opts ...Option) *Resolver {
	if registry == nil {
		registry = EmptyRegistry()
	}
	r := &Resolver{
		catalog:       catalog,
		registry:      registry,
		address:       NewAddressExtractor(registry, catalog),
		maxDistanceKm: DefaultMaxDistanceKm,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveByText resolves a typed place name. See ResolveText.
func (r *Resolver) ResolveByText(ctx context.Context, raw string) (Result, error) {
	return ResolveText(ctx, r.catalog, raw)
}

// ResolveByLocationSignal resolves a shared LINE location. A non-empty address
// that resolves wins over the GPS fix, even when the two disagree.
func (r *Resolver) ResolveByLocationSignal(ctx context.Context, lat, lon float64, address string) (*storage.Location, error) {
	loc, _, err := r.ResolveSignalWithSource(ctx, lat, lon, address)
	return loc, err
}

// ResolveSignalWithSource is ResolveByLocationSignal that also reports which
// signal produced the location. The source is empty when nothing resolved.
func (r *Resolver) ResolveSignalWithSource(ctx context.Context, lat, lon float64, address string) (*storage.Location, Source, error) {
	if strings.TrimSpace(address) != "" {
		loc, err := r.address.Extract(ctx, address)
		if err != nil {
			return nil, "", err
		}
		if loc != nil {
			return loc, SourceAddress, nil
		}
	}

	loc, err := FindNearest(ctx, r.catalog, lat, lon, r.maxDistanceKm)
	if err != nil || loc == nil {
		return nil, "", err
	}
	return loc, SourceGPS, nil
}

// IsValidDivisionName reports whether fullName is a legal division.
func (r *Resolver) IsValidDivisionName(fullName string) bool {
	return r.registry.Contains(fullName)
}

// LookupDivision returns the catalog row for a legal county and district, or
// nil when the pair is not a legal division or the catalog has no row for it.
func (r *Resolver) LookupDivision(ctx context.Context, county, district string) (*storage.Location, error) {
	county, district = Normalize(county), Normalize(district)
	if !r.registry.Contains(county + district) {
		return nil, nil
	}
	return r.catalog.GetByCountyDistrict(ctx, county, district)
}

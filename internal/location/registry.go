package location

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

//go:embed data/tw_admin_divisions.json
var divisionsJSON []byte

// Registry is the immutable set of legal county+district names. Unlike the
// catalog it lists every division, whether or not the catalog has a row for it.
type Registry struct {
	names     map[string]struct{}
	districts map[string][]string
	counties  []string
}

// LoadRegistry builds a registry from a county → districts JSON object.
// Names are normalized on load, so 台 and 臺 spellings are both accepted.
func LoadRegistry(data []byte) (*Registry, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse admin divisions: %w", err)
	}

	r := &Registry{
		names:     make(map[string]struct{}),
		districts: make(map[string][]string, len(raw)),
		counties:  make([]string, 0, len(raw)),
	}
	for county, districts := range raw {
		county = Normalize(county)
		if county == "" {
			continue
		}
		r.counties = append(r.counties, county)
		for _, district := range districts {
			district = Normalize(district)
			if district == "" {
				continue
			}
			r.districts[county] = append(r.districts[county], district)
			r.names[county+district] = struct{}{}
		}
	}
	sort.Strings(r.counties)
	return r, nil
}

// DefaultRegistry loads the bundled dataset. A load failure is logged and
// yields an empty registry so that address validation fails closed.
func DefaultRegistry(log *slog.Logger) *Registry {
	r, err := LoadRegistry(divisionsJSON)
	if err != nil {
		log.Error("failed to load admin divisions, address validation disabled", "error", err)
		return EmptyRegistry()
	}
	log.Info("admin divisions loaded", "counties", len(r.counties), "divisions", r.Len())
	return r
}

// EmptyRegistry returns a registry that contains nothing.
func EmptyRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}, districts: map[string][]string{}}
}

// Contains reports whether fullName is a legal division after normalization.
// A nil registry contains nothing.
func (r *Registry) Contains(fullName string) bool {
	if r == nil {
		return false
	}
	_, ok := r.names[Normalize(fullName)]
	return ok
}

// Len returns the number of divisions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Counties returns the county names in sorted order.
func (r *Registry) Counties() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.counties...)
}

// Districts returns the districts of county in dataset order.
func (r *Registry) Districts(county string) []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.districts[Normalize(county)]...)
}

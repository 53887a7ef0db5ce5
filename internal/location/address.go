package location

import (
	"context"
	"fmt"
	"regexp"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// addressRules are tried in order. Every county name is two characters plus
// its suffix, so the county part is anchored on exactly two ideographs.
var addressRules = []*regexp.Regexp{
	// Special municipality or provincial city district: 臺北市信義區, 新竹市東區
	regexp.MustCompile(`(\p{Han}{2}市)(\p{Han}{1,3}?區)`),
	// County-administered city: 新竹縣竹北市
	regexp.MustCompile(`(\p{Han}{2}縣)(\p{Han}{1,3}?市)`),
	// Rural township or urban town: 連江縣南竿鄉, 彰化縣鹿港鎮
	regexp.MustCompile(`(\p{Han}{2}縣)(\p{Han}{1,3}?[鄉鎮])`),
}

// MatchAddress extracts a (county, district) pair from a free-text address.
// Only pairs present in r are returned.
func (r *Registry) MatchAddress(address string) (county, district string, ok bool) {
	if r.Len() == 0 {
		return "", "", false
	}

	normalized := normalizeAddress(address)
	for _, rule := range addressRules {
		for _, m := range rule.FindAllStringSubmatch(normalized, -1) {
			if r.Contains(m[1] + m[2]) {
				return m[1], m[2], true
			}
		}
	}
	return "", "", false
}

// AddressExtractor resolves street addresses to catalog locations.
type AddressExtractor struct {
	registry *Registry
	catalog  Catalog
}

// NewAddressExtractor creates an extractor validating against registry.
func NewAddressExtractor(registry *Registry, catalog Catalog) *AddressExtractor {
	return &AddressExtractor{registry: registry, catalog: catalog}
}

// Extract returns the catalog location named by address, or nil when the
// address has no recognizable division, the division is not legal, or the
// catalog has no row for it. Only catalog failures are returned as errors.
func (e *AddressExtractor) Extract(ctx context.Context, address string) (*storage.Location, error) {
	county, district, ok := e.registry.MatchAddress(address)
	if !ok {
		return nil, nil
	}

	loc, err := e.catalog.GetByCountyDistrict(ctx, county, district)
	if err != nil {
		return nil, fmt.Errorf("lookup %s%s: %w", county, district, err)
	}
	return loc, nil
}

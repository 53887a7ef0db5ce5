package location

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// Catalog is the read-only view of the location table used by the engine.
// *storage.DB implements it.
type Catalog interface {
	// WithCoordinates returns every location that has both latitude and longitude.
	WithCoordinates(ctx context.Context) ([]storage.Location, error)

	// SearchByName returns locations whose full name contains name, ordered by full name.
	SearchByName(ctx context.Context, name string) ([]storage.Location, error)

	// GetByCountyDistrict returns nil, nil when no row matches exactly.
	GetByCountyDistrict(ctx context.Context, county, district string) (*storage.Location, error)
}

var _ Catalog = (*storage.DB)(nil)

// Outcome classifies a text lookup by the number of catalog matches.
type Outcome string

const (
	OutcomeNotFound  Outcome = "not_found"
	OutcomeResolved  Outcome = "resolved"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeTooMany   Outcome = "too_many"
)

// MaxCandidates is the largest match count still offered to the user as a choice.
// Larger result sets are discarded so the user narrows the input instead.
const MaxCandidates = 3

// Result is the answer to a text lookup: zero, one or up to MaxCandidates
// locations plus a status message for the user.
type Result struct {
	Locations []storage.Location
	Message   string
	Outcome   Outcome
	// Query is the normalized input that was searched.
	Query string
}

// Single returns the resolved location, or nil unless exactly one matched.
func (r Result) Single() *storage.Location {
	if r.Outcome != OutcomeResolved || len(r.Locations) != 1 {
		return nil
	}
	return &r.Locations[0]
}

// Search returns catalog entries whose full name contains name, ordered by full name.
func Search(ctx context.Context, catalog Catalog, name string) ([]storage.Location, error) {
	locations, err := catalog.SearchByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("search locations %q: %w", name, err)
	}
	return locations, nil
}

// ResolveText validates raw, searches the catalog and classifies the matches.
// Malformed input returns *InputFormatError.
func ResolveText(ctx context.Context, catalog Catalog, raw string) (Result, error) {
	query, err := Validate(raw)
	if err != nil {
		return Result{}, err
	}

	locations, err := Search(ctx, catalog, query)
	if err != nil {
		return Result{}, err
	}

	return classify(query, locations), nil
}

func classify(query string, locations []storage.Location) Result {
	switch n := len(locations); {
	case n == 0:
		return Result{
			Outcome: OutcomeNotFound,
			Query:   query,
			Message: fmt.Sprintf("😕 找不到「%s」這個地點耶，要不要檢查看看有沒有打錯字？", query),
		}
	case n == 1:
		return Result{
			Locations: locations,
			Outcome:   OutcomeResolved,
			Query:     query,
			Message:   fmt.Sprintf("找到了 %s，正在查詢天氣...", locations[0].FullName),
		}
	case n <= MaxCandidates:
		var sb strings.Builder
		sb.WriteString("😕 找到多個符合的地點，請選擇：")
		for i, loc := range locations {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, loc.FullName)
		}
		return Result{
			Locations: locations,
			Outcome:   OutcomeAmbiguous,
			Query:     query,
			Message:   sb.String(),
		}
	default:
		return Result{
			Outcome: OutcomeTooMany,
			Query:   query,
			Message: "🤔 找到太多符合的地點了！請輸入更具體的地名" + narrowingHint(query),
		}
	}
}

// narrowingHint suggests a more specific input for a query that matched too much.
func narrowingHint(query string) string {
	switch {
	case strings.HasSuffix(query, "區"), strings.HasSuffix(query, "鄉"),
		strings.HasSuffix(query, "鎮"), strings.HasSuffix(query, "市"):
		return fmt.Sprintf("，例如加上縣市名稱：「○○市%s」", query)
	default:
		return fmt.Sprintf("，例如：「%s區」", query)
	}
}

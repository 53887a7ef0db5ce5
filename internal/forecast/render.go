// Package forecast turns stored forecast windows into chat replies.
package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

const defaultEmoji = "🌡️"

// Store is the subset of storage used to load forecasts.
type Store interface {
	GetUpcomingForecasts(ctx context.Context, locationID int64, now time.Time, limit int) ([]storage.Forecast, error)
}

// Service loads and renders forecasts for resolved locations.
type Service struct {
	store   Store
	windows int
	now     func() time.Time
}

// NewService creates a Service rendering at most windows forecast windows.
func NewService(store Store, windows int) *Service {
	if windows <= 0 {
		windows = 4
	}
	return &Service{store: store, windows: windows, now: time.Now}
}

// Describe returns the forecast reply for loc.
func (s *Service) Describe(ctx context.Context, loc *storage.Location) (string, error) {
	forecasts, err := s.store.GetUpcomingForecasts(ctx, loc.ID, s.now(), s.windows)
	if err != nil {
		return "", fmt.Errorf("load forecasts for %s: %w", loc.FullName, err)
	}
	return Render(loc, forecasts), nil
}

// Render formats forecast windows for loc. Times are shown in Asia/Taipei.
func Render(loc *storage.Location, forecasts []storage.Forecast) string {
	if len(forecasts) == 0 {
		return fmt.Sprintf("😕 目前沒有 %s 的天氣資料，請稍後再試", loc.FullName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s 天氣預報\n", loc.FullName)

	tz := lineutil.Taipei()
	for _, f := range forecasts {
		b.WriteString("\n")
		b.WriteString(formatRange(f.StartTime.In(tz), f.EndTime.In(tz)))
		b.WriteString("\n")

		emoji := f.WeatherEmoji
		if emoji == "" {
			emoji = defaultEmoji
		}
		fmt.Fprintf(&b, "%s %s", emoji, f.WeatherCondition)
		if t := formatTemperature(f.MinTemperature, f.MaxTemperature); t != "" {
			fmt.Fprintf(&b, "｜🌡️ %s", t)
		}
		if f.PrecipitationProbability != nil {
			fmt.Fprintf(&b, "｜☔ %d%%", *f.PrecipitationProbability)
		}
		b.WriteString("\n")
	}

	// All rows come from the same fetch.
	if footer := lineutil.UpdatedAt(forecasts[0].FetchedAt); footer != "" {
		b.WriteString("\n" + footer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatRange prints "MM/DD HH:MM - HH:MM", repeating the date when the window crosses midnight.
func formatRange(start, end time.Time) string {
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("01/02 15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("01/02 15:04"), end.Format("01/02 15:04"))
}

func formatTemperature(low, high *int) string {
	switch {
	case low != nil && high != nil && *low != *high:
		return fmt.Sprintf("%d-%d°C", *low, *high)
	case low != nil:
		return fmt.Sprintf("%d°C", *low)
	case high != nil:
		return fmt.Sprintf("%d°C", *high)
	}
	return ""
}

// Package announcement serves operator announcements from a JSON file as
// Flex Message carousels.
package announcement

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
)

// DefaultLimit is how many of the newest visible announcements are shown.
const DefaultLimit = 1

// bodyLimit is the rune budget of a bubble body before truncation.
const bodyLimit = 50

// Level is the severity of an announcement.
type Level string

// Known announcement levels. Unknown levels render like info with a generic label.
const (
	LevelInfo        Level = "info"
	LevelWarning     Level = "warning"
	LevelMaintenance Level = "maintenance"
)

// Color returns the accent color for the level.
func (l Level) Color() string {
	switch l {
	case LevelWarning:
		return lineutil.ColorWarning
	case LevelMaintenance:
		return lineutil.ColorMaintenance
	default:
		return lineutil.ColorInfo
	}
}

// Label returns the display label for the level.
func (l Level) Label() string {
	switch l {
	case LevelInfo:
		return "一般資訊"
	case LevelWarning:
		return "重要提醒"
	case LevelMaintenance:
		return "維護公告"
	default:
		return "資訊"
	}
}

// Item is one announcement entry.
type Item struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Level   Level  `json:"level"`
	StartAt string `json:"start_at"` // ISO 8601
	Visible bool   `json:"visible"`
}

type feed struct {
	Items []Item `json:"items"`
}

// Load reads the announcement file at path. A missing file is reported as
// domerrors.ErrNotFound.
func Load(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("announcements %s: %w", path, domerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("read announcements: %w", err)
	}
	return Parse(data)
}

// Parse decodes the announcement JSON document.
func Parse(data []byte) ([]Item, error) {
	var f feed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode announcements: %w", err)
	}
	return f.Items, nil
}

// Latest returns up to limit visible items, newest start_at first.
// start_at values are compared as strings, which orders ISO 8601 timestamps correctly.
func Latest(items []Item, limit int) []Item {
	visible := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Visible {
			visible = append(visible, it)
		}
	}
	slices.SortStableFunc(visible, func(a, b Item) int {
		return cmp.Compare(b.StartAt, a.StartAt)
	})
	if limit > 0 && len(visible) > limit {
		visible = visible[:limit]
	}
	return visible
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatDate renders an ISO timestamp as "YYYY/MM/DD HH:MM" in Taipei time.
// Timestamps without an offset are taken as Taipei time. Unparseable input gives "日期未知".
func FormatDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, lineutil.Taipei()); err == nil {
			return lineutil.FormatDateTime(t)
		}
	}
	return "日期未知"
}

var trailingPunct = []rune("，、：；。！？（）()")

// SmartTruncate cuts text to 50 runes plus "...". A punctuation mark at the cut
// point is dropped so the text does not end in "，...".
func SmartTruncate(text string) string {
	runes := []rune(text)
	if len(runes) <= bodyLimit {
		return text
	}
	cut := runes[:bodyLimit]
	if slices.Contains(trailingPunct, cut[len(cut)-1]) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}

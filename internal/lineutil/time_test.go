package lineutil

import (
	"strings"
	"testing"
	"time"
)

func TestTaipei(t *testing.T) {
	t.Parallel()
	_, offset := time.Date(2025, 7, 1, 0, 0, 0, 0, Taipei()).Zone()
	if offset != 8*60*60 {
		t.Errorf("offset = %d, want UTC+8", offset)
	}
}

func TestRelativeDay(t *testing.T) {
	t.Parallel()
	tz := Taipei()
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, tz)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"today", time.Date(2025, 3, 10, 12, 30, 0, 0, tz), "今天 12:30"},
		{"midnight counts as today", time.Date(2025, 3, 10, 0, 0, 0, 0, tz), "今天 00:00"},
		{"yesterday", time.Date(2025, 3, 9, 18, 45, 0, 0, tz), "昨天 18:45"},
		{"older", time.Date(2025, 3, 7, 9, 15, 0, 0, tz), "03/07 09:15"},
		{"UTC input rendered in Taipei", time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), "今天 09:00"},
		{"UTC evening is the next Taipei day", time.Date(2025, 3, 9, 17, 0, 0, 0, time.UTC), "今天 01:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeDay(tt.t, now); got != tt.want {
				t.Errorf("RelativeDay(%v) = %q, want %q", tt.t, got, tt.want)
			}
		})
	}
}

func TestUpdatedAt(t *testing.T) {
	t.Parallel()
	if got := UpdatedAt(time.Time{}); got != "" {
		t.Errorf("UpdatedAt(zero) = %q", got)
	}
	if got := UpdatedAt(time.Now()); !strings.HasPrefix(got, "🕐 資料更新於 今天 ") {
		t.Errorf("UpdatedAt(now) = %q", got)
	}
}

func TestFormatDateTime(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 1, 2, 0, 5, 0, 0, time.UTC)
	if got := FormatDateTime(ts); got != "2025/01/02 08:05" {
		t.Errorf("FormatDateTime() = %q", got)
	}
}

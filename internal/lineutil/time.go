package lineutil

import (
	"time"
)

// taipei is used for every time shown to users and for daily job scheduling.
// Without tzdata it falls back to a fixed UTC+8 zone; Taiwan has no DST.
var taipei = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("Asia/Taipei", 8*60*60)
}()

// Taipei returns the Asia/Taipei location.
func Taipei() *time.Location {
	return taipei
}

// RelativeDay renders t as "今天 HH:MM", "昨天 HH:MM" or "MM/DD HH:MM" relative to now.
func RelativeDay(t, now time.Time) string {
	t, now = t.In(taipei), now.In(taipei)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, taipei)
	switch {
	case !t.Before(today):
		return "今天 " + t.Format("15:04")
	case !t.Before(today.AddDate(0, 0, -1)):
		return "昨天 " + t.Format("15:04")
	default:
		return t.Format("01/02 15:04")
	}
}

// UpdatedAt is the data freshness line appended to forecast replies, or ""
// for a zero time.
//
//	UpdatedAt(fetched) -> "🕐 資料更新於 今天 14:30"
func UpdatedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return "🕐 資料更新於 " + RelativeDay(t, time.Now())
}

// FormatDateTime renders t as "YYYY/MM/DD HH:MM" in Taipei time.
func FormatDateTime(t time.Time) string {
	return t.In(taipei).Format("2006/01/02 15:04")
}

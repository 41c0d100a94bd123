package pipeline

import (
	"time"

	"tap-appstore/internal/model"
)

// Align truncates t to the first instant of its granularity period in UTC.
func Align(t time.Time, g model.Granularity) time.Time {
	t = t.UTC()
	switch g {
	case model.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Step returns the start of the period after start.
func Step(start time.Time, g model.Granularity) time.Time {
	if g == model.GranularityMonth {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

// NextWindow returns the window beginning at checkpoint. It is eligible only
// once the whole period lies in the past: End <= now.
func NextWindow(checkpoint time.Time, g model.Granularity, now time.Time) (model.Window, bool) {
	start := Align(checkpoint, g)
	w := model.Window{Start: start, End: Step(start, g)}
	return w, !w.End.After(now)
}

// FormatCheckpoint renders t in the persisted bookmark layout.
func FormatCheckpoint(t time.Time) string {
	return t.UTC().Format(model.BookmarkLayout)
}

// ParseCheckpoint accepts the bookmark layout and any RFC 3339 timestamp.
func ParseCheckpoint(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

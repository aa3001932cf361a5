package agenda

import (
	"fmt"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
)

// CanonicalLayout is the format every new check_in_time is written in.
const CanonicalLayout = "2006-01-02 15:04"

// CheckInLayouts are tried in order; the first that parses wins.
var CheckInLayouts = []string{
	CanonicalLayout,
	"2006-01-02 15:04:05",
	"2/1/06 15:04",
	"2/1/2006 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000000",
}

// ParseCheckInTime interprets s as wall-clock time in loc.
func ParseCheckInTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, naviErrors.InvalidInput("check-in time is empty")
	}
	for _, layout := range CheckInLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised check-in time %q: %w", s, naviErrors.ErrInvalidInput)
}

// FormatCheckInTime renders t in loc using CanonicalLayout.
func FormatCheckInTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(CanonicalLayout)
}

// ResolveLocation loads an IANA zone, falling back when the name is empty
// or unknown.
func ResolveLocation(name string, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.Local
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

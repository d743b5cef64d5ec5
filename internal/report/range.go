package report

import (
	"strings"
	"time"

	"canteen/internal/core"
)

// DefaultDays is the width of the default reporting window.
const DefaultDays = 90

// Range is an inclusive span of calendar dates. Fallback is set when the
// caller asked for a range that could not be parsed and the default window
// was used instead.
type Range struct {
	Start    core.Date
	End      core.Date
	Fallback bool
}

// DefaultRange returns [today-days, today].
func DefaultRange(today core.Date, days int) Range {
	if days <= 0 {
		days = DefaultDays
	}
	return Range{Start: today.AddDays(-days), End: today}
}

// Validate rejects ranges whose start is after their end.
func (r Range) Validate() error {
	if r.End.Before(r.Start) {
		return core.ErrInvalidRange
	}
	return nil
}

// ParseRange builds a range from optional ISO start/end query values.
//
// A missing bound takes its default value independently. If either bound is
// present but malformed, both bounds fall back to the default window and the
// returned range has Fallback set.
func ParseRange(start, end string, today core.Date, days int) Range {
	def := DefaultRange(today, days)
	r := def

	if s := strings.TrimSpace(start); s != "" {
		d, ok := parseBound(s)
		if !ok {
			return Range{Start: def.Start, End: def.End, Fallback: true}
		}
		r.Start = d
	}
	if s := strings.TrimSpace(end); s != "" {
		d, ok := parseBound(s)
		if !ok {
			return Range{Start: def.Start, End: def.End, Fallback: true}
		}
		r.End = d
	}
	return r
}

var boundLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
}

// parseBound accepts a date or an ISO datetime and keeps only the date part.
func parseBound(s string) (core.Date, bool) {
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), true
		}
	}
	return core.Date{}, false
}

package domain

import (
	"fmt"
	"time"
)

// SameDayPolicy selects how two instants are judged to fall on the same day.
type SameDayPolicy string

const (
	// SameDayCalendarDate compares year, month and day.
	SameDayCalendarDate SameDayPolicy = "calendar-date"
	// SameDayWeekdayMonth compares only month and weekday. Dates four weeks
	// apart in the same month count as the same day under this policy.
	SameDayWeekdayMonth SameDayPolicy = "weekday-month"
)

// ParseSameDayPolicy maps a flag value onto a policy; empty selects the default.
func ParseSameDayPolicy(s string) (SameDayPolicy, error) {
	switch SameDayPolicy(s) {
	case "":
		return SameDayCalendarDate, nil
	case SameDayCalendarDate, SameDayWeekdayMonth:
		return SameDayPolicy(s), nil
	default:
		return "", Errorf(KindInvalidArgument, "unknown same-day policy %q", s)
	}
}

// Calendar pairs a same-day policy with the location whose wall clock
// decides dates. Both instants of a comparison are read in that location.
type Calendar struct {
	Policy   SameDayPolicy
	Location *time.Location
}

// NewCalendar returns a calendar; a nil location selects time.Local and an
// empty policy selects SameDayCalendarDate.
func NewCalendar(policy SameDayPolicy, loc *time.Location) Calendar {
	if policy == "" {
		policy = SameDayCalendarDate
	}
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Policy: policy, Location: loc}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// SameDay reports whether a and b fall on the same day in the calendar's location.
func (c Calendar) SameDay(a, b time.Time) bool {
	loc := c.location()
	a, b = a.In(loc), b.In(loc)
	if c.Policy == SameDayWeekdayMonth {
		return a.Month() == b.Month() && a.Weekday() == b.Weekday()
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a range from two instants.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Valid reports whether Start precedes End and both fall on the same day.
func (r TimeRange) Valid(cal Calendar) bool {
	return r.Start.Before(r.End) && cal.SameDay(r.Start, r.End)
}

// Overlaps reports whether r and other share an instant and fall on the same day.
// Ranges that merely touch (r.End == other.Start) do not overlap.
func (r TimeRange) Overlaps(other TimeRange, cal Calendar) bool {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	return start.Before(end) && cal.SameDay(r.Start, other.Start)
}

// Within reports whether r is contained in interval, bounds inclusive.
func (r TimeRange) Within(interval TimeRange) bool {
	return !r.Start.Before(interval.Start) && !r.End.After(interval.End)
}

// Duration returns End minus Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Package interval provides the date and time-of-day range primitives the
// attendance engine is built on: contract validity spans, timetable shifts
// and the paid-duration arithmetic used for occupancy checks.
package interval

import (
	"encoding/json"
	"fmt"
	"time"
)

// Unpaid break deducted from shifts longer than six hours. Fixed by policy.
const (
	breakAfterMinutes  = 360
	unpaidBreakMinutes = 30
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("interval: parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("interval: time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTimeOfDay is ParseTimeOfDay that panics; intended for fixtures.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// At anchors the time of day onto the given calendar date.
func (t TimeOfDay) At(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, d.Location())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON renders the clock form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the clock form.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeOfDayOf extracts the time-of-day component of a timestamp.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return TimeOfDay(ts.Hour()*60 + ts.Minute())
}

// TimeRange is a pair of times of day describing one shift. An empty range
// (From == To) encodes a non-working day.
type TimeRange struct {
	From TimeOfDay `json:"from"`
	To   TimeOfDay `json:"to"`
}

// IsEmpty reports whether the range carries no working time.
func (r TimeRange) IsEmpty() bool { return r.From == r.To }

// RawMinutes is the wall-clock span between From and To.
func (r TimeRange) RawMinutes() int {
	if r.To < r.From {
		return 0
	}
	return int(r.To - r.From)
}

// PaidMinutes is the span after subtracting the unpaid break from shifts
// exceeding six hours. This is the figure occupancy validation and
// food-stamp eligibility work with.
func (r TimeRange) PaidMinutes() int {
	raw := r.RawMinutes()
	if raw > breakAfterMinutes {
		return raw - unpaidBreakMinutes
	}
	return raw
}

func (r TimeRange) String() string {
	return r.From.String() + "-" + r.To.String()
}

// DateRange is a closed interval of calendar dates. A zero Upper means the
// range is open-ended. Dates compare on the calendar day only; callers are
// expected to pass midnight-normalised values, Date below helps with that.
type DateRange struct {
	Lower time.Time
	Upper time.Time
}

// Date normalises a timestamp to midnight UTC, the canonical representation
// of a calendar day throughout the engine.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates a timestamp to its calendar day.
func DayOf(ts time.Time) time.Time {
	return Date(ts.Year(), ts.Month(), ts.Day())
}

// NewDateRange builds a closed range. Pass a zero upper for open-ended.
func NewDateRange(lower, upper time.Time) DateRange {
	r := DateRange{Lower: DayOf(lower)}
	if !upper.IsZero() {
		r.Upper = DayOf(upper)
	}
	return r
}

// OpenEnded reports whether the range has no upper bound.
func (r DateRange) OpenEnded() bool { return r.Upper.IsZero() }

// IsEmpty reports an inverted range (lower after upper).
func (r DateRange) IsEmpty() bool {
	return !r.OpenEnded() && r.Upper.Before(r.Lower)
}

// Contains reports whether the day falls inside the range, bounds included.
func (r DateRange) Contains(d time.Time) bool {
	day := DayOf(d)
	if day.Before(r.Lower) {
		return false
	}
	if r.OpenEnded() {
		return true
	}
	return !day.After(r.Upper)
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	if !r.OpenEnded() && r.Upper.Before(o.Lower) {
		return false
	}
	if !o.OpenEnded() && o.Upper.Before(r.Lower) {
		return false
	}
	return true
}

// Equal reports bound-for-bound equality.
func (r DateRange) Equal(o DateRange) bool {
	return r.Lower.Equal(o.Lower) && ((r.OpenEnded() && o.OpenEnded()) || r.Upper.Equal(o.Upper))
}

// MonthRange spans the whole calendar month, leap years included.
func MonthRange(year int, month time.Month) DateRange {
	lower := Date(year, month, 1)
	upper := lower.AddDate(0, 1, -1)
	return DateRange{Lower: lower, Upper: upper}
}

func (r DateRange) String() string {
	if r.OpenEnded() {
		return fmt.Sprintf("[%s,)", r.Lower.Format("2006-01-02"))
	}
	return fmt.Sprintf("[%s,%s]", r.Lower.Format("2006-01-02"), r.Upper.Format("2006-01-02"))
}

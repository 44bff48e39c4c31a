package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPaidMinutesBreakBoundary(t *testing.T) {
	cases := []struct {
		from, to string
		want     int
	}{
		{"08:00", "08:00", 0},
		{"08:00", "12:00", 240},
		{"08:00", "14:00", 360}, // exactly six hours, no deduction
		{"08:00", "14:01", 331}, // one minute over, break comes off
		{"08:00", "16:30", 480},
	}
	for _, tc := range cases {
		r := TimeRange{From: MustTimeOfDay(tc.from), To: MustTimeOfDay(tc.to)}
		require.Equal(t, tc.want, r.PaidMinutes(), "%s-%s", tc.from, tc.to)
	}
}

func TestPaidMinutesMonotonic(t *testing.T) {
	// Paid time grows with the raw span except at the six-hour threshold,
	// where the unpaid break is deducted in a single step.
	prev := -1
	from := MustTimeOfDay("06:00")
	for to := from; to <= MustTimeOfDay("20:00"); to++ {
		r := TimeRange{From: from, To: to}
		paid := r.PaidMinutes()
		if r.RawMinutes() == breakAfterMinutes+1 {
			require.Equal(t, breakAfterMinutes+1-unpaidBreakMinutes, paid)
		} else {
			require.GreaterOrEqual(t, paid, prev)
		}
		prev = paid
	}
}

func TestTimeOfDayParse(t *testing.T) {
	v, err := ParseTimeOfDay("08:05")
	require.NoError(t, err)
	require.Equal(t, TimeOfDay(485), v)
	require.Equal(t, "08:05", v.String())

	_, err = ParseTimeOfDay("24:00")
	require.Error(t, err)
	_, err = ParseTimeOfDay("bogus")
	require.Error(t, err)
}

func TestMonthRangeLeapYear(t *testing.T) {
	feb := MonthRange(2024, time.February)
	require.Equal(t, Date(2024, time.February, 1), feb.Lower)
	require.Equal(t, Date(2024, time.February, 29), feb.Upper)

	feb23 := MonthRange(2023, time.February)
	require.Equal(t, Date(2023, time.February, 28), feb23.Upper)

	dec := MonthRange(2024, time.December)
	require.Equal(t, Date(2024, time.December, 31), dec.Upper)
}

func TestDateRangeContains(t *testing.T) {
	r := NewDateRange(Date(2024, time.January, 1), Date(2024, time.January, 31))
	require.True(t, r.Contains(Date(2024, time.January, 1)))
	require.True(t, r.Contains(Date(2024, time.January, 31)))
	require.False(t, r.Contains(Date(2024, time.February, 1)))

	open := NewDateRange(Date(2024, time.January, 1), time.Time{})
	require.True(t, open.Contains(Date(2030, time.June, 15)))
	require.False(t, open.Contains(Date(2023, time.December, 31)))
}

func TestDateRangeOverlaps(t *testing.T) {
	jan := MonthRange(2024, time.January)
	feb := MonthRange(2024, time.February)
	require.False(t, jan.Overlaps(feb))

	wide := NewDateRange(Date(2024, time.January, 20), Date(2024, time.February, 10))
	require.True(t, jan.Overlaps(wide))
	require.True(t, feb.Overlaps(wide))

	open := NewDateRange(Date(2024, time.February, 1), time.Time{})
	require.True(t, open.Overlaps(feb))
	require.False(t, open.Overlaps(jan))

	inverted := NewDateRange(Date(2024, time.March, 10), Date(2024, time.March, 1))
	require.True(t, inverted.IsEmpty())
	require.False(t, inverted.Overlaps(jan))
}

package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFixedHolidays(t *testing.T) {
	cal := Czech{}
	require.True(t, cal.IsHoliday(day(2024, time.January, 1)))
	require.True(t, cal.IsHoliday(day(2024, time.July, 5)))
	require.True(t, cal.IsHoliday(day(2024, time.December, 24)))
	require.False(t, cal.IsHoliday(day(2024, time.March, 4)))
	require.False(t, cal.IsHoliday(day(2024, time.December, 23)))
}

func TestEasterHolidays(t *testing.T) {
	cal := Czech{}
	// Easter Sunday 2024 fell on March 31.
	require.Equal(t, day(2024, time.March, 31), easterSunday(2024))
	require.True(t, cal.IsHoliday(day(2024, time.March, 29)), "Good Friday 2024")
	require.True(t, cal.IsHoliday(day(2024, time.April, 1)), "Easter Monday 2024")
	require.False(t, cal.IsHoliday(day(2024, time.April, 2)))

	require.Equal(t, day(2025, time.April, 20), easterSunday(2025))
	require.True(t, cal.IsHoliday(day(2025, time.April, 21)), "Easter Monday 2025")
}

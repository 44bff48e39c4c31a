// Package holiday provides the national holiday calendar consulted by the
// attendance projections.
package holiday

import "time"

// Calendar answers whether a calendar day is a public holiday.
type Calendar interface {
	IsHoliday(day time.Time) bool
}

// Czech is the Czech public holiday calendar: the fixed state holidays plus
// Good Friday and Easter Monday.
type Czech struct{}

type monthDay struct {
	month time.Month
	day   int
}

var czechFixed = map[monthDay]struct{}{
	{time.January, 1}:    {},
	{time.May, 1}:        {},
	{time.May, 8}:        {},
	{time.July, 5}:       {},
	{time.July, 6}:       {},
	{time.September, 28}: {},
	{time.October, 28}:   {},
	{time.November, 17}:  {},
	{time.December, 24}:  {},
	{time.December, 25}:  {},
	{time.December, 26}:  {},
}

// IsHoliday implements Calendar.
func (Czech) IsHoliday(day time.Time) bool {
	if _, ok := czechFixed[monthDay{day.Month(), day.Day()}]; ok {
		return true
	}
	easter := easterSunday(day.Year())
	goodFriday := easter.AddDate(0, 0, -2)
	easterMonday := easter.AddDate(0, 0, 1)
	return sameDay(day, goodFriday) || sameDay(day, easterMonday)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// easterSunday computes Gregorian Easter via the anonymous Gauss algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

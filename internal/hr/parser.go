package hr

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// weeklyHoursElement is the repeating schedule element embedded in the
// personnel system's contract payload. The hodnota attribute carries agreed
// weekly hours; datum_od/datum_do bound the element's own validity.
type weeklyHoursElement struct {
	XMLName xml.Name `xml:"uv_sjed_tyd"`
	Value   string   `xml:"hodnota,attr"`
	From    string   `xml:"datum_od,attr"`
	To      string   `xml:"datum_do,attr"`
}

var fullTimeWeeklyHours = decimal.NewFromInt(40)

// parseWeeklyHours extracts every uv_sjed_tyd element from the embedded
// payload. The payload is a fragment, not a document, so it is parsed
// under a synthetic root.
func parseWeeklyHours(payload string) ([]weeklyHoursElement, error) {
	dec := xml.NewDecoder(strings.NewReader("<payload>" + payload + "</payload>"))
	var out []weeklyHoursElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("hr: malformed schedule payload: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "uv_sjed_tyd" {
			continue
		}
		var el weeklyHoursElement
		if err := dec.DecodeElement(&el, &start); err != nil {
			return nil, fmt.Errorf("hr: malformed schedule element: %w", err)
		}
		out = append(out, el)
	}
}

// occupancy converts agreed weekly hours to the full-time-equivalent
// fraction, rounded to two decimals.
func (e weeklyHoursElement) occupancy() (decimal.Decimal, error) {
	hours, err := decimal.NewFromString(e.Value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("hr: weekly hours %q: %w", e.Value, err)
	}
	return hours.Div(fullTimeWeeklyHours).Round(2), nil
}

// parseSourceDate reads the personnel system's date format; empty and
// "None" mean unbounded.
func parseSourceDate(s string) (time.Time, error) {
	if s == "" || s == "None" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("hr: date %q: %w", s, err)
	}
	return d, nil
}

// laterOf picks the later lower bound, treating zero as unbounded.
func laterOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.After(b) {
		return a
	}
	return b
}

// earlierOf picks the earlier upper bound, treating zero as unbounded.
func earlierOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}

package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ReferenceYear is the calendar year every model-produced date is rewritten to.
// The speech model is unreliable about the current year, so dates are pinned here.
const ReferenceYear = 2026

// DateLayout is the canonical form returned by NormalizeYear.
const DateLayout = "2006-01-02"

var errInvalidTime = goerr.New("invalid time of day")

type dateLayout struct {
	layout string
	clock  bool
	zoned  bool
}

var dateLayouts = []dateLayout{
	{layout: "2006-01-02"},
	{layout: time.RFC3339, clock: true, zoned: true},
	{layout: "2006-01-02T15:04:05", clock: true},
	{layout: "2006-01-02T15:04", clock: true},
	{layout: "2006-01-02 15:04", clock: true},
	{layout: "2006/01/02"},
	{layout: "01/02/2006"},
	{layout: "1/2/2006"},
	{layout: "01/02"},
	{layout: "1/2"},
	{layout: "January 2, 2006"},
	{layout: "January 2 2006"},
	{layout: "Jan 2, 2006"},
	{layout: "Jan 2 2006"},
	{layout: "2 January 2006"},
	{layout: "Monday, January 2, 2006"},
	{layout: "Monday, January 2"},
	{layout: "January 2"},
	{layout: "Jan 2"},
	{layout: "2 January"},
}

var ordinalSuffix = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)

type parsedDate struct {
	year, day int
	month     time.Month
	hour, min int
	hasClock  bool
}

// parseDate resolves a free-form date string in loc. Relative words are
// resolved against now.
func parseDate(s string, loc *time.Location, now time.Time) (parsedDate, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return parsedDate{}, false
	}
	local := now.In(loc)

	switch lower := strings.ToLower(s); lower {
	case "today":
		return fromTime(local, false), true
	case "tomorrow":
		return fromTime(local.AddDate(0, 0, 1), false), true
	default:
		if wd, ok := weekdayNames[strings.TrimPrefix(lower, "next ")]; ok {
			diff := (int(wd) - int(local.Weekday()) + 7) % 7
			if diff == 0 {
				diff = 7
			}
			return fromTime(local.AddDate(0, 0, diff), false), true
		}
	}

	s = ordinalSuffix.ReplaceAllString(s, "$1")
	for _, l := range dateLayouts {
		t, err := time.ParseInLocation(l.layout, s, loc)
		if err != nil {
			continue
		}
		if l.zoned {
			t = t.In(loc)
		}
		return fromTime(t, l.clock), true
	}

	return parsedDate{}, false
}

func fromTime(t time.Time, clock bool) parsedDate {
	return parsedDate{
		year:     t.Year(),
		month:    t.Month(),
		day:      t.Day(),
		hour:     t.Hour(),
		min:      t.Minute(),
		hasClock: clock,
	}
}

// NormalizeYear rewrites the year of a date string to ReferenceYear and
// returns it in DateLayout. Unparseable input maps to the date of now in
// ReferenceYear. It never fails and NormalizeYear(NormalizeYear(x)) equals
// NormalizeYear(x).
func NormalizeYear(s string, now time.Time) string {
	return normalizeDate(s, now.Location(), now).Format(DateLayout)
}

// normalizeDate returns midnight (or the given clock) of the normalized date in loc.
func normalizeDate(s string, loc *time.Location, now time.Time) time.Time {
	d, ok := parseDate(s, loc, now)
	if !ok {
		d = fromTime(now.In(loc), false)
	}
	// Dates that do not exist in ReferenceYear (Feb 29) roll forward through time.Date.
	return time.Date(ReferenceYear, d.month, d.day, d.hour*boolInt(d.hasClock), d.min*boolInt(d.hasClock), 0, 0, loc)
}

// NormalizeTime moves t into ReferenceYear keeping month, day and clock in loc.
func NormalizeTime(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(ReferenceYear, local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, loc)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?:[:.](\d{2}))?(?::\d{2})?\s*([ap])?\.?\s*m?\.?\s*$`)

// parseClock parses "14:00", "2 PM", "2:30pm", "9.15 a.m." and similar.
func parseClock(s string) (hour, min int, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noon", "midday":
		return 12, 0, nil
	case "midnight":
		return 0, 0, nil
	}

	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, goerr.Wrap(errInvalidTime, "unrecognized time", goerr.V("time", s))
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		min, _ = strconv.Atoi(m[2])
	}

	switch strings.ToLower(m[3]) {
	case "a":
		if hour == 12 {
			hour = 0
		}
	case "p":
		if hour < 12 {
			hour += 12
		}
	}

	if hour > 23 || min > 59 {
		return 0, 0, goerr.Wrap(errInvalidTime, "time out of range", goerr.V("time", s))
	}
	return hour, min, nil
}

// ParseDateTime combines a date and a time of day into an instant in loc,
// with the year normalized to ReferenceYear. An empty clock is allowed only
// when the date itself carries one.
func ParseDateTime(date, clock string, loc *time.Location, now time.Time) (time.Time, error) {
	day := normalizeDate(date, loc, now)

	if strings.TrimSpace(clock) == "" {
		if d, ok := parseDate(date, loc, now); ok && d.hasClock {
			return day, nil
		}
		return time.Time{}, goerr.Wrap(errInvalidTime, "time is required", goerr.V("date", date))
	}

	hour, min, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, loc), nil
}

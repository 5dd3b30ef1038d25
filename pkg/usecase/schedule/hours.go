package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

var hoursPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*([ap])?\.?\s*m?\.?\s*(?:-|\x{2013}|to)\s*(\d{1,2})(?::(\d{2}))?\s*([ap])?\.?\s*m?\.?\s*$`)

// ParseBusinessHours builds a policy from an hours string such as
// "9:00 AM - 5:00 PM" and a list of weekday names. The hours and the days
// fall back to Mon-Sat 09:00-18:00 independently when they cannot be parsed.
// Unknown time zones resolve to UTC.
func ParseBusinessHours(hours string, days []string, tz string) model.BusinessHoursPolicy {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}

	policy := model.DefaultBusinessHours(loc)
	if start, end, ok := parseHoursRange(hours); ok {
		policy.StartHour, policy.EndHour = start, end
	}
	if weekdays, ok := parseWeekdays(days); ok {
		policy.AllowedWeekdays = weekdays
	}
	return policy
}

func parseHoursRange(s string) (start, end float64, ok bool) {
	m := hoursPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	sh, _ := strconv.Atoi(m[1])
	sm, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	eh, _ := strconv.Atoi(m[4])
	em, _ := strconv.Atoi(zeroIfEmpty(m[5]))
	if sm > 59 || em > 59 {
		return 0, 0, false
	}

	sMer, eMer := strings.ToLower(m[3]), strings.ToLower(m[6])
	sh = applyMeridiem(sh, sMer)
	eh = applyMeridiem(eh, eMer)

	start = float64(sh) + float64(sm)/60
	end = float64(eh) + float64(em)/60

	// "9 - 5" reads as 9 AM to 5 PM.
	if eMer == "" && end <= start && eh < 12 {
		end += 12
	}

	if start < 0 || end > 24 || start >= end {
		return 0, 0, false
	}
	return start, end, true
}

func applyMeridiem(hour int, mer string) int {
	switch mer {
	case "a":
		if hour == 12 {
			return 0
		}
	case "p":
		if hour < 12 {
			return hour + 12
		}
	}
	return hour
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// parseWeekdays accepts full names, abbreviations and ranges such as "Mon-Fri".
func parseWeekdays(days []string) ([7]bool, bool) {
	var set [7]bool
	found := false

	for _, raw := range days {
		for _, item := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
			item = strings.ToLower(strings.TrimSpace(item))
			if from, to, isRange := strings.Cut(item, "-"); isRange {
				fd, ok1 := weekdayNames[strings.TrimSpace(from)]
				td, ok2 := weekdayNames[strings.TrimSpace(to)]
				if !ok1 || !ok2 {
					continue
				}
				for d := fd; ; d = (d + 1) % 7 {
					set[d] = true
					if d == td {
						break
					}
				}
				found = true
				continue
			}
			if d, ok := weekdayNames[strings.TrimSuffix(item, ".")]; ok {
				set[d] = true
				found = true
			}
		}
	}

	return set, found
}

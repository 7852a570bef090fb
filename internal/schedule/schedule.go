// Package schedule turns human-friendly launch times into the
// "YYYY-MM-DD hh:mm" form the email launch endpoint expects.
//
// Accepted expressions:
//
//	2026-11-02 09:00        passed through unchanged
//	2026-11-02              midnight of that day
//	30m, 2h, 1d, 2w, 1mo    relative to now, optionally prefixed by "in "
//	today 18:00, tomorrow   a day, optionally followed by hh:mm
//	fri, next mon 08:30     the coming weekday ("next" skips today)
//	2026-11-02T09:00:00Z    RFC3339, converted to the target zone
//
// Everything except the pass-through form is computed in the target time
// zone and must lie after now.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Layout is the launch time format.
const Layout = "2006-01-02 15:04"

const supportedForms = "must be YYYY-MM-DD hh:mm, a date, a relative time like 2h, a day like tomorrow 09:00, or RFC3339"

var (
	relativeRegex = regexp.MustCompile(`^(?:in\s+)?(\d+)\s*(mo|w|d|h|m)$`)
	clockRegex    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Parse resolves expr against now in the zone tz (now's own location when tz
// is empty) and returns it formatted with Layout.
func Parse(expr, tz string, now time.Time) (string, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return "", fmt.Errorf("empty time expression")
	}

	loc := now.Location()
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return "", fmt.Errorf("unknown time zone %q", tz)
		}
	}

	if _, err := time.ParseInLocation(Layout, raw, loc); err == nil {
		return raw, nil
	}

	now = now.In(loc)
	t, err := resolve(raw, now)
	if err != nil {
		return "", err
	}
	if !t.After(now) {
		return "", fmt.Errorf("%s is in the past", t.Format(Layout))
	}
	return t.Format(Layout), nil
}

func resolve(raw string, now time.Time) (time.Time, error) {
	input := strings.Join(strings.Fields(strings.ToLower(raw)), " ")

	if matches := relativeRegex.FindStringSubmatch(input); len(matches) == 3 {
		value, err := strconv.Atoi(matches[1])
		if err != nil || value < 1 {
			return time.Time{}, fmt.Errorf("invalid relative time %q", raw)
		}
		return applyRelative(now, value, matches[2]), nil
	}

	if day, ok := parseDay(input, now); ok {
		return day, nil
	}

	// a day word followed by a clock time
	if i := strings.LastIndex(input, " "); i > 0 {
		if day, ok := parseDay(input[:i], now); ok {
			hour, minute, err := parseClock(input[i+1:])
			if err != nil {
				return time.Time{}, err
			}
			return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
		}
	}

	if t, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		return t, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(now.Location()), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q: %s", raw, supportedForms)
}

func parseDay(input string, now time.Time) (time.Time, bool) {
	switch input {
	case "today":
		return startOfDay(now), true
	case "tomorrow":
		return startOfDay(now).AddDate(0, 0, 1), true
	}
	return parseWeekday(input, now)
}

func parseClock(s string) (hour, minute int, err error) {
	matches := clockRegex.FindStringSubmatch(s)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid clock time %q: must be hh:mm", s)
	}
	hour, _ = strconv.Atoi(matches[1])
	minute, _ = strconv.Atoi(matches[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q: must be hh:mm", s)
	}
	return hour, minute, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseWeekday(input string, now time.Time) (time.Time, bool) {
	next := false
	if rest, ok := strings.CutPrefix(input, "next "); ok {
		next = true
		input = rest
	} else if rest, ok := strings.CutPrefix(input, "this "); ok {
		input = rest
	}

	weekday, ok := weekdays[input]
	if !ok {
		return time.Time{}, false
	}

	base := startOfDay(now)
	delta := (int(weekday) - int(base.Weekday()) + 7) % 7
	if next && delta == 0 {
		delta = 7
	}
	return base.AddDate(0, 0, delta), true
}

var weekdays = map[string]time.Weekday{
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thurs":     time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
}

func applyRelative(now time.Time, value int, unit string) time.Time {
	switch unit {
	case "mo":
		return now.AddDate(0, value, 0)
	case "w":
		return now.AddDate(0, 0, 7*value)
	case "d":
		return now.AddDate(0, 0, value)
	case "h":
		return now.Add(time.Duration(value) * time.Hour)
	default:
		return now.Add(time.Duration(value) * time.Minute)
	}
}

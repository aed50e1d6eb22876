// Package timeparsing parses staleness thresholds and relative time
// expressions from policy files.
//
// Parsing is layered:
//  1. Bare day count (14)
//  2. Compact duration (14d, 2w, 6h)
//  3. Natural language ("two weeks", "next monday")
package timeparsing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// compactDurationRe matches compact duration patterns: [+-]?(\d+)([hdwmy])
// Examples: +6h, -1d, +2w, 3m, 1y
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration parses compact duration syntax relative to now.
//
// Units:
//   - h = hours
//   - d = days
//   - w = weeks
//   - m = months
//   - y = years
//
// A missing sign means positive. Returns an error if the input doesn't
// match the compact duration pattern.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	sign := matches[1]
	amountStr := matches[2]
	unit := matches[3]

	amount, err := strconv.Atoi(amountStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", amountStr)
	}

	if sign == "-" {
		amount = -amount
	}

	return applyDuration(now, amount, unit), nil
}

// applyDuration applies the given amount and unit to the base time.
func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}

// IsCompactDuration returns true if the string matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// ThresholdDays resolves a staleness threshold expression to a whole number
// of days, trying each parsing layer in order. now anchors relative
// expressions.
func ThresholdDays(s string, now time.Time) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("threshold must be positive: %d", n)
		}
		return n, nil
	}

	var at time.Time
	if IsCompactDuration(s) {
		parsed, err := ParseCompactDuration(s, now)
		if err != nil {
			return 0, err
		}
		at = parsed
	} else {
		parsed, err := ParseNaturalLanguage(s, now)
		if err != nil {
			return 0, fmt.Errorf("unrecognized threshold %q: %w", s, err)
		}
		at = parsed
	}

	days := int(math.Round(at.Sub(now).Hours() / 24))
	if days <= 0 {
		return 0, fmt.Errorf("threshold %q does not resolve to a future day count", s)
	}
	return days, nil
}

// Package durations parses the duration forms accepted by jail and
// strike commands.
package durations

import (
	"strconv"
	"strings"
	"time"
)

// Kind classifies a parsed duration token.
type Kind int

const (
	// Invalid means the token is not a duration; callers fold it back
	// into the free-text reason.
	Invalid Kind = iota
	// Timed carries a finite duration.
	Timed
	// Indefinite means no expiry: never auto-released.
	Indefinite
)

// Parse accepts "<int>m", "<int>h", "<int>d", bare digits (minutes),
// and the indefinite markers "permanent" and "terminated".
func Parse(s string) (time.Duration, Kind) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, Invalid
	}
	if s == "permanent" || s == "terminated" {
		return 0, Indefinite
	}

	unit := time.Minute
	digits := s
	switch {
	case strings.HasSuffix(s, "m"):
		digits = s[:len(s)-1]
	case strings.HasSuffix(s, "h"):
		digits = s[:len(s)-1]
		unit = time.Hour
	case strings.HasSuffix(s, "d"):
		digits = s[:len(s)-1]
		unit = 24 * time.Hour
	}
	value, err := strconv.Atoi(digits)
	if err != nil || value <= 0 {
		return 0, Invalid
	}
	return time.Duration(value) * unit, Timed
}

// Clamp caps a duration at the given maximum window.
func Clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// Strike labels without a mapped duration never expire.
const (
	LabelPermanent  = "Permanent"
	LabelTerminated = "Terminated"
)

var strikeDurations = map[string]time.Duration{
	"1 Week":   7 * 24 * time.Hour,
	"2 Weeks":  14 * 24 * time.Hour,
	"1 Month":  30 * 24 * time.Hour,
	"3 Months": 90 * 24 * time.Hour,
	"6 Months": 180 * 24 * time.Hour,
	"1 Year":   365 * 24 * time.Hour,
}

// StrikeLabels lists the accepted strike duration choices in menu order.
var StrikeLabels = []string{"1 Week", "2 Weeks", "1 Month", "3 Months", "6 Months", "1 Year", LabelPermanent, LabelTerminated}

// StrikeExpiry maps a strike duration label to an absolute expiry.
// "Permanent" and "Terminated" never expire; an unknown label falls back
// to one month.
func StrikeExpiry(label string, now time.Time) *time.Time {
	if label == LabelPermanent || label == LabelTerminated {
		return nil
	}
	d, ok := strikeDurations[label]
	if !ok {
		d = 30 * 24 * time.Hour
	}
	expiry := now.Add(d)
	return &expiry
}

package logstore

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are the absolute formats accepted for query bounds.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime turns a user-facing time expression into an absolute time.
// Accepted forms: "now" or empty, relative durations ("-24h", "2h",
// "30m ago"), and absolute timestamps in common layouts.
func ParseTime(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" || strings.EqualFold(s, "now") {
		return now, nil
	}

	if rel, ok := relativeDuration(s); ok {
		d, err := time.ParseDuration(rel)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative time %q: %w", input, err)
		}
		return now.Add(d), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", input)
}

// relativeDuration normalizes "2h ago", "30m", "-1d" style expressions
// into a negative Go duration string. Day units expand to hours since
// time.ParseDuration does not know "d".
func relativeDuration(s string) (string, bool) {
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "ago") {
		lower = strings.TrimSpace(strings.TrimSuffix(lower, "ago"))
	}
	if lower == "" {
		return "", false
	}
	if !strings.ContainsAny(lower, "hmsd") {
		return "", false
	}
	// Must look like a duration, not a date.
	if strings.ContainsAny(lower, ":tz/") {
		return "", false
	}
	for _, r := range lower {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != 'h' && r != 'm' && r != 's' && r != 'd' {
			return "", false
		}
	}

	neg := strings.HasPrefix(lower, "-")
	lower = strings.TrimPrefix(lower, "-")

	if strings.HasSuffix(lower, "d") {
		var days float64
		if _, err := fmt.Sscanf(lower, "%fd", &days); err != nil {
			return "", false
		}
		lower = fmt.Sprintf("%fh", days*24)
	}

	_ = neg // relative bounds always point backward
	return "-" + lower, true
}

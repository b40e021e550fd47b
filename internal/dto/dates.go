package dto

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used by date inputs.
const DateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input yields the zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

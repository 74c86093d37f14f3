package shared

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns UTC. A bare date is
// midnight UTC. Empty input yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC3339", value)
}

package utils

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts seen in broker exports and manual entry, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// NormalizeDate parses a date string in any accepted layout and returns it
// in ISO form (2006-01-02). An empty input normalizes to empty.
func NormalizeDate(dateStr string) (string, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", dateStr)
}

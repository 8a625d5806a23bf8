package connector

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseEventID parses one event identifier field and applies offset.
// Fields may carry the "E" prefix used by structured log parsers ("E5").
// The result must be non-negative.
func ParseEventID(field string, offset int) (int, error) {
	s := strings.TrimSpace(field)
	if len(s) > 1 && (s[0] == 'E' || s[0] == 'e') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q", field)
	}
	n += offset
	if n < 0 {
		return 0, fmt.Errorf("event id %q with offset %d is negative", field, offset)
	}
	return n, nil
}

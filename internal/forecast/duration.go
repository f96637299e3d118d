package forecast

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// wholeHours matches the "hours only" subset of ISO 8601 durations.
var wholeHours = regexp.MustCompile(`^PT(\d+)H$`)

// DecodeValidTime splits an upstream "start/duration" interval into its
// start instant and duration in whole hours.
//
// Only durations of the form PT<n>H are decoded. Anything else (days,
// minutes, composite periods) falls back to a single hour; the upstream
// emits whole-hour durations for every quantity we consume.
func DecodeValidTime(s string) (time.Time, int, error) {
	startStr, durStr, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("invalid interval %q: missing '/'", s)
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid interval start %q: %w", startStr, err)
	}
	return start, durationHours(durStr), nil
}

// durationHours decodes PT<n>H to n, clamped to at least 1.
// Unsupported grammars decode to 1 hour, silently.
func durationHours(s string) int {
	m := wholeHours.FindStringSubmatch(s)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

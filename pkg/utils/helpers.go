package utils

import (
	"strings"
	"time"
)

// ParseDuration safely parses a duration string like "5m". Empty or invalid
// input yields fallback.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	d = strings.TrimSpace(d)
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil || duration < 0 {
		return fallback
	}
	return duration
}

// BaseName returns the last element of a slash or backslash separated path,
// so uploads from any client OS keep only their file name.
func BaseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}

package config

import (
	"os"
	"time"
)

// ResolveTimezone resolves the zone used for scheduling and quiet hours.
// Order: explicit name, TZ environment variable, host zone, UTC.
func ResolveTimezone(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
		log.Warnf("Unknown timezone %q, falling back", name)
	}
	if tz := os.Getenv("TZ"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if loc := time.Local; loc != nil {
		return loc
	}
	return time.UTC
}

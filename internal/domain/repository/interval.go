package repository

import (
	"time"

	"MarketGate/internal/domain/models"
)

var intervals = map[string]time.Duration{
	"1m":                 time.Minute,
	"5m":                 5 * time.Minute,
	"15m":                15 * time.Minute,
	"30m":                30 * time.Minute,
	"1h":                 time.Hour,
	models.IntervalDaily: 24 * time.Hour,
}

// IsValidInterval returns true if iv is a supported bar resolution.
func IsValidInterval(iv string) bool {
	_, ok := intervals[iv]
	return ok
}

// IntervalDuration returns the bar width of iv, defaulting to one day.
func IntervalDuration(iv string) time.Duration {
	if d, ok := intervals[iv]; ok {
		return d
	}
	return 24 * time.Hour
}

package models

import (
	"fmt"
	"strconv"
)

// DetectionTier records which detection strategy produced an anchor
type DetectionTier int

const (
	// TierPattern anchors come from a timestamp matched in the fragment itself
	TierPattern DetectionTier = iota
	// TierContextFallback anchors borrow a timestamp from a neighbouring fragment
	TierContextFallback
	// TierSynthetic anchors carry a placeholder timestamp
	TierSynthetic
)

// String returns the string representation of DetectionTier
func (t DetectionTier) String() string {
	switch t {
	case TierPattern:
		return "pattern"
	case TierContextFallback:
		return "context_fallback"
	case TierSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// TimeAnchor marks the fragment where a transaction begins
type TimeAnchor struct {
	BlockIndex    int           `json:"block_index"`
	Month         string        `json:"month"`
	Day           string        `json:"day"`
	Hour          string        `json:"hour"`
	Minute        string        `json:"minute"`
	DatetimeLabel string        `json:"datetime"`
	Tier          DetectionTier `json:"tier"`
	Pattern       string        `json:"pattern,omitempty"`
}

// NewTimeAnchor builds an anchor and derives its "MM-DD HH:MM" label
func NewTimeAnchor(index int, month, day, hour, minute string, tier DetectionTier) TimeAnchor {
	return TimeAnchor{
		BlockIndex:    index,
		Month:         month,
		Day:           day,
		Hour:          hour,
		Minute:        minute,
		DatetimeLabel: fmt.Sprintf("%s-%s %s:%s", month, day, hour, minute),
		Tier:          tier,
	}
}

// Date returns the anchor date in YYYY-MM-DD form for the given year
func (a TimeAnchor) Date(year int) string {
	return fmt.Sprintf("%04d-%s-%s", year, a.Month, a.Day)
}

// Clock returns the anchor time in HH:MM form
func (a TimeAnchor) Clock() string {
	return a.Hour + ":" + a.Minute
}

// Validate checks that every component is within its calendar range
func (a TimeAnchor) Validate() error {
	return ValidateClock(a.Month, a.Day, a.Hour, a.Minute)
}

// ValidateClock checks month 1-12, day 1-31, hour 0-23, minute 0-59
func ValidateClock(month, day, hour, minute string) error {
	checks := []struct {
		name     string
		value    string
		min, max int
	}{
		{"month", month, 1, 12},
		{"day", day, 1, 31},
		{"hour", hour, 0, 23},
		{"minute", minute, 0, 59},
	}
	for _, c := range checks {
		n, err := strconv.Atoi(c.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", c.name, c.value, err)
		}
		if n < c.min || n > c.max {
			return fmt.Errorf("%s %d out of range [%d, %d]", c.name, n, c.min, c.max)
		}
	}
	return nil
}

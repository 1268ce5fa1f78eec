package extractor

import (
	"fmt"

	"golang-transaction-extractor/internal/rules"
)

// Config holds the numeric knobs of the per-image pipeline
type Config struct {
	// Year stamps every record date; screenshots carry month and day only.
	Year int `json:"year" mapstructure:"year"`

	MinConfidence       float64 `json:"min_confidence" mapstructure:"min_confidence"`
	MinAmountLength     int     `json:"min_amount_length" mapstructure:"min_amount_length"`
	NeighborhoodRadius  int     `json:"neighborhood_radius" mapstructure:"neighborhood_radius"`
	RecoveryRadius      int     `json:"recovery_radius" mapstructure:"recovery_radius"`
	MaxSupplementAmount float64 `json:"max_supplement_amount" mapstructure:"max_supplement_amount"`

	// SkipEnhancement leaves records as extracted, without back-fill or
	// classification.
	SkipEnhancement bool `json:"skip_enhancement" mapstructure:"skip_enhancement"`
}

// DefaultConfig returns the configuration carried by the embedded rule table
func DefaultConfig() *Config {
	return ConfigFromThresholds(rules.MustDefault().Thresholds)
}

// ConfigFromThresholds copies the rule-file thresholds into a Config
func ConfigFromThresholds(t rules.Thresholds) *Config {
	return &Config{
		Year:                t.DefaultYear,
		MinConfidence:       t.MinConfidence,
		MinAmountLength:     t.MinAmountLength,
		NeighborhoodRadius:  t.NeighborhoodRadius,
		RecoveryRadius:      t.RecoveryRadius,
		MaxSupplementAmount: t.MaxSupplementAmount,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Year < 1970 || c.Year > 9999 {
		return fmt.Errorf("year out of range: %d", c.Year)
	}
	if c.MinConfidence < 0 || c.MinConfidence >= 1 {
		return fmt.Errorf("min confidence must be in [0, 1), got %v", c.MinConfidence)
	}
	if c.MinAmountLength < 0 {
		return fmt.Errorf("min amount length cannot be negative, got %d", c.MinAmountLength)
	}
	if c.NeighborhoodRadius < 0 {
		return fmt.Errorf("neighborhood radius cannot be negative, got %d", c.NeighborhoodRadius)
	}
	if c.RecoveryRadius < 0 {
		return fmt.Errorf("recovery radius cannot be negative, got %d", c.RecoveryRadius)
	}
	if c.MaxSupplementAmount <= 0 {
		return fmt.Errorf("max supplement amount must be positive, got %v", c.MaxSupplementAmount)
	}
	return nil
}

package batch

import (
	"strings"
	"time"

	"golang-transaction-extractor/pkg/errors"
)

// DefaultExtensions are the input files picked up from the input directory
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp", ".pdf", ".json"}

// Config controls how a directory of screenshots is processed
type Config struct {
	Workers     int           `json:"workers" mapstructure:"workers"`
	Extensions  []string      `json:"extensions" mapstructure:"extensions"`
	LogInterval time.Duration `json:"log_interval" mapstructure:"log_interval"`
}

// DefaultConfig processes images one at a time
func DefaultConfig() *Config {
	return &Config{
		Workers:     1,
		Extensions:  append([]string(nil), DefaultExtensions...),
		LogInterval: 5 * time.Second,
	}
}

// Validate checks the batch configuration
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "workers", c.Workers, nil).
			WithSuggestion("use at least one worker")
	}
	if len(c.Extensions) == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "extensions", c.Extensions, nil)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "extensions", ext, nil).
				WithSuggestion("extensions must start with a dot, e.g. .png")
		}
	}
	if c.LogInterval < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log_interval", c.LogInterval, nil)
	}
	return nil
}

package models

import (
	"fmt"
	"regexp"
	"strings"
)

// CategoryRule is one entry of the transaction category taxonomy. A lower
// Priority wins ties.
type CategoryRule struct {
	Name     string   `json:"name" yaml:"name"`
	Priority int      `json:"priority" yaml:"priority"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Patterns []string `json:"patterns" yaml:"patterns"`
}

// Validate performs basic validation on the rule
func (c CategoryRule) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category name cannot be empty")
	}
	if c.Priority < 1 {
		return fmt.Errorf("category %q: priority must be positive, got %d", c.Name, c.Priority)
	}
	if len(c.Keywords) == 0 && len(c.Patterns) == 0 {
		return fmt.Errorf("category %q has neither keywords nor patterns", c.Name)
	}
	for _, p := range c.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("category %q: invalid pattern %q: %w", c.Name, p, err)
		}
	}
	return nil
}

// Package classifier assigns a category from the taxonomy to a transaction
// title.
package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
)

const (
	keywordWeight = 2
	patternWeight = 1
)

type category struct {
	name     string
	priority int
	keywords []string
	patterns []*regexp.Regexp
}

// Score is the weighted hit count of one category
type Score struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
	Priority int    `json:"priority"`
	Keywords int    `json:"keyword_hits"`
	Patterns int    `json:"pattern_hits"`
}

// Classifier scores titles against a fixed category list. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	categories []category
	fallback   rules.FallbackRules
}

// New compiles the categories. Keywords and patterns match case-insensitively.
func New(categories []models.CategoryRule, fallback rules.FallbackRules) (*Classifier, error) {
	c := &Classifier{
		categories: make([]category, 0, len(categories)),
		fallback:   fallback,
	}
	for _, rule := range categories {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		cat := category{name: rule.Name, priority: rule.Priority}
		for _, k := range rule.Keywords {
			if k = strings.ToLower(rules.Fold(k)); k != "" {
				cat.keywords = append(cat.keywords, k)
			}
		}
		for _, p := range rule.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", rule.Name, err)
			}
			cat.patterns = append(cat.patterns, re)
		}
		c.categories = append(c.categories, cat)
	}
	return c, nil
}

// NewFromRules builds a classifier from a loaded rule table
func NewFromRules(r *rules.Rules) (*Classifier, error) {
	return New(r.Categories, r.Fallback)
}

// Classify returns the best category for the title and sub-title. An empty
// title yields the unknown label. When no category scores, the title is
// checked against the income and expense fallback keywords.
func (c *Classifier) Classify(title, subTitle string) string {
	if strings.TrimSpace(title) == "" {
		return c.fallback.Unknown
	}

	scores := c.Scores(title, subTitle)
	if len(scores) > 0 {
		return scores[0].Category
	}

	lowered := normalize(title)
	switch {
	case rules.ContainsAny(lowered, c.fallback.Income.Keywords):
		return c.fallback.Income.Label
	case rules.ContainsAny(lowered, c.fallback.Expense.Keywords):
		return c.fallback.Expense.Label
	default:
		return c.fallback.Other
	}
}

// Scores returns every category with a positive score, best first. Ties on
// score go to the lower priority number.
func (c *Classifier) Scores(title, subTitle string) []Score {
	t := normalize(title)
	s := normalize(subTitle)
	combined := t + " " + s

	var out []Score
	for _, cat := range c.categories {
		sc := Score{Category: cat.name, Priority: cat.priority}
		for _, k := range cat.keywords {
			if strings.Contains(t, k) || strings.Contains(s, k) {
				sc.Keywords++
			}
		}
		for _, re := range cat.patterns {
			if re.MatchString(combined) {
				sc.Patterns++
			}
		}
		sc.Score = keywordWeight*sc.Keywords + patternWeight*sc.Patterns
		if sc.Score > 0 {
			out = append(out, sc)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

func normalize(s string) string {
	return strings.ToLower(rules.Fold(s))
}

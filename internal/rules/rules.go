// Package rules holds the pattern, keyword and category tables that drive
// extraction and classification.
//
// The tables ship as an embedded YAML document. A user file passed to Load is
// decoded on top of the defaults, so it only needs the sections it changes.
// A loaded *Rules is treated as immutable and is safe to share between
// goroutines.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"golang-transaction-extractor/internal/models"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the complete rule table
type Rules struct {
	Version          int                   `yaml:"version"`
	Thresholds       Thresholds            `yaml:"thresholds"`
	TimePatterns     []TimePattern         `yaml:"time_patterns"`
	Anchors          AnchorRules           `yaml:"anchors"`
	Fields           FieldRules            `yaml:"fields"`
	Supplement       SupplementRules       `yaml:"supplement"`
	Recoveries       []RecoveryRule        `yaml:"recoveries"`
	Conflicts        []ConflictRule        `yaml:"conflicts"`
	PaymentInference []InferenceRule       `yaml:"payment_inference"`
	Categories       []models.CategoryRule `yaml:"categories"`
	Fallback         FallbackRules         `yaml:"fallback"`
}

// Thresholds are the tunable numeric limits of the pipeline
type Thresholds struct {
	MinConfidence       float64 `yaml:"min_confidence"`
	MinAmountLength     int     `yaml:"min_amount_length"`
	NeighborhoodRadius  int     `yaml:"neighborhood_radius"`
	RecoveryRadius      int     `yaml:"recovery_radius"`
	MaxSupplementAmount float64 `yaml:"max_supplement_amount"`
	DefaultYear         int     `yaml:"default_year"`
}

// TimePattern is a timestamp regex with four capture groups: month, day,
// hour and minute.
type TimePattern struct {
	Name  string  `yaml:"name"`
	Regex Pattern `yaml:"regex"`
}

// Clock is a fixed month/day/hour/minute used for placeholder timestamps
type Clock struct {
	Month  string `yaml:"month"`
	Day    string `yaml:"day"`
	Hour   string `yaml:"hour"`
	Minute string `yaml:"minute"`
}

// Anchor builds a time anchor at index carrying this clock
func (c Clock) Anchor(index int, tier models.DetectionTier) models.TimeAnchor {
	return models.NewTimeAnchor(index, c.Month, c.Day, c.Hour, c.Minute, tier)
}

// AnchorRules configure the fallback anchor tiers
type AnchorRules struct {
	ContextKeywords []string `yaml:"context_keywords"`
	// ContextPatterns are tried around keyword fragments when no fragment
	// matched TimePatterns. Empty means reuse TimePatterns.
	ContextPatterns []TimePattern  `yaml:"context_patterns"`
	Synthetic       SyntheticRules `yaml:"synthetic"`
}

// SyntheticRules select fragments that become placeholder anchors
type SyntheticRules struct {
	AmountPattern  Pattern `yaml:"amount_pattern"`
	BalancePattern Pattern `yaml:"balance_pattern"`
	Month          string  `yaml:"month"`
	Day            string  `yaml:"day"`
	Minute         string  `yaml:"minute"`
}

// FieldRules drive per-window field extraction
type FieldRules struct {
	OutflowPatterns          []Pattern `yaml:"outflow_patterns"`
	InflowPatterns           []Pattern `yaml:"inflow_patterns"`
	BalancePatterns          []Pattern `yaml:"balance_patterns"`
	PaymentKeywords          []string  `yaml:"payment_keywords"`
	AccountPatterns          []Pattern `yaml:"account_patterns"`
	AccountPrefix            string    `yaml:"account_prefix"`
	NonTitlePattern          Pattern   `yaml:"non_title_pattern"`
	TitleFromPaymentKeywords []string  `yaml:"title_from_payment_keywords"`
	TitleSeparator           string    `yaml:"title_separator"`
	SubtitleKeywords         []string  `yaml:"subtitle_keywords"`
}

// SupplementRules drive the missed-transaction scan
type SupplementRules struct {
	Keywords             []string  `yaml:"keywords"`
	Placeholder          Clock     `yaml:"placeholder"`
	AmountPattern        Pattern   `yaml:"amount_pattern"`
	BalancePattern       Pattern   `yaml:"balance_pattern"`
	AccountPattern       Pattern   `yaml:"account_pattern"`
	PaymentKeywords      []string  `yaml:"payment_keywords"`
	RejectAmountPatterns []Pattern `yaml:"reject_amount_patterns"`
}

// RecoveryRule describes a record that should exist and how to rebuild it
// from the neighbourhood of Keyword when it is missing.
type RecoveryRule struct {
	Keyword         string   `yaml:"keyword"`
	Title           string   `yaml:"title"`
	When            Clock    `yaml:"when"`
	PreferredAmount string   `yaml:"preferred_amount"`
	SubtitleMarkers []string `yaml:"subtitle_markers"`
}

// ConflictRule resolves duplicate candidates for one event. Records whose
// title and datetime match keep only the PreferredAmount variant. With Strict
// unset, other variants survive when no preferred variant is present.
type ConflictRule struct {
	Title           Pattern `yaml:"title"`
	Datetime        Pattern `yaml:"datetime"`
	PreferredAmount string  `yaml:"preferred_amount"`
	Strict          bool    `yaml:"strict"`
}

// Matches reports whether the rule applies to a record
func (c ConflictRule) Matches(r *models.TransactionRecord) bool {
	return c.Title.MatchString(r.Title) && c.Datetime.MatchString(r.DatetimeLabel)
}

// InferenceRule maps a title substring to a payment method
type InferenceRule struct {
	Contains string `yaml:"contains"`
	Method   string `yaml:"method"`
}

// FallbackRules label records no category scored for
type FallbackRules struct {
	Unknown string          `yaml:"unknown"`
	Income  KeywordFallback `yaml:"income"`
	Expense KeywordFallback `yaml:"expense"`
	Other   string          `yaml:"other"`
}

// KeywordFallback assigns Label when the title contains any keyword
type KeywordFallback struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

var (
	defaultOnce sync.Once
	defaultSet  *Rules
	defaultErr  error
)

// Default returns the embedded rule table. The result is shared; do not
// modify it.
func Default() (*Rules, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(nil)
	})
	return defaultSet, defaultErr
}

// MustDefault is Default for callers that cannot recover from a broken
// embedded table, such as tests.
func MustDefault() *Rules {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Load returns the default table with the file at path decoded on top.
// An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes override on top of the embedded defaults and validates the
// result. A nil override yields the defaults.
func Parse(override []byte) (*Rules, error) {
	r := &Rules{}
	if err := decode(defaultRules, r); err != nil {
		return nil, fmt.Errorf("embedded rules: %w", err)
	}
	if len(bytes.TrimSpace(override)) > 0 {
		if err := decode(override, r); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(data []byte, r *Rules) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Write encodes the table as YAML
func (r *Rules) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks that the table is usable by the pipeline
func (r *Rules) Validate() error {
	t := r.Thresholds
	if t.MinConfidence < 0 || t.MinConfidence >= 1 {
		return fmt.Errorf("thresholds.min_confidence must be in [0, 1), got %v", t.MinConfidence)
	}
	if t.MinAmountLength < 0 {
		return fmt.Errorf("thresholds.min_amount_length cannot be negative")
	}
	if t.NeighborhoodRadius < 0 || t.RecoveryRadius < 0 {
		return fmt.Errorf("thresholds radii cannot be negative")
	}
	if t.MaxSupplementAmount <= 0 {
		return fmt.Errorf("thresholds.max_supplement_amount must be positive")
	}
	if t.DefaultYear < 1970 || t.DefaultYear > 9999 {
		return fmt.Errorf("thresholds.default_year out of range: %d", t.DefaultYear)
	}

	if len(r.TimePatterns) == 0 {
		return fmt.Errorf("at least one time pattern is required")
	}
	for _, tp := range append(append([]TimePattern(nil), r.TimePatterns...), r.Anchors.ContextPatterns...) {
		if err := tp.Regex.requireGroups(4); err != nil {
			return fmt.Errorf("time pattern %q: %w", tp.Name, err)
		}
	}

	groups := map[string][]Pattern{
		"fields.outflow_patterns":           r.Fields.OutflowPatterns,
		"fields.inflow_patterns":            r.Fields.InflowPatterns,
		"fields.balance_patterns":           r.Fields.BalancePatterns,
		"fields.account_patterns":           r.Fields.AccountPatterns,
		"supplement.amount_pattern":         {r.Supplement.AmountPattern},
		"supplement.balance_pattern":        {r.Supplement.BalancePattern},
		"supplement.account_pattern":        {r.Supplement.AccountPattern},
		"anchors.synthetic.amount_pattern":  {r.Anchors.Synthetic.AmountPattern},
		"anchors.synthetic.balance_pattern": {r.Anchors.Synthetic.BalancePattern},
	}
	for name, patterns := range groups {
		for _, p := range patterns {
			if err := p.requireGroups(1); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	if r.Fields.NonTitlePattern.IsZero() {
		return fmt.Errorf("fields.non_title_pattern is required")
	}
	if err := validateClock("supplement.placeholder", r.Supplement.Placeholder); err != nil {
		return err
	}

	for i, rec := range r.Recoveries {
		if rec.Keyword == "" || rec.Title == "" || rec.PreferredAmount == "" {
			return fmt.Errorf("recoveries[%d]: keyword, title and preferred_amount are required", i)
		}
		if _, err := models.ParseAmount(rec.PreferredAmount); err != nil {
			return fmt.Errorf("recoveries[%d]: %w", i, err)
		}
		if err := validateClock(fmt.Sprintf("recoveries[%d].when", i), rec.When); err != nil {
			return err
		}
	}
	for i, c := range r.Conflicts {
		if c.Title.IsZero() || c.Datetime.IsZero() || c.PreferredAmount == "" {
			return fmt.Errorf("conflicts[%d]: title, datetime and preferred_amount are required", i)
		}
	}

	if len(r.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	seen := make(map[string]bool)
	for _, c := range r.Categories {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	if r.Fallback.Unknown == "" || r.Fallback.Other == "" || r.Fallback.Income.Label == "" || r.Fallback.Expense.Label == "" {
		return fmt.Errorf("fallback labels cannot be empty")
	}

	return nil
}

func validateClock(name string, c Clock) error {
	if err := models.ValidateClock(c.Month, c.Day, c.Hour, c.Minute); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Pattern is a regular expression compiled while the table is decoded
type Pattern struct {
	re *regexp.Regexp
}

// MustPattern compiles expr or panics
func MustPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// UnmarshalYAML compiles the scalar expression
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	var expr string
	if err := node.Decode(&expr); err != nil {
		return err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	p.re = re
	return nil
}

// MarshalYAML writes the source expression back out
func (p Pattern) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// IsZero reports whether no expression was set
func (p Pattern) IsZero() bool {
	return p.re == nil
}

// String returns the source expression
func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

// MatchString reports whether s contains a match
func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// FindStringSubmatch returns the leftmost match and its groups
func (p Pattern) FindStringSubmatch(s string) []string {
	if p.re == nil {
		return nil
	}
	return p.re.FindStringSubmatch(s)
}

// Capture returns the first capture group of the leftmost match
func (p Pattern) Capture(s string) (string, bool) {
	m := p.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

func (p Pattern) requireGroups(n int) error {
	if p.re == nil {
		return fmt.Errorf("pattern is empty")
	}
	if got := p.re.NumSubexp(); got < n {
		return fmt.Errorf("pattern %q has %d capture groups, need %d", p.re.String(), got, n)
	}
	return nil
}

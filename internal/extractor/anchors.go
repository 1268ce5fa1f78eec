package extractor

import (
	"fmt"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/logger"
)

// AnchorStrategy is one tier of the anchor detection cascade. Attempt
// receives width-folded fragment texts and reports whether it produced any
// anchors.
type AnchorStrategy interface {
	Tier() models.DetectionTier
	Attempt(texts []string) ([]models.TimeAnchor, bool)
}

// timestampMatcher applies the ordered time patterns to one fragment
type timestampMatcher struct {
	patterns []rules.TimePattern
}

// match returns an anchor for the first pattern whose components are in
// range. A pattern that matches with out-of-range components falls through
// to the next one.
func (m timestampMatcher) match(text string, index int, tier models.DetectionTier) (models.TimeAnchor, bool) {
	for _, tp := range m.patterns {
		g := tp.Regex.FindStringSubmatch(text)
		if len(g) < 5 {
			continue
		}
		if err := models.ValidateClock(g[1], g[2], g[3], g[4]); err != nil {
			continue
		}
		a := models.NewTimeAnchor(index, g[1], g[2], g[3], g[4], tier)
		a.Pattern = tp.Name
		return a, true
	}
	return models.TimeAnchor{}, false
}

// looksLikeTimestamp reports whether any time pattern matches, in range or not
func (m timestampMatcher) looksLikeTimestamp(text string) bool {
	for _, tp := range m.patterns {
		if tp.Regex.MatchString(text) {
			return true
		}
	}
	return false
}

// PatternStrategy anchors every fragment that carries a valid timestamp
type PatternStrategy struct {
	matcher timestampMatcher
}

func (s PatternStrategy) Tier() models.DetectionTier { return models.TierPattern }

func (s PatternStrategy) Attempt(texts []string) ([]models.TimeAnchor, bool) {
	var anchors []models.TimeAnchor
	for i, text := range texts {
		if a, ok := s.matcher.match(text, i, models.TierPattern); ok {
			anchors = append(anchors, a)
		}
	}
	return anchors, len(anchors) > 0
}

// ContextFallbackStrategy borrows one timestamp from the neighbourhood of the
// first keyword fragment that has one.
type ContextFallbackStrategy struct {
	matcher  timestampMatcher
	keywords []string
	radius   int
}

func (s ContextFallbackStrategy) Tier() models.DetectionTier { return models.TierContextFallback }

func (s ContextFallbackStrategy) Attempt(texts []string) ([]models.TimeAnchor, bool) {
	for i, text := range texts {
		if !rules.ContainsAny(text, s.keywords) {
			continue
		}
		from, to := neighborhood(i, s.radius, len(texts))
		for j := from; j < to; j++ {
			if j == i {
				continue
			}
			if a, ok := s.matcher.match(texts[j], j, models.TierContextFallback); ok {
				return []models.TimeAnchor{a}, true
			}
		}
	}
	return nil, false
}

// SyntheticStrategy turns every transaction-looking fragment into an anchor
// with a placeholder date. The hour is the fragment's ordinal among such
// fragments, capped at 23.
type SyntheticStrategy struct {
	keywords []string
	amount   rules.Pattern
	balance  rules.Pattern
	month    string
	day      string
	minute   string
}

func (s SyntheticStrategy) Tier() models.DetectionTier { return models.TierSynthetic }

func (s SyntheticStrategy) Attempt(texts []string) ([]models.TimeAnchor, bool) {
	var anchors []models.TimeAnchor
	for i, text := range texts {
		if !rules.ContainsAny(text, s.keywords) && !s.amount.MatchString(text) && !s.balance.MatchString(text) {
			continue
		}
		hour := len(anchors)
		if hour > 23 {
			hour = 23
		}
		a := models.NewTimeAnchor(i, s.month, s.day, fmt.Sprintf("%02d", hour), s.minute, models.TierSynthetic)
		a.Pattern = "synthetic"
		anchors = append(anchors, a)
	}
	return anchors, len(anchors) > 0
}

// AnchorDetector runs the strategies in order and keeps the first result
type AnchorDetector struct {
	strategies []AnchorStrategy
	logger     logger.Logger
}

// NewAnchorDetector builds the pattern, context-fallback and synthetic tiers
func NewAnchorDetector(r *rules.Rules, radius int, log logger.Logger) *AnchorDetector {
	matcher := timestampMatcher{patterns: r.TimePatterns}
	context := matcher
	if len(r.Anchors.ContextPatterns) > 0 {
		context = timestampMatcher{patterns: r.Anchors.ContextPatterns}
	}
	syn := r.Anchors.Synthetic
	return NewAnchorDetectorWithStrategies(log,
		PatternStrategy{matcher: matcher},
		ContextFallbackStrategy{matcher: context, keywords: r.Anchors.ContextKeywords, radius: radius},
		SyntheticStrategy{
			keywords: r.Anchors.ContextKeywords,
			amount:   syn.AmountPattern,
			balance:  syn.BalancePattern,
			month:    syn.Month,
			day:      syn.Day,
			minute:   syn.Minute,
		},
	)
}

// NewAnchorDetectorWithStrategies builds a detector from explicit strategies
func NewAnchorDetectorWithStrategies(log logger.Logger, strategies ...AnchorStrategy) *AnchorDetector {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &AnchorDetector{strategies: strategies, logger: log.WithComponent("anchor_detector")}
}

// Detect returns the anchors of the first tier that finds any
func (d *AnchorDetector) Detect(texts []string) ([]models.TimeAnchor, models.DetectionTier, bool) {
	for _, s := range d.strategies {
		anchors, ok := s.Attempt(texts)
		if !ok {
			d.logger.WithField("tier", s.Tier().String()).Debug("No anchors from tier")
			continue
		}
		d.logger.WithFields(logger.Fields{
			"tier":    s.Tier().String(),
			"anchors": len(anchors),
		}).Debug("Anchors detected")
		return anchors, s.Tier(), true
	}
	return nil, models.TierSynthetic, false
}

// neighborhood returns the half-open index range [i-radius, i+radius] clamped to n
func neighborhood(i, radius, n int) (int, int) {
	from := i - radius
	if from < 0 {
		from = 0
	}
	to := i + radius + 1
	if to > n {
		to = n
	}
	return from, to
}

package extractor

import (
	"strings"

	"github.com/shopspring/decimal"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/logger"
)

// SupplementStats counts records added by each pass
type SupplementStats struct {
	Supplemented int `json:"supplemented"`
	Recovered    int `json:"recovered"`
}

// SupplementScanner recovers transactions that segmentation missed
type SupplementScanner struct {
	rules          rules.SupplementRules
	recoveries     []rules.RecoveryRule
	accountPrefix  string
	radius         int
	recoveryRadius int
	maxAmount      decimal.Decimal
	year           int
	logger         logger.Logger
}

// NewSupplementScanner builds the scanner for the given rules and config
func NewSupplementScanner(r *rules.Rules, cfg *Config, log logger.Logger) *SupplementScanner {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &SupplementScanner{
		rules:          r.Supplement,
		recoveries:     r.Recoveries,
		accountPrefix:  r.Fields.AccountPrefix,
		radius:         cfg.NeighborhoodRadius,
		recoveryRadius: cfg.RecoveryRadius,
		maxAmount:      decimal.NewFromFloat(cfg.MaxSupplementAmount),
		year:           cfg.Year,
		logger:         log.WithComponent("supplement_scanner"),
	}
}

// Scan appends records found by the keyword pass and the recovery pass to
// existing and returns the combined list.
func (s *SupplementScanner) Scan(stream *models.TextBlockStream, existing []*models.TransactionRecord) ([]*models.TransactionRecord, SupplementStats) {
	raw := stream.Texts()
	folded := make([]string, len(raw))
	for i, t := range raw {
		folded[i] = rules.Fold(t)
	}

	var stats SupplementStats
	out := s.keywordPass(raw, folded, existing, &stats)
	out = s.recoveryPass(raw, folded, out, &stats)
	return out, stats
}

// keywordPass seeds a placeholder record for every keyword fragment whose
// text is not already a title and keeps it when the neighbourhood yields an
// amount or a balance.
func (s *SupplementScanner) keywordPass(raw, folded []string, existing []*models.TransactionRecord, stats *SupplementStats) []*models.TransactionRecord {
	titles := make(map[string]bool, len(existing))
	for _, r := range existing {
		titles[r.Title] = true
	}

	out := existing
	for i, text := range folded {
		if !rules.ContainsAny(text, s.rules.Keywords) || titles[raw[i]] {
			continue
		}

		rec := models.NewRecordFromAnchor(s.rules.Placeholder.Anchor(i, models.TierSynthetic), s.year)
		rec.Title = raw[i]
		rec.Origin = models.OriginSupplement

		from, to := neighborhood(i, s.radius, len(folded))
		for j := from; j < to; j++ {
			if v, ok := s.plausibleAmount(folded[j]); ok {
				rec.Amount = "-" + v
			}
			s.fillCommon(rec, raw[j], folded[j])
		}

		if rec.Amount == "" && rec.Balance == "" {
			continue
		}
		s.logger.WithFields(logger.Fields{
			"title":    rec.Title,
			"position": i,
			"amount":   rec.Amount,
		}).Debug("Supplemented missed transaction")
		out = append(out, rec)
		stats.Supplemented++
	}
	return out
}

// recoveryPass rebuilds each configured record that is absent. The rule's
// preferred amount wins over any other candidate in the window.
func (s *SupplementScanner) recoveryPass(raw, folded []string, records []*models.TransactionRecord, stats *SupplementStats) []*models.TransactionRecord {
	for _, rule := range s.recoveries {
		label := rule.When.Anchor(0, models.TierSynthetic).DatetimeLabel
		if hasRecord(records, rule.Title, label, rule.PreferredAmount) {
			continue
		}

		for i, text := range folded {
			if !strings.Contains(text, rule.Keyword) {
				continue
			}

			rec := models.NewRecordFromAnchor(rule.When.Anchor(i, models.TierSynthetic), s.year)
			rec.Title = rule.Title
			rec.Origin = models.OriginRecovery

			preferred := false
			from, to := neighborhood(i, s.recoveryRadius, len(folded))
			for j := from; j < to; j++ {
				if v, ok := s.rules.AmountPattern.Capture(folded[j]); ok {
					candidate := "-" + strings.ReplaceAll(v, ",", "")
					switch {
					case candidate == rule.PreferredAmount:
						rec.Amount = candidate
						preferred = true
					case !preferred && rec.Amount == "":
						if v, ok := s.plausibleAmount(folded[j]); ok {
							rec.Amount = "-" + v
						}
					}
				}
				s.fillCommon(rec, raw[j], folded[j])
				if len(rule.SubtitleMarkers) > 0 && containsAll(folded[j], rule.SubtitleMarkers) {
					rec.SubTitle = raw[j]
				}
			}

			if rec.Amount == "" || rec.Balance == "" {
				continue
			}
			s.logger.WithFields(logger.Fields{
				"title":     rec.Title,
				"amount":    rec.Amount,
				"preferred": preferred,
			}).Debug("Recovered expected transaction")
			records = append(records, rec)
			stats.Recovered++
			break
		}
	}
	return records
}

// fillCommon applies the balance, account and payment-method rules shared by
// both passes. Later neighbours overwrite earlier ones.
func (s *SupplementScanner) fillCommon(rec *models.TransactionRecord, raw, folded string) {
	if v, ok := s.rules.BalancePattern.Capture(folded); ok {
		if b, ok := models.NormalizeAmount(v); ok {
			rec.Balance = b
		}
	}
	if digits, ok := s.rules.AccountPattern.Capture(folded); ok {
		rec.Account = s.accountPrefix + digits
	}
	if rules.ContainsAny(folded, s.rules.PaymentKeywords) {
		rec.PaymentMethod = raw
	}
}

// plausibleAmount accepts a captured outflow that is positive, below the
// ceiling and not shaped like a date or clock reading.
func (s *SupplementScanner) plausibleAmount(text string) (string, bool) {
	v, ok := s.rules.AmountPattern.Capture(text)
	if !ok {
		return "", false
	}
	cleaned, ok := models.NormalizeAmount(v)
	if !ok {
		return "", false
	}
	for _, reject := range s.rules.RejectAmountPatterns {
		if reject.MatchString(cleaned) {
			return "", false
		}
	}
	if d, err := decimal.NewFromString(cleaned); err != nil || !d.LessThan(s.maxAmount) {
		return "", false
	}
	return cleaned, true
}

func hasRecord(records []*models.TransactionRecord, title, datetime, amount string) bool {
	for _, r := range records {
		if r.Title == title && r.DatetimeLabel == datetime && r.Amount == amount {
			return true
		}
	}
	return false
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

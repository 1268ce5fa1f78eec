package extractor

import (
	"strings"
	"unicode/utf8"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
)

// AmountStrategy reads a signed amount from one folded fragment
type AmountStrategy interface {
	Attempt(text string) (string, bool)
}

// patternAmount captures a number with a regex. The capture must be longer
// than minLength characters and positive.
type patternAmount struct {
	pattern   rules.Pattern
	sign      string
	minLength int
}

func (s patternAmount) Attempt(text string) (string, bool) {
	raw, ok := s.pattern.Capture(text)
	if !ok || len(raw) <= s.minLength {
		return "", false
	}
	v, ok := models.NormalizeAmount(raw)
	if !ok {
		return "", false
	}
	return s.sign + v, true
}

func amountStrategies(patterns []rules.Pattern, sign string, minLength int) []AmountStrategy {
	out := make([]AmountStrategy, len(patterns))
	for i, p := range patterns {
		out[i] = patternAmount{pattern: p, sign: sign, minLength: minLength}
	}
	return out
}

func firstAmount(strategies []AmountStrategy, text string) (string, bool) {
	for _, s := range strategies {
		if v, ok := s.Attempt(text); ok {
			return v, true
		}
	}
	return "", false
}

// FieldExtractor fills a record from the fragments of one segment
type FieldExtractor struct {
	fields     rules.FieldRules
	timestamps timestampMatcher
	outflow    []AmountStrategy
	inflow     []AmountStrategy
	balance    []AmountStrategy
	year       int
}

// NewFieldExtractor builds the extractor for the given rules and config
func NewFieldExtractor(r *rules.Rules, cfg *Config) *FieldExtractor {
	return &FieldExtractor{
		fields:     r.Fields,
		timestamps: timestampMatcher{patterns: append(append([]rules.TimePattern(nil), r.TimePatterns...), r.Anchors.ContextPatterns...)},
		outflow:    amountStrategies(r.Fields.OutflowPatterns, "-", cfg.MinAmountLength),
		inflow:     amountStrategies(r.Fields.InflowPatterns, "+", 0),
		balance:    amountStrategies(r.Fields.BalancePatterns, "", 0),
		year:       cfg.Year,
	}
}

// Extract builds a record for the segment. The record may have an empty
// title, in which case the caller drops it.
func (e *FieldExtractor) Extract(seg Segment) *models.TransactionRecord {
	rec := models.NewRecordFromAnchor(seg.Anchor, e.year)

	for _, f := range seg.Fragments {
		raw := f.Text
		text := rules.Fold(raw)
		if e.timestamps.looksLikeTimestamp(text) {
			continue
		}

		if rec.Amount == "" {
			if v, ok := firstAmount(e.outflow, text); ok {
				rec.Amount = v
			} else if v, ok := firstAmount(e.inflow, text); ok {
				rec.Amount = v
			}
		}
		if v, ok := firstAmount(e.balance, text); ok {
			rec.Balance = v
		}
		if rules.ContainsAny(text, e.fields.PaymentKeywords) {
			rec.PaymentMethod = raw
		}
		if acct, ok := e.account(text); ok {
			rec.Account = acct
		}

		if e.isTitleCandidate(raw, text) {
			if rec.Title == "" {
				rec.Title = raw
			} else if rec.SubTitle == "" {
				rec.SubTitle = raw
			}
		}
	}

	if rec.Title == "" && rec.PaymentMethod != "" {
		rec.Title = e.titleFromPayment(rec.PaymentMethod)
	}
	if rec.SubTitle == "" {
		rec.SubTitle = e.backfillSubTitle(seg.Fragments, rec)
	}
	return rec
}

func (e *FieldExtractor) account(text string) (string, bool) {
	for _, p := range e.fields.AccountPatterns {
		if digits, ok := p.Capture(text); ok {
			return e.fields.AccountPrefix + digits, true
		}
	}
	return "", false
}

func (e *FieldExtractor) isTitleCandidate(raw, folded string) bool {
	return utf8.RuneCountInString(raw) > 2 && !e.fields.NonTitlePattern.MatchString(folded)
}

// titleFromPayment takes the text after the first separator of a wallet
// payment line such as "微信支付-美团外卖".
func (e *FieldExtractor) titleFromPayment(payment string) string {
	if e.fields.TitleSeparator == "" || !rules.ContainsAny(rules.Fold(payment), e.fields.TitleFromPaymentKeywords) {
		return ""
	}
	parts := strings.Split(payment, e.fields.TitleSeparator)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (e *FieldExtractor) backfillSubTitle(fragments []models.TextFragment, rec *models.TransactionRecord) string {
	for _, f := range fragments {
		raw := f.Text
		if raw == rec.Title || raw == rec.PaymentMethod || raw == rec.Account {
			continue
		}
		text := rules.Fold(raw)
		if !e.isTitleCandidate(raw, text) || e.timestamps.looksLikeTimestamp(text) {
			continue
		}
		if rules.ContainsAny(text, e.fields.SubtitleKeywords) {
			return raw
		}
	}
	return ""
}

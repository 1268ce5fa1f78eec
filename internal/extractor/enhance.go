package extractor

import (
	"strings"

	"golang-transaction-extractor/internal/classifier"
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
)

// Enhancer back-fills fields that can be inferred from the title and assigns
// a category
type Enhancer struct {
	accountPattern rules.Pattern
	accountPrefix  string
	inference      []rules.InferenceRule
	classifier     *classifier.Classifier
}

// NewEnhancer creates an enhancer. A nil classifier leaves the type empty.
func NewEnhancer(r *rules.Rules, c *classifier.Classifier) *Enhancer {
	return &Enhancer{
		accountPattern: r.Supplement.AccountPattern,
		accountPrefix:  r.Fields.AccountPrefix,
		inference:      r.PaymentInference,
		classifier:     c,
	}
}

// Enhance returns a filled-in copy of rec; the input is not modified. An
// account number in the title replaces Account only when SubTitle is empty.
func (e *Enhancer) Enhance(rec *models.TransactionRecord) *models.TransactionRecord {
	out := *rec
	folded := rules.Fold(out.Title)

	if out.SubTitle == "" && out.Title != "" {
		if digits, ok := e.accountPattern.Capture(folded); ok {
			out.Account = e.accountPrefix + digits
			out.SubTitle = out.Account
		}
	}

	if out.PaymentMethod == "" {
		for _, rule := range e.inference {
			if rule.Contains != "" && strings.Contains(folded, rule.Contains) {
				out.PaymentMethod = rule.Method
				break
			}
		}
	}

	if out.TransactionType == "" && e.classifier != nil {
		out.TransactionType = e.classifier.Classify(out.Title, out.SubTitle)
	}
	return &out
}

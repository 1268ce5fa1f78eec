package reporter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/internal/models"
)

// EmptyLabel replaces a missing type or payment method in counts and exports
const EmptyLabel = "未知"

// Count is one row of a value-count table
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary is the data summary written next to the records
type Summary struct {
	TotalRecords    int             `json:"total_records"`
	TitledRecords   int             `json:"titled_records"`
	RecognitionRate float64         `json:"recognition_rate"`
	TypeCounts      []Count         `json:"type_counts"`
	PaymentCounts   []Count         `json:"payment_counts"`
	Inflow          decimal.Decimal `json:"inflow"`
	Outflow         decimal.Decimal `json:"outflow"`
	Net             decimal.Decimal `json:"net"`
}

// BuildSummary counts records per type and payment method and totals the
// signed amounts.
func BuildSummary(records []*models.TransactionRecord) *Summary {
	s := &Summary{
		TotalRecords:    len(records),
		RecognitionRate: batch.RecognitionRate(records),
		Inflow:          decimal.Zero,
		Outflow:         decimal.Zero,
	}

	for _, r := range records {
		if r.HasTitle() {
			s.TitledRecords++
		}
		amount := r.AmountValue()
		switch {
		case amount.IsPositive():
			s.Inflow = s.Inflow.Add(amount)
		case amount.IsNegative():
			s.Outflow = s.Outflow.Add(amount)
		}
	}
	s.Net = s.Inflow.Add(s.Outflow)

	s.TypeCounts = countBy(records, func(r *models.TransactionRecord) string { return r.TransactionType })
	s.PaymentCounts = countBy(records, func(r *models.TransactionRecord) string { return r.PaymentMethod })
	return s
}

// RecognitionRateString formats the rate with one decimal
func (s *Summary) RecognitionRateString() string {
	return fmt.Sprintf("%.1f%%", s.RecognitionRate)
}

// countBy returns value counts ordered by count, ties in first-seen order
func countBy(records []*models.TransactionRecord, key func(*models.TransactionRecord) string) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, r := range records {
		label := labelOrEmpty(key(r))
		if i, ok := index[label]; ok {
			counts[i].Count++
			continue
		}
		index[label] = len(counts)
		counts = append(counts, Count{Label: label, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func labelOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return EmptyLabel
	}
	return s
}

func formatCounts(counts []Count) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s: %d", c.Label, c.Count)
	}
	return strings.Join(parts, ", ")
}

// Package quality measures how complete the extracted records are and flags
// malformed values.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"golang-transaction-extractor/internal/models"
)

// FieldCompleteness is one row of the completeness report
type FieldCompleteness struct {
	Field    string  `json:"field"`
	Label    string  `json:"label"`
	Complete int     `json:"complete"`
	Total    int     `json:"total"`
	Rate     float64 `json:"rate"`
}

// RateString formats the rate with one decimal, e.g. "87.5%"
func (f FieldCompleteness) RateString() string {
	return fmt.Sprintf("%.1f%%", f.Rate)
}

// Report holds per-field completeness and the overall mean rate. Rates are
// percentages in [0, 100].
type Report struct {
	Fields  []FieldCompleteness `json:"fields"`
	Overall float64             `json:"overall"`
	Total   int                 `json:"total"`
}

// OverallLabel names the aggregate row in Rows
const OverallLabel = "整体数据质量"

// IsEmpty returns true when the report covers no records
func (r *Report) IsEmpty() bool {
	return r == nil || r.Total == 0
}

// Rows returns the field rows followed by the aggregate row
func (r *Report) Rows() []FieldCompleteness {
	if r.IsEmpty() {
		return nil
	}
	rows := append([]FieldCompleteness(nil), r.Fields...)
	return append(rows, FieldCompleteness{
		Field: "overall",
		Label: OverallLabel,
		Total: r.Total,
		Rate:  r.Overall,
	})
}

type field struct {
	name  string
	label string
	value func(*models.TransactionRecord) string
}

var fields = []field{
	{"title", "交易标题", func(r *models.TransactionRecord) string { return r.Title }},
	{"datetime", "交易时间", func(r *models.TransactionRecord) string { return r.DatetimeLabel }},
	{"amount", "交易金额", func(r *models.TransactionRecord) string { return r.Amount }},
	{"balance", "账户余额", func(r *models.TransactionRecord) string { return r.Balance }},
	{"payment_method", "支付方式", func(r *models.TransactionRecord) string { return r.PaymentMethod }},
	{"account", "关联账户", func(r *models.TransactionRecord) string { return r.Account }},
	{"transaction_type", "交易类型", func(r *models.TransactionRecord) string { return r.TransactionType }},
}

// Auditor computes completeness reports. It has no state.
type Auditor struct{}

// NewAuditor creates an auditor
func NewAuditor() *Auditor {
	return &Auditor{}
}

// Audit reports the share of records with a non-empty value per field. An
// empty input yields an empty report.
func (a *Auditor) Audit(records []*models.TransactionRecord) *Report {
	report := &Report{}
	var present []*models.TransactionRecord
	for _, r := range records {
		if r != nil {
			present = append(present, r)
		}
	}
	if len(present) == 0 {
		return report
	}

	report.Total = len(present)
	var sum float64
	for _, f := range fields {
		row := FieldCompleteness{Field: f.name, Label: f.label, Total: report.Total}
		for _, r := range present {
			if strings.TrimSpace(f.value(r)) != "" {
				row.Complete++
			}
		}
		row.Rate = float64(row.Complete) / float64(row.Total) * 100
		sum += row.Rate
		report.Fields = append(report.Fields, row)
	}
	report.Overall = sum / float64(len(fields))
	return report
}

// Issue is one validation finding on a record
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (i Issue) String() string {
	if i.Value == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Message, i.Value)
}

var (
	amountFormat   = regexp.MustCompile(`^[+-]?[\d,]+\.?\d*$`)
	balanceFormat  = regexp.MustCompile(`^[\d,]+\.?\d*$`)
	datetimeFormat = regexp.MustCompile(`^\d{2}-\d{2}\s+\d{2}:\d{2}$`)
)

// Validate lists missing required fields and malformed values. Empty
// optional fields are not issues.
func Validate(r *models.TransactionRecord) []Issue {
	var issues []Issue
	if r.Title == "" {
		issues = append(issues, Issue{Field: "title", Message: "缺少交易标题"})
	}
	if r.DatetimeLabel == "" {
		issues = append(issues, Issue{Field: "datetime", Message: "缺少交易时间"})
	}
	if r.Amount != "" && !amountFormat.MatchString(r.Amount) {
		issues = append(issues, Issue{Field: "amount", Message: "金额格式不正确", Value: r.Amount})
	}
	if r.Balance != "" && !balanceFormat.MatchString(r.Balance) {
		issues = append(issues, Issue{Field: "balance", Message: "余额格式不正确", Value: r.Balance})
	}
	if r.DatetimeLabel != "" && !datetimeFormat.MatchString(r.DatetimeLabel) {
		issues = append(issues, Issue{Field: "datetime", Message: "时间格式不正确", Value: r.DatetimeLabel})
	}
	return issues
}

// CompleteCount returns how many records have no validation issues
func CompleteCount(records []*models.TransactionRecord) int {
	n := 0
	for _, r := range records {
		if r != nil && len(Validate(r)) == 0 {
			n++
		}
	}
	return n
}

package quality

import (
	"math"
	"testing"

	"golang-transaction-extractor/internal/models"
)

func fullRecord() *models.TransactionRecord {
	return &models.TransactionRecord{
		Title:           "还车贷（含智能还贷）",
		DatetimeLabel:   "07-30 15:36",
		Amount:          "-2000.00",
		Balance:         "8888.88",
		PaymentMethod:   "储蓄卡6842",
		Account:         "储蓄卡6842",
		TransactionType: "还款",
	}
}

func TestAuditEmpty(t *testing.T) {
	report := NewAuditor().Audit(nil)
	if !report.IsEmpty() {
		t.Error("expected empty report")
	}
	if len(report.Fields) != 0 || report.Rows() != nil {
		t.Errorf("expected no rows, got %v", report.Fields)
	}
}

func TestAudit(t *testing.T) {
	partial := fullRecord()
	partial.Balance = ""
	partial.PaymentMethod = ""
	partial.Account = ""

	report := NewAuditor().Audit([]*models.TransactionRecord{fullRecord(), partial})

	if report.Total != 2 {
		t.Fatalf("expected total 2, got %d", report.Total)
	}
	if len(report.Fields) != 7 {
		t.Fatalf("expected 7 field rows, got %d", len(report.Fields))
	}

	expected := map[string]float64{
		"title":            100,
		"datetime":         100,
		"amount":           100,
		"balance":          50,
		"payment_method":   50,
		"account":          50,
		"transaction_type": 100,
	}
	for _, row := range report.Fields {
		if row.Rate != expected[row.Field] {
			t.Errorf("field %s: expected rate %.1f, got %.1f", row.Field, expected[row.Field], row.Rate)
		}
		if row.Label == "" {
			t.Errorf("field %s has no label", row.Field)
		}
	}

	wantOverall := (100.0*4 + 50*3) / 7
	if math.Abs(report.Overall-wantOverall) > 1e-9 {
		t.Errorf("expected overall %.4f, got %.4f", wantOverall, report.Overall)
	}

	rows := report.Rows()
	if len(rows) != 8 || rows[7].Label != OverallLabel {
		t.Errorf("expected aggregate row last, got %+v", rows[len(rows)-1])
	}
	if rows[3].RateString() != "50.0%" {
		t.Errorf("expected 50.0%%, got %s", rows[3].RateString())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*models.TransactionRecord)
		expectFields []string
	}{
		{"complete", func(*models.TransactionRecord) {}, nil},
		{"missing title", func(r *models.TransactionRecord) { r.Title = "" }, []string{"title"}},
		{"missing datetime", func(r *models.TransactionRecord) { r.DatetimeLabel = "" }, []string{"datetime"}},
		{"bad amount", func(r *models.TransactionRecord) { r.Amount = "abc" }, []string{"amount"}},
		{"comma amount ok", func(r *models.TransactionRecord) { r.Amount = "+1,234.50" }, nil},
		{"signed balance", func(r *models.TransactionRecord) { r.Balance = "-5.00" }, []string{"balance"}},
		{"bad datetime", func(r *models.TransactionRecord) { r.DatetimeLabel = "7-30 15:36" }, []string{"datetime"}},
		{"empty optional fields", func(r *models.TransactionRecord) { r.Amount, r.Balance = "", "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fullRecord()
			tt.mutate(r)
			issues := Validate(r)
			if len(issues) != len(tt.expectFields) {
				t.Fatalf("expected issues on %v, got %v", tt.expectFields, issues)
			}
			for i, f := range tt.expectFields {
				if issues[i].Field != f {
					t.Errorf("issue %d: expected field %s, got %s", i, f, issues[i].Field)
				}
			}
		})
	}
}

func TestCompleteCount(t *testing.T) {
	bad := fullRecord()
	bad.Amount = "x"
	records := []*models.TransactionRecord{fullRecord(), bad, nil, fullRecord()}

	if got := CompleteCount(records); got != 2 {
		t.Errorf("expected 2 complete records, got %d", got)
	}
}

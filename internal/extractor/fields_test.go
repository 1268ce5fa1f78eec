package extractor

import (
	"testing"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
)

func segmentOf(anchor models.TimeAnchor, texts ...string) Segment {
	stream := models.StreamFromTexts("test", texts...)
	return Segment{Anchor: anchor, Start: 0, End: stream.Len(), Fragments: stream.Fragments}
}

func patternAnchor(month, day, hour, minute string) models.TimeAnchor {
	return models.NewTimeAnchor(0, month, day, hour, minute, models.TierPattern)
}

func TestFieldExtractorLoanRepaymentWithBalance(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())
	rec := e.Extract(segmentOf(patternAnchor("07", "30", "15", "36"),
		"07-30 15:36", "还车贷（含智能还贷）", "-2000.00", "余额8888.88", "储蓄卡6842"))

	expected := models.TransactionRecord{
		Date:          "2024-07-30",
		Time:          "15:36",
		DatetimeLabel: "07-30 15:36",
		Title:         "还车贷（含智能还贷）",
		SubTitle:      "余额8888.88",
		Amount:        "-2000.00",
		Balance:       "8888.88",
		PaymentMethod: "储蓄卡6842",
		Account:       "储蓄卡6842",
		Origin:        models.OriginSegment,
	}
	if *rec != expected {
		t.Errorf("unexpected record:\n got %+v\nwant %+v", *rec, expected)
	}
}

func TestFieldExtractorAmounts(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())
	anchor := patternAnchor("07", "30", "15", "36")

	tests := []struct {
		name          string
		texts         []string
		expectAmount  string
		expectBalance string
	}{
		{"yuan suffix", []string{"午餐", "35.50元"}, "-35.50", ""},
		{"full-width yen", []string{"午餐", "35.50￥"}, "-35.50", ""},
		{"thousands separator", []string{"房租", "-3,200.00"}, "-3200.00", ""},
		{"inflow", []string{"工资", "+8,000.00"}, "+8000.00", ""},
		{"refund keyword", []string{"商户", "退款 12.00"}, "+12.00", ""},
		{"first amount wins", []string{"午餐", "-20.00", "-30.00"}, "-20.00", ""},
		{"short capture rejected", []string{"午餐", "-12"}, "", ""},
		{"zero rejected", []string{"午餐", "-0.00"}, "", ""},
		{"last balance wins", []string{"午餐", "余额10.00", "余额 20.00"}, "", "20.00"},
		{"full-width digits", []string{"午餐", "－１２.５０"}, "-12.50", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Extract(segmentOf(anchor, tt.texts...))
			if rec.Amount != tt.expectAmount {
				t.Errorf("expected amount %q, got %q", tt.expectAmount, rec.Amount)
			}
			if rec.Balance != tt.expectBalance {
				t.Errorf("expected balance %q, got %q", tt.expectBalance, rec.Balance)
			}
		})
	}
}

func TestFieldExtractorTitles(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())
	anchor := patternAnchor("07", "30", "15", "36")

	tests := []struct {
		name           string
		texts          []string
		expectTitle    string
		expectSubTitle string
		expectPayment  string
	}{
		{
			name:           "title and sub-title in order",
			texts:          []string{"07-30 15:36", "美团外卖订单", "餐饮美食"},
			expectTitle:    "美团外卖订单",
			expectSubTitle: "餐饮美食",
		},
		{
			name:        "short fragments are not titles",
			texts:       []string{"07-30 15:36", "午餐", "美团外卖订单"},
			expectTitle: "美团外卖订单",
		},
		{
			name:          "wallet payment line is itself a title",
			texts:         []string{"07-30 15:36", "微信支付-美团外卖", "-35.00"},
			expectTitle:   "微信支付-美团外卖",
			expectPayment: "微信支付-美团外卖",
		},
		{
			name:          "short wallet name still counts",
			texts:         []string{"07-30 15:36", "支付宝", "-35.00"},
			expectTitle:   "支付宝",
			expectPayment: "支付宝",
		},
		{
			name:           "payment fragment becomes sub-title",
			texts:          []string{"07-30 15:36", "还车贷款", "储蓄卡6842"},
			expectTitle:    "还车贷款",
			expectSubTitle: "储蓄卡6842",
			expectPayment:  "储蓄卡6842",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Extract(segmentOf(anchor, tt.texts...))
			if rec.Title != tt.expectTitle {
				t.Errorf("expected title %q, got %q", tt.expectTitle, rec.Title)
			}
			if rec.SubTitle != tt.expectSubTitle {
				t.Errorf("expected sub-title %q, got %q", tt.expectSubTitle, rec.SubTitle)
			}
			if rec.PaymentMethod != tt.expectPayment {
				t.Errorf("expected payment method %q, got %q", tt.expectPayment, rec.PaymentMethod)
			}
		})
	}
}

func TestTitleFromPayment(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())

	tests := []struct {
		payment  string
		expected string
	}{
		{"微信支付-美团外卖", "美团外卖"},
		{"支付宝-滴滴出行-快车", "滴滴出行"},
		{"微信支付", ""},
		{"储蓄卡6842-还款", ""},
	}
	for _, tt := range tests {
		if got := e.titleFromPayment(tt.payment); got != tt.expected {
			t.Errorf("titleFromPayment(%q) = %q, expected %q", tt.payment, got, tt.expected)
		}
	}
}

func TestBackfillSubTitle(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())
	rec := &models.TransactionRecord{Title: "还车贷款", PaymentMethod: "储蓄卡6842", Account: "储蓄卡6842"}
	fragments := models.StreamFromTexts("test", "07-30 15:36", "还车贷款", "储蓄卡6842", "其他信息", "还款（储蓄卡）").Fragments

	if got := e.backfillSubTitle(fragments, rec); got != "还款（储蓄卡）" {
		t.Errorf("expected keyword fragment, got %q", got)
	}
	if got := e.backfillSubTitle(fragments[:4], rec); got != "" {
		t.Errorf("expected no back-fill, got %q", got)
	}
}

func TestFieldExtractorUntitled(t *testing.T) {
	e := NewFieldExtractor(rules.MustDefault(), DefaultConfig())
	rec := e.Extract(segmentOf(patternAnchor("07", "30", "15", "36"), "07-30 15:36", "-35.00", "12"))
	if rec.HasTitle() {
		t.Errorf("expected no title, got %q", rec.Title)
	}
	if rec.Amount != "-35.00" {
		t.Errorf("expected amount to be extracted anyway, got %q", rec.Amount)
	}
}

func TestFieldExtractorUsesConfiguredYear(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Year = 2023
	e := NewFieldExtractor(rules.MustDefault(), cfg)
	rec := e.Extract(segmentOf(patternAnchor("04", "30", "09", "40"), "人身保险费"))
	if rec.Date != "2023-04-30" || rec.Time != "09:40" {
		t.Errorf("unexpected date/time %s %s", rec.Date, rec.Time)
	}
}

func TestBuildSegments(t *testing.T) {
	stream := models.StreamFromTexts("test", "header", "a1", "a2", "b1", "b2", "b3")
	anchors := []models.TimeAnchor{
		models.NewTimeAnchor(1, "07", "30", "15", "36", models.TierPattern),
		models.NewTimeAnchor(3, "07", "29", "10", "00", models.TierPattern),
		models.NewTimeAnchor(3, "07", "29", "10", "01", models.TierPattern),
	}

	segments := BuildSegments(stream, anchors)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	expected := []struct{ start, end, size int }{
		{1, 3, 2},
		{3, 3, 0},
		{3, 6, 3},
	}
	for i, e := range expected {
		s := segments[i]
		if s.Start != e.start || s.End != e.end || len(s.Fragments) != e.size {
			t.Errorf("segment %d: expected [%d,%d) size %d, got [%d,%d) size %d",
				i, e.start, e.end, e.size, s.Start, s.End, len(s.Fragments))
		}
	}

	if len(BuildSegments(stream, nil)) != 0 {
		t.Error("expected no segments without anchors")
	}
}

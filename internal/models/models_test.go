package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewTextBlockStream(t *testing.T) {
	fragments := []TextFragment{
		{Text: " 07-30 15:36 ", Confidence: 0.9},
		{Text: "noise", Confidence: 0.15},
		{Text: "   ", Confidence: 0.99},
		{Text: "还车贷", Confidence: 0.16},
	}

	stream := NewTextBlockStream("a.png", fragments, 0.15)

	if stream.Len() != 2 {
		t.Fatalf("expected 2 fragments, got %d: %v", stream.Len(), stream.Texts())
	}
	if stream.Text(0) != "07-30 15:36" {
		t.Errorf("expected trimmed text, got %q", stream.Text(0))
	}
	for i, f := range stream.Fragments {
		if f.Position != i {
			t.Errorf("fragment %d has position %d", i, f.Position)
		}
	}
}

func TestStreamWindow(t *testing.T) {
	stream := StreamFromTexts("x", "a", "b", "c")

	tests := []struct {
		name     string
		from, to int
		want     int
	}{
		{"inside", 0, 2, 2},
		{"clamped low", -3, 1, 1},
		{"clamped high", 1, 10, 2},
		{"empty", 2, 2, 0},
		{"inverted", 3, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(stream.Window(tt.from, tt.to)); got != tt.want {
				t.Errorf("Window(%d, %d) returned %d fragments, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTimeAnchor(t *testing.T) {
	a := NewTimeAnchor(4, "07", "30", "15", "36", TierPattern)

	if a.DatetimeLabel != "07-30 15:36" {
		t.Errorf("unexpected label %q", a.DatetimeLabel)
	}
	if a.Date(2024) != "2024-07-30" {
		t.Errorf("unexpected date %q", a.Date(2024))
	}
	if a.Clock() != "15:36" {
		t.Errorf("unexpected clock %q", a.Clock())
	}
	if err := a.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if TierContextFallback.String() != "context_fallback" {
		t.Errorf("unexpected tier string %q", TierContextFallback.String())
	}
}

func TestValidateClock(t *testing.T) {
	tests := []struct {
		name                     string
		month, day, hour, minute string
		wantErr                  bool
	}{
		{"valid", "12", "31", "23", "59", false},
		{"zero month", "00", "10", "10", "10", true},
		{"month 13", "13", "10", "10", "10", true},
		{"day 32", "01", "32", "10", "10", true},
		{"hour 24", "01", "01", "24", "00", true},
		{"minute 60", "01", "01", "00", "60", true},
		{"not a number", "ab", "01", "00", "00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClock(tt.month, tt.day, tt.hour, tt.minute)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClock() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionRecord(t *testing.T) {
	anchor := NewTimeAnchor(0, "04", "30", "09", "40", TierPattern)
	r := NewRecordFromAnchor(anchor, 2024)
	r.Title = "人身保险费"
	r.Amount = "-1,030.07"
	r.Balance = "8888.88"

	if r.Date != "2024-04-30" || r.Time != "09:40" {
		t.Errorf("unexpected seed %s %s", r.Date, r.Time)
	}
	if r.Key() != "人身保险费_04-30 09:40_-1,030.07" {
		t.Errorf("unexpected key %q", r.Key())
	}
	if !r.AmountValue().Equal(decimal.RequireFromString("-1030.07")) {
		t.Errorf("unexpected amount value %s", r.AmountValue())
	}
	if !r.IsOutflow() || r.IsInflow() {
		t.Error("expected outflow")
	}
	if !r.HasTitle() {
		t.Error("expected title")
	}

	empty := &TransactionRecord{Amount: "abc"}
	if !empty.AmountValue().IsZero() {
		t.Error("malformed amount should read as zero")
	}
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2,000.00", "2000.00", true},
		{"30.07", "30.07", true},
		{"0.00", "", false},
		{",", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeAmount(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeAmount(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

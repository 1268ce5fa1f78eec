package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RecordOrigin records which pass produced a transaction
type RecordOrigin string

const (
	OriginSegment    RecordOrigin = "segment"
	OriginSupplement RecordOrigin = "supplement"
	OriginRecovery   RecordOrigin = "recovery"
)

// TransactionRecord is one extracted payment-app transaction.
//
// Amount is a signed decimal string: a leading "-" marks an outflow and "+"
// an inflow. Balance is unsigned. Text fields are kept exactly as recognized.
type TransactionRecord struct {
	Date            string       `json:"date"`
	Time            string       `json:"time"`
	DatetimeLabel   string       `json:"datetime"`
	Title           string       `json:"title"`
	SubTitle        string       `json:"sub_title"`
	Amount          string       `json:"amount"`
	Balance         string       `json:"balance"`
	PaymentMethod   string       `json:"payment_method"`
	Account         string       `json:"account"`
	TransactionType string       `json:"transaction_type"`
	Source          string       `json:"source,omitempty"`
	Origin          RecordOrigin `json:"origin,omitempty"`
}

// NewRecordFromAnchor seeds a record with the anchor's date and time
func NewRecordFromAnchor(anchor TimeAnchor, year int) *TransactionRecord {
	return &TransactionRecord{
		Date:          anchor.Date(year),
		Time:          anchor.Clock(),
		DatetimeLabel: anchor.DatetimeLabel,
		Origin:        OriginSegment,
	}
}

// Key identifies a record for deduplication
func (r *TransactionRecord) Key() string {
	return r.Title + "_" + r.DatetimeLabel + "_" + r.Amount
}

// HasTitle reports whether the record carries a non-empty title
func (r *TransactionRecord) HasTitle() bool {
	return strings.TrimSpace(r.Title) != ""
}

// AmountValue returns the signed amount, or zero when absent or malformed
func (r *TransactionRecord) AmountValue() decimal.Decimal {
	v, err := ParseAmount(r.Amount)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// IsOutflow returns true for amounts carrying a minus sign
func (r *TransactionRecord) IsOutflow() bool {
	return strings.HasPrefix(r.Amount, "-")
}

// IsInflow returns true for amounts carrying a plus sign
func (r *TransactionRecord) IsInflow() bool {
	return strings.HasPrefix(r.Amount, "+")
}

// String returns a string representation of the record
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("Transaction{Time: %s, Title: %s, Amount: %s, Balance: %s, Type: %s}",
		r.DatetimeLabel, r.Title, r.Amount, r.Balance, r.TransactionType)
}

// ParseAmount parses a recognized amount such as "-1,234.50" or "+8.00"
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), "+")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// NormalizeAmount strips thousands separators and returns the canonical
// digits, or false when the text is not a positive number.
func NormalizeAmount(s string) (string, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	v, err := decimal.NewFromString(cleaned)
	if err != nil || !v.IsPositive() {
		return "", false
	}
	return cleaned, true
}

package expense

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-scanner/internal/scanning"
)

var (
	// ErrNotFound is returned when a user or expense does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a user acts on another user's expense
	ErrForbidden = errors.New("expense belongs to another user")

	// ErrUnreadableReceipt is returned when no usable text could be read from a receipt
	ErrUnreadableReceipt = errors.New("receipt could not be read")

	// ErrInvalidInput is returned for missing or malformed arguments
	ErrInvalidInput = errors.New("invalid input")
)

// User is a person whose expenses are tracked
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Expense is a stored receipt interpretation
type Expense struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Merchant    string              `json:"merchant"`
	Date        time.Time           `json:"date"` // calendar date, midnight UTC
	Total       decimal.Decimal     `json:"total"`
	Items       []scanning.LineItem `json:"items"`
	Confidence  float64             `json:"confidence"`
	Source      scanning.Source     `json:"source"`
	Warnings    []string            `json:"warnings,omitempty"`
	Error       string              `json:"error,omitempty"`
	RawText     string              `json:"raw_text"`
	OCRSource   scanning.Source     `json:"ocr_source"`
	Filename    string              `json:"filename"`
	ContentType string              `json:"content_type"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ISODate returns the expense date as YYYY-MM-DD
func (e *Expense) ISODate() string {
	return e.Date.Format(dateLayout)
}

// newExpense copies a scan into a new expense record
func newExpense(id, userID string, scan *scanning.Scan, now time.Time) *Expense {
	draft := scan.Draft
	return &Expense{
		ID:         id,
		UserID:     userID,
		Merchant:   draft.Merchant,
		Date:       draft.Date,
		Total:      draft.Total,
		Items:      append([]scanning.LineItem(nil), draft.Items...),
		Confidence: draft.Confidence,
		Source:     draft.Source,
		Warnings:   append([]string(nil), draft.Warnings...),
		Error:      draft.Error,
		RawText:    scan.OCR.Text,
		OCRSource:  scan.OCR.Source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

const dateLayout = "2006-01-02"

// sameDay reports whether the calendar date of expense date d equals day in day's location
func sameDay(d time.Time, day time.Time) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

package scanning

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which provider produced an OCR result or a draft
type Source string

const (
	SourceOCRSpace     Source = "ocr.space"
	SourceGoogleVision Source = "google-vision"
	SourceOpenAI       Source = "openai"
	SourceGemini       Source = "gemini"
	SourceOllama       Source = "ollama"
	SourceRuleBased    Source = "rule-based"
	SourceFallback     Source = "fallback"
)

// Image is a raw receipt image as received from the user
type Image struct {
	Data        []byte
	ContentType string
}

// OCRResult is the text extracted from one receipt image
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// LineItem is a single purchased item on a receipt
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
}

// ExpenseDraft is the structured interpretation of a receipt
type ExpenseDraft struct {
	Merchant   string          `json:"merchant"`
	Date       time.Time       `json:"date"` // calendar date, midnight UTC
	Total      decimal.Decimal `json:"total"`
	Items      []LineItem      `json:"items"`
	Confidence float64         `json:"confidence"`
	Source     Source          `json:"source"`
	Warnings   []string        `json:"warnings,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ISODate returns the draft date as YYYY-MM-DD
func (d ExpenseDraft) ISODate() string {
	return d.Date.Format(dateLayout)
}

// ItemsTotal sums price times quantity over all items
func (d ExpenseDraft) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range d.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// clone returns a copy that shares no slices with d
func (d ExpenseDraft) clone() ExpenseDraft {
	out := d
	out.Items = slices.Clone(d.Items)
	out.Warnings = slices.Clone(d.Warnings)
	return out
}

// OCRProvider extracts raw text from a preprocessed image
type OCRProvider interface {
	Source() Source
	ExtractText(ctx context.Context, img Image) (*OCRResult, error)
}

// AnalysisProvider turns receipt text into a candidate draft
type AnalysisProvider interface {
	Source() Source
	Analyze(ctx context.Context, text string) (*ExpenseDraft, error)
}

const dateLayout = "2006-01-02"

// calendarDate truncates t to midnight UTC of its calendar day in t's location
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

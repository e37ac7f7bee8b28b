package scanning

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// RuleBasedConfidence is reported for every rule-based draft.
	RuleBasedConfidence = 0.6

	// UnspecifiedMerchant is used when no merchant line can be found.
	UnspecifiedMerchant = "unspecified"

	// buddhistEraOffset converts Thai Buddhist Era years to Gregorian.
	buddhistEraOffset = 543
)

// numberPattern matches "1,234.50", "12.50", "12,50" and "40".
const numberPattern = `\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:[.,]\d{2})?`

var (
	reLetter       = regexp.MustCompile(`\p{L}`)
	reDigitsOnly   = regexp.MustCompile(`^\d+$`)
	reDate         = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
	reTotal        = regexp.MustCompile(`(?i)(?:รวม|total|sum).*?(` + numberPattern + `)`)
	reSummaryLine  = regexp.MustCompile(`(?i)รวม|total|sum|tax|vat|ภาษี`)
	reItemLine     = regexp.MustCompile(`^(.+?)\s+(` + numberPattern + `)\s*(?:บาท|฿|THB)?$`)
	reNumber       = regexp.MustCompile(numberPattern)
	reThousandsSep = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d{2})?$`)
)

// RuleBasedExtractor derives a draft from receipt text with pattern heuristics.
// It never fails and is deterministic for a given clock.
type RuleBasedExtractor struct {
	classifier *CategoryClassifier
	now        func() time.Time
}

// NewRuleBasedExtractor creates an extractor using classifier for item categories
func NewRuleBasedExtractor(classifier *CategoryClassifier, now func() time.Time) *RuleBasedExtractor {
	if classifier == nil {
		classifier = NewCategoryClassifier(DefaultCategories)
	}
	if now == nil {
		now = time.Now
	}
	return &RuleBasedExtractor{classifier: classifier, now: now}
}

// Source implements AnalysisProvider
func (r *RuleBasedExtractor) Source() Source {
	return SourceRuleBased
}

// Analyze implements AnalysisProvider; it never returns an error
func (r *RuleBasedExtractor) Analyze(_ context.Context, text string) (*ExpenseDraft, error) {
	return r.Extract(text), nil
}

// Extract builds a draft from text. Fields are resolved in order: merchant, date, total, items.
func (r *RuleBasedExtractor) Extract(text string) *ExpenseDraft {
	lines := nonEmptyLines(text)
	today := calendarDate(r.now())

	draft := &ExpenseDraft{
		Merchant:   extractMerchant(lines),
		Date:       extractDate(text, today),
		Total:      extractTotal(text),
		Confidence: RuleBasedConfidence,
		Source:     SourceRuleBased,
	}

	draft.Items = r.extractItems(lines)
	if len(draft.Items) == 0 {
		draft.Items = extractLooseItems(text, draft.Total)
	}

	if draft.Total.IsZero() {
		draft.Total = draft.ItemsTotal()
	}
	return draft
}

// extractMerchant returns the first line with a letter that is not only digits and longer than 3 runes
func extractMerchant(lines []string) string {
	for _, line := range lines {
		if reLetter.MatchString(line) && !reDigitsOnly.MatchString(line) && utf8.RuneCountInString(line) > 3 {
			return line
		}
	}
	return UnspecifiedMerchant
}

// extractDate parses the first day/month/year date in text, falling back to today
func extractDate(text string, today time.Time) time.Time {
	m := reDate.FindStringSubmatch(text)
	if m == nil {
		return today
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	switch len(m[3]) {
	case 2:
		year += 2000
	case 4:
		if year >= 2400 {
			year -= buddhistEraOffset
		}
	default:
		return today
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 -> 03/03); reject those
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return today
	}
	return date
}

// extractTotal returns the first amount after a total keyword, or zero
func extractTotal(text string) decimal.Decimal {
	m := reTotal.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero
	}
	amount, err := parseAmount(m[1])
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// extractItems reads "<name> <price> [บาท]" lines, skipping total and tax lines
func (r *RuleBasedExtractor) extractItems(lines []string) []LineItem {
	items := make([]LineItem, 0)
	for _, line := range lines {
		if reSummaryLine.MatchString(line) {
			continue
		}
		m := reItemLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		price, err := parseAmount(m[2])
		if err != nil || !price.IsPositive() || utf8.RuneCountInString(name) <= 1 {
			continue
		}
		items = append(items, LineItem{
			Name:     name,
			Price:    price,
			Quantity: 1,
			Category: r.classifier.Classify(name),
		})
	}
	return items
}

// extractLooseItems turns every positive number that is not the total into a numbered item
func extractLooseItems(text string, total decimal.Decimal) []LineItem {
	items := make([]LineItem, 0)
	for i, token := range reNumber.FindAllString(text, -1) {
		price, err := parseAmount(token)
		if err != nil || !price.IsPositive() || price.Equal(total) {
			continue
		}
		items = append(items, LineItem{
			Name:     fmt.Sprintf("item %d", i+1),
			Price:    price,
			Quantity: 1,
			Category: CategoryOther,
		})
	}
	return items
}

// parseAmount parses a number token; commas are thousands separators in "1,234.50"
// and decimal separators in "12,50"
func parseAmount(token string) (decimal.Decimal, error) {
	token = strings.TrimSpace(token)
	if reThousandsSep.MatchString(token) {
		token = strings.ReplaceAll(token, ",", "")
	} else {
		token = strings.ReplaceAll(token, ",", ".")
	}
	amount, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", token, err)
	}
	return amount, nil
}

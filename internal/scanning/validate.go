package scanning

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// WarningTotalMismatch is recorded when the total and the item sum disagree by more than the tolerance.
const WarningTotalMismatch = "total mismatch"

// mismatchTolerance is the fraction of the total the item sum may differ by before a warning.
var mismatchTolerance = decimal.NewFromFloat(0.2)

// ValidationOutcome is the verdict on a candidate draft
type ValidationOutcome struct {
	Accepted bool
	Reasons  []string // why the draft was rejected
	Warnings []string // soft issues, never fatal
}

// Validate checks a candidate draft. Structural problems reject it; the
// total/item-sum consistency check only adds a warning.
func Validate(d *ExpenseDraft) ValidationOutcome {
	if d == nil {
		return ValidationOutcome{Reasons: []string{"draft is missing"}}
	}

	var reasons []string
	if strings.TrimSpace(d.Merchant) == "" {
		reasons = append(reasons, "merchant is missing")
	}
	if d.Date.IsZero() {
		reasons = append(reasons, "date is missing")
	}
	if d.Total.IsNegative() {
		reasons = append(reasons, "total is negative")
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f out of range", d.Confidence))
	}
	if d.Items == nil {
		reasons = append(reasons, "items are missing")
	}
	for i, item := range d.Items {
		if strings.TrimSpace(item.Name) == "" {
			reasons = append(reasons, fmt.Sprintf("item %d has no name", i+1))
		}
		if item.Price.IsNegative() {
			reasons = append(reasons, fmt.Sprintf("item %d has a negative price", i+1))
		}
		if item.Quantity < 1 {
			reasons = append(reasons, fmt.Sprintf("item %d has no quantity", i+1))
		}
	}

	outcome := ValidationOutcome{Accepted: len(reasons) == 0, Reasons: reasons}
	if d.Total.IsPositive() {
		diff := d.Total.Sub(d.ItemsTotal()).Abs()
		if diff.GreaterThan(d.Total.Mul(mismatchTolerance)) {
			outcome.Warnings = append(outcome.Warnings, WarningTotalMismatch)
		}
	}
	return outcome
}

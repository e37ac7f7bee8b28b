package expense

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-scanner/internal/scanning"
)

// topCategoryCount bounds the categories listed in a daily summary
const topCategoryCount = 5

// CategoryTotal is the amount spent in one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// DayTotal is the amount spent on one day
type DayTotal struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// DailySummary aggregates one user's expenses for one day
type DailySummary struct {
	UserID        string          `json:"user_id"`
	Date          string          `json:"date"`
	Total         decimal.Decimal `json:"total"`
	ReceiptCount  int             `json:"receipt_count"`
	TopCategories []CategoryTotal `json:"top_categories"`
}

// MonthlySummary aggregates one user's expenses for one calendar month
type MonthlySummary struct {
	UserID        string          `json:"user_id"`
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	Total         decimal.Decimal `json:"total"`
	ReceiptCount  int             `json:"receipt_count"`
	AveragePerDay decimal.Decimal `json:"average_per_day"`
	Categories    []CategoryTotal `json:"categories"`
	Daily         []DayTotal      `json:"daily"`
}

// DailySummary totals the expenses of userID dated day
func (s *Service) DailySummary(userID string, day time.Time) (*DailySummary, error) {
	expenses, err := s.ListExpenses(userID)
	if err != nil {
		return nil, err
	}
	var selected []*Expense
	for _, e := range expenses {
		if sameDay(e.Date, day) {
			selected = append(selected, e)
		}
	}
	return summarizeDay(userID, day, selected), nil
}

// MonthlySummary totals the expenses of userID in the given month
func (s *Service) MonthlySummary(userID string, year int, month time.Month) (*MonthlySummary, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("month %d: %w", month, ErrInvalidInput)
	}
	expenses, err := s.ListExpenses(userID)
	if err != nil {
		return nil, err
	}
	var selected []*Expense
	for _, e := range expenses {
		if e.Date.Year() == year && e.Date.Month() == month {
			selected = append(selected, e)
		}
	}
	return summarizeMonth(userID, year, month, selected), nil
}

func summarizeDay(userID string, day time.Time, expenses []*Expense) *DailySummary {
	summary := &DailySummary{
		UserID:       userID,
		Date:         day.Format(dateLayout),
		Total:        sumTotals(expenses),
		ReceiptCount: len(expenses),
	}
	summary.TopCategories = categoryTotals(expenses)
	if len(summary.TopCategories) > topCategoryCount {
		summary.TopCategories = summary.TopCategories[:topCategoryCount]
	}
	return summary
}

func summarizeMonth(userID string, year int, month time.Month, expenses []*Expense) *MonthlySummary {
	summary := &MonthlySummary{
		UserID:       userID,
		Year:         year,
		Month:        month,
		Total:        sumTotals(expenses),
		ReceiptCount: len(expenses),
		Categories:   categoryTotals(expenses),
		Daily:        make([]DayTotal, 0),
	}

	byDay := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		byDay[e.ISODate()] = byDay[e.ISODate()].Add(e.Total)
	}
	for date, amount := range byDay {
		summary.Daily = append(summary.Daily, DayTotal{Date: date, Amount: amount})
	}
	sort.Slice(summary.Daily, func(i, j int) bool { return summary.Daily[i].Date < summary.Daily[j].Date })

	summary.AveragePerDay = summary.Total.Div(decimal.NewFromInt(int64(daysIn(year, month)))).Round(2)
	return summary
}

func sumTotals(expenses []*Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Total)
	}
	return total
}

// categoryTotals sums price times quantity per item category, largest first
func categoryTotals(expenses []*Expense) []CategoryTotal {
	byCategory := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		for _, item := range e.Items {
			category := item.Category
			if category == "" {
				category = scanning.CategoryOther
			}
			amount := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			byCategory[category] = byCategory[category].Add(amount)
		}
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		totals = append(totals, CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Amount.Equal(totals[j].Amount) {
			return totals[i].Amount.GreaterThan(totals[j].Amount)
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

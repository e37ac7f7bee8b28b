package expense

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// csvRow is one exported expense
type csvRow struct {
	ID         string `csv:"id"`
	Date       string `csv:"date"`
	Merchant   string `csv:"merchant"`
	Total      string `csv:"total"`
	Items      int    `csv:"items"`
	Categories string `csv:"categories"`
	Source     string `csv:"source"`
	Confidence string `csv:"confidence"`
	Warnings   string `csv:"warnings"`
	CreatedAt  string `csv:"created_at"`
}

// ExportCSV writes every expense of userID to w as CSV, newest first
func (s *Service) ExportCSV(w io.Writer, userID string) error {
	expenses, err := s.ListExpenses(userID)
	if err != nil {
		return err
	}

	rows := make([]*csvRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, &csvRow{
			ID:         e.ID,
			Date:       e.ISODate(),
			Merchant:   e.Merchant,
			Total:      e.Total.StringFixed(2),
			Items:      len(e.Items),
			Categories: strings.Join(itemCategories(e), ";"),
			Source:     string(e.Source),
			Confidence: strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			Warnings:   strings.Join(e.Warnings, ";"),
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// itemCategories lists the distinct item categories in order of first appearance
func itemCategories(e *Expense) []string {
	seen := make(map[string]bool)
	var categories []string
	for _, item := range e.Items {
		if !seen[item.Category] {
			seen[item.Category] = true
			categories = append(categories, item.Category)
		}
	}
	return categories
}

// Package report sends scheduled spending summaries to users.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/expense-scanner/internal/expense"
)

// Summaries is the part of expense.Service the reports read from
type Summaries interface {
	ListUsers() ([]*expense.User, error)
	UsersWithExpensesOn(day time.Time) ([]*expense.User, error)
	DailySummary(userID string, day time.Time) (*expense.DailySummary, error)
	MonthlySummary(userID string, year int, month time.Month) (*expense.MonthlySummary, error)
}

// Notifier delivers a rendered report to one user
type Notifier interface {
	Notify(ctx context.Context, userID string, message string) error
}

// LogNotifier writes reports to the log instead of a chat transport
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier
func (n LogNotifier) Notify(ctx context.Context, userID string, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Report", "user", userID, "message", message)
	return nil
}

// Result counts the outcome of one report run
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// previousMonth returns the calendar month before t
func previousMonth(t time.Time) (int, time.Month) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0)
	return first.Year(), first.Month()
}

func reportLabel(year int, month time.Month) string {
	return fmt.Sprintf("%d-%02d", year, int(month))
}

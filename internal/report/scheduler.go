package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/zombor/expense-scanner/internal/expense"
)

const (
	// DefaultDailySpec sends the daily report at 20:00
	DefaultDailySpec = "0 20 * * *"
	// DefaultMonthlySpec sends the previous month's report on the 1st at 09:00
	DefaultMonthlySpec = "0 9 1 * *"
	// DefaultTimezone is the location both schedules run in
	DefaultTimezone = "Asia/Bangkok"
	// DefaultRate bounds notifications per second
	DefaultRate = 10

	runTimeout = 30 * time.Minute
)

// Config configures a Scheduler. Zero values use the defaults.
type Config struct {
	DailySpec   string
	MonthlySpec string
	Location    *time.Location
	Rate        int
	Now         func() time.Time
}

// Scheduler runs the daily and monthly reports on cron schedules
type Scheduler struct {
	cron      *cron.Cron
	summaries Summaries
	notifier  Notifier
	limiter   *rate.Limiter
	cfg       Config
	logger    *slog.Logger
}

// NewScheduler creates a scheduler. Jobs are not added until Start.
func NewScheduler(summaries Summaries, notifier Notifier, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.DailySpec == "" {
		cfg.DailySpec = DefaultDailySpec
	}
	if cfg.MonthlySpec == "" {
		cfg.MonthlySpec = DefaultMonthlySpec
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %s: %w", DefaultTimezone, err)
		}
		cfg.Location = loc
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)
	return &Scheduler{
		cron:      c,
		summaries: summaries,
		notifier:  notifier,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start adds both report jobs and starts the cron
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.DailySpec, s.dailyJob); err != nil {
		return fmt.Errorf("scheduling daily report %q: %w", s.cfg.DailySpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.MonthlySpec, s.monthlyJob); err != nil {
		return fmt.Errorf("scheduling monthly report %q: %w", s.cfg.MonthlySpec, err)
	}

	s.cron.Start()
	s.logger.Info("Report scheduler started",
		"jobs", len(s.cron.Entries()),
		"timezone", s.cfg.Location.String(),
	)
	return nil
}

// Stop stops the cron. The returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Report scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) dailyJob() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunNow(ctx, s.cfg.Now().In(s.cfg.Location)); err != nil {
		s.logger.Error("Daily report failed", "error", err)
	}
}

func (s *Scheduler) monthlyJob() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	year, month := previousMonth(s.cfg.Now().In(s.cfg.Location))
	if _, err := s.RunMonthly(ctx, year, month); err != nil {
		s.logger.Error("Monthly report failed", "error", err)
	}
}

// RunNow sends the daily report for day to every user with expenses on it
func (s *Scheduler) RunNow(ctx context.Context, day time.Time) (Result, error) {
	label := day.Format("2006-01-02")
	users, err := s.summaries.UsersWithExpensesOn(day)
	if err != nil {
		return Result{}, fmt.Errorf("listing users for %s: %w", label, err)
	}
	s.logger.Info("Sending daily reports", "date", label, "users", len(users))

	return s.send(ctx, "daily", users, func(userID string) (string, bool, error) {
		summary, err := s.summaries.DailySummary(userID, day)
		if err != nil {
			return "", false, err
		}
		return expense.FormatDailySummary(summary), summary.ReceiptCount > 0, nil
	})
}

// RunMonthly sends the monthly report to every user with expenses in that month
func (s *Scheduler) RunMonthly(ctx context.Context, year int, month time.Month) (Result, error) {
	users, err := s.summaries.ListUsers()
	if err != nil {
		return Result{}, fmt.Errorf("listing users: %w", err)
	}
	s.logger.Info("Sending monthly reports", "month", reportLabel(year, month), "users", len(users))

	return s.send(ctx, "monthly", users, func(userID string) (string, bool, error) {
		summary, err := s.summaries.MonthlySummary(userID, year, month)
		if err != nil {
			return "", false, err
		}
		return expense.FormatMonthlySummary(summary), summary.ReceiptCount > 0, nil
	})
}

// send renders and delivers one report per user. A failing user is counted and
// skipped; only cancellation stops the run.
func (s *Scheduler) send(ctx context.Context, kind string, users []*expense.User, render func(userID string) (string, bool, error)) (Result, error) {
	var result Result
	for _, user := range users {
		message, ok, err := render(user.ID)
		if err != nil {
			s.logger.Warn("Failed to build report", "kind", kind, "user", user.ID, "error", err)
			result.Failed++
			continue
		}
		if !ok {
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("waiting to notify: %w", err)
		}
		if err := s.notifier.Notify(ctx, user.ID, message); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			s.logger.Warn("Failed to send report", "kind", kind, "user", user.ID, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	s.logger.Info("Reports sent", "kind", kind, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/expense-scanner/internal/expense"
	"github.com/zombor/expense-scanner/internal/report"
)

func newRootCommand(cfg *config) *ff.Command {
	rootFlags := ff.NewFlagSet("expense-scanner")
	cfg.register(rootFlags)

	return &ff.Command{
		Name:      "expense-scanner",
		Usage:     "expense-scanner [FLAGS] <SUBCOMMAND>",
		ShortHelp: "Turn receipt photos into expense records",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			newServeCommand(cfg, rootFlags),
			newCheckCommand(cfg, rootFlags),
			newReportCommand(cfg, rootFlags),
			newExportCommand(cfg, rootFlags),
		},
	}
}

func newServeCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		dailySpec   = fs.StringLong("daily-spec", report.DefaultDailySpec, "Cron schedule of the daily report")
		monthlySpec = fs.StringLong("monthly-spec", report.DefaultMonthlySpec, "Cron schedule of the monthly report")
		noReports   = fs.BoolLong("no-reports", "Do not schedule reports")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "expense-scanner serve [FLAGS]",
		ShortHelp: "Run the HTTP API and the report scheduler",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := expense.NewServer(a.service, expense.BasicAuth{Username: *authUser, Password: *authPass})
			handler := server.EnableMetrics(a.registry, a.registry)
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			if !*noReports {
				loc, err := cfg.location()
				if err != nil {
					return fmt.Errorf("loading timezone: %w", err)
				}
				scheduler, err := report.NewScheduler(a.service, report.LogNotifier{}, report.Config{
					DailySpec:   *dailySpec,
					MonthlySpec: *monthlySpec,
					Location:    loc,
				}, slog.Default())
				if err != nil {
					return err
				}
				if err := scheduler.Start(); err != nil {
					return err
				}
				defer func() { <-scheduler.Stop().Done() }()
			}

			return server.Start(ctx, fmt.Sprintf(":%d", *port), handler)
		},
	}
}

func newCheckCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("check").SetParent(parent)
	return &ff.Command{
		Name:      "check",
		Usage:     "expense-scanner check [FLAGS]",
		ShortHelp: "Call every configured provider once and print its status",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			cfg.applyEnvFallbacks()
			pipeline, err := buildPipeline(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			result := pipeline.CheckProviders(ctx)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			for _, status := range append(result.OCR, result.Analysis...) {
				if !status.OK {
					return fmt.Errorf("provider %s is not reachable: %s", status.Source, status.Detail)
				}
			}
			return nil
		},
	}
}

func newReportCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("report").SetParent(parent)
	var (
		date  = fs.StringLong("date", "", "Day to report, YYYY-MM-DD (default today)")
		month = fs.StringLong("month", "", "Send the monthly report for YYYY-MM instead")
	)

	return &ff.Command{
		Name:      "report",
		Usage:     "expense-scanner report [FLAGS]",
		ShortHelp: "Send the daily or monthly report now",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			loc, err := cfg.location()
			if err != nil {
				return fmt.Errorf("loading timezone: %w", err)
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler, err := report.NewScheduler(a.service, report.LogNotifier{}, report.Config{Location: loc}, slog.Default())
			if err != nil {
				return err
			}

			var result report.Result
			if *month != "" {
				m, err := time.ParseInLocation("2006-01", *month, loc)
				if err != nil {
					return fmt.Errorf("month must be YYYY-MM: %w", err)
				}
				result, err = scheduler.RunMonthly(ctx, m.Year(), m.Month())
				if err != nil {
					return err
				}
			} else {
				day := time.Now().In(loc)
				if *date != "" {
					if day, err = time.ParseInLocation("2006-01-02", *date, loc); err != nil {
						return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
					}
				}
				if result, err = scheduler.RunNow(ctx, day); err != nil {
					return err
				}
			}
			fmt.Printf("sent %d reports, %d failed\n", result.Sent, result.Failed)
			return nil
		},
	}
}

func newExportCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	user := fs.StringLong("user", "", "User whose expenses are exported")

	return &ff.Command{
		Name:      "export",
		Usage:     "expense-scanner export --user ID [FLAGS]",
		ShortHelp: "Write a user's expenses to stdout as CSV",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if *user == "" {
				return fmt.Errorf("--user is required")
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.service.ExportCSV(os.Stdout, *user)
		},
	}
}

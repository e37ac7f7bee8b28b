package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config{}
	root := newRootCommand(cfg)
	if err := root.Parse(os.Args[1:], ff.WithEnvVarPrefix("EXPENSE_SCANNER")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(os.Stderr, cfg.logLevel, cfg.logFormat))

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(1)
		}
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

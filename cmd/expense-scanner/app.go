package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombor/expense-scanner/internal/expense"
	"github.com/zombor/expense-scanner/internal/scanning"
)

// app holds the components every subcommand shares
type app struct {
	db       *expense.BoltDB
	pipeline *scanning.Pipeline
	service  *expense.Service
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg *config) (*app, error) {
	cfg.applyEnvFallbacks()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipeline, err := buildPipeline(ctx, cfg, scanning.NewMetrics(registry))
	if err != nil {
		return nil, err
	}

	slog.Info("Initializing database...", "path", cfg.dbPath)
	db, err := expense.NewBoltDB(cfg.dbPath)
	if err != nil {
		pipeline.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("Initializing storage...", "path", cfg.storagePath)
	store, err := expense.NewLocalStorage(cfg.storagePath)
	if err != nil {
		pipeline.Close()
		db.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	return &app{
		db:       db,
		pipeline: pipeline,
		service:  expense.NewService(db, pipeline, store),
		registry: registry,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.pipeline.Close(), a.db.Close())
}

// buildPipeline wires every configured provider. Providers without credentials are skipped.
func buildPipeline(ctx context.Context, cfg *config, metrics *scanning.Metrics) (*scanning.Pipeline, error) {
	now, err := cfg.clock()
	if err != nil {
		return nil, err
	}

	var ocr []scanning.OCRProvider
	var analysis []scanning.AnalysisProvider

	closeAll := func() {
		scanning.NewPipeline(nil, scanning.NewOCRChain(ocr), scanning.NewAnalysisChain(analysis, nil)).Close()
	}
	skip := func(name string, err error) error {
		if errors.Is(err, scanning.ErrNotConfigured) {
			slog.Info("Provider disabled", "provider", name, "reason", err)
			return nil
		}
		closeAll()
		return fmt.Errorf("initializing %s: %w", name, err)
	}

	if p, err := scanning.NewOCRSpace(cfg.ocrSpaceKey, cfg.ocrSpaceURL); err != nil {
		if err := skip("ocr.space", err); err != nil {
			return nil, err
		}
	} else {
		ocr = append(ocr, p)
	}

	if cfg.visionKey != "" || cfg.visionCredentials != "" {
		p, err := scanning.NewGoogleVision(ctx, scanning.GoogleVisionConfig{
			APIKey:          cfg.visionKey,
			CredentialsFile: cfg.visionCredentials,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("initializing google vision: %w", err)
		}
		ocr = append(ocr, p)
	} else {
		slog.Info("Provider disabled", "provider", "google-vision", "reason", "no credentials")
	}

	if p, err := scanning.NewOpenAI(cfg.openAIKey, cfg.openAIModel, cfg.openAIBaseURL, now); err != nil {
		if err := skip("openai", err); err != nil {
			return nil, err
		}
	} else {
		analysis = append(analysis, p)
	}

	if p, err := scanning.NewGemini(ctx, cfg.geminiKey, cfg.geminiModel, now); err != nil {
		if err := skip("gemini", err); err != nil {
			return nil, err
		}
	} else {
		analysis = append(analysis, p)
	}

	if cfg.ollamaURL != "" {
		p, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel, now)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		analysis = append(analysis, p)
	}

	if len(ocr) == 0 {
		slog.Warn("No OCR provider configured, every receipt will be unreadable")
	}
	slog.Info("Scanning pipeline ready", "ocr_providers", len(ocr), "analysis_providers", len(analysis))

	opts := []scanning.ChainOption{
		scanning.WithTimeout(cfg.providerTimeout),
		scanning.WithMetrics(metrics),
		scanning.WithClock(now),
	}
	return scanning.NewPipeline(
		scanning.NewPreprocessor(cfg.maxWidth),
		scanning.NewOCRChain(ocr, opts...),
		scanning.NewAnalysisChain(analysis, nil, opts...),
	), nil
}

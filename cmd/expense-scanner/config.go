package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
)

// config holds the flags shared by every subcommand
type config struct {
	dbPath      string
	storagePath string
	logLevel    string
	logFormat   string

	ocrSpaceKey       string
	ocrSpaceURL       string
	visionKey         string
	visionCredentials string
	openAIKey         string
	openAIModel       string
	openAIBaseURL     string
	geminiKey         string
	geminiModel       string
	ollamaURL         string
	ollamaModel       string
	providerTimeout   time.Duration
	maxWidth          int

	timezone string
}

func (c *config) register(fs *ff.FlagSet) {
	fs.StringVar(&c.dbPath, 0, "db", "expense-scanner.db", "Database file path")
	fs.StringVar(&c.storagePath, 0, "storage", "./receipts", "Storage directory path")
	fs.StringVar(&c.logLevel, 0, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&c.logFormat, 0, "log-format", "text", "Log format: text or json")

	fs.StringVar(&c.ocrSpaceKey, 0, "ocrspace-key", "", "OCR.space API key (or set OCR_SPACE_API_KEY env var)")
	fs.StringVar(&c.ocrSpaceURL, 0, "ocrspace-url", "", "OCR.space endpoint override")
	fs.StringVar(&c.visionKey, 0, "vision-key", "", "Google Cloud Vision API key")
	fs.StringVar(&c.visionCredentials, 0, "vision-credentials", "", "Google Cloud service account JSON file")
	fs.StringVar(&c.openAIKey, 0, "openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	fs.StringVar(&c.openAIModel, 0, "openai-model", "", "OpenAI model name")
	fs.StringVar(&c.openAIBaseURL, 0, "openai-base-url", "", "OpenAI-compatible API base URL")
	fs.StringVar(&c.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&c.geminiModel, 0, "gemini-model", "", "Google Gemini model name")
	fs.StringVar(&c.ollamaURL, 0, "ollama-url", "", "Ollama API base URL; empty disables Ollama")
	fs.StringVar(&c.ollamaModel, 0, "ollama-model", "", "Ollama model name")
	fs.DurationVar(&c.providerTimeout, 0, "provider-timeout", 30*time.Second, "Timeout for each external provider call")
	fs.IntVar(&c.maxWidth, 0, "max-width", 1200, "Widest image sent to OCR providers")

	fs.StringVar(&c.timezone, 0, "timezone", "Asia/Bangkok", "Timezone for report dates")
}

// applyEnvFallbacks fills API keys from the providers' conventional variables
func (c *config) applyEnvFallbacks() {
	fallback := func(v *string, env string) {
		if *v == "" {
			*v = os.Getenv(env)
		}
	}
	fallback(&c.ocrSpaceKey, "OCR_SPACE_API_KEY")
	fallback(&c.visionKey, "GOOGLE_CLOUD_VISION_API_KEY")
	fallback(&c.visionCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	fallback(&c.openAIKey, "OPENAI_API_KEY")
	fallback(&c.geminiKey, "GEMINI_API_KEY")
}

func (c *config) location() (*time.Location, error) {
	return time.LoadLocation(c.timezone)
}

// clock reads the current time in the report timezone, so a receipt without a
// date lands on the same calendar day the reports use
func (c *config) clock() (func() time.Time, error) {
	loc, err := c.location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", c.timezone, err)
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

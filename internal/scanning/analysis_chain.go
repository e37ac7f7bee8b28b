package scanning

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// ChainState is the progress of one AnalysisChain invocation
type ChainState int

const (
	StateNotAttempted ChainState = iota
	StateTrying
	StateValidated
	StateExhaustedFallback
)

func (s ChainState) String() string {
	switch s {
	case StateNotAttempted:
		return "not_attempted"
	case StateTrying:
		return "trying"
	case StateValidated:
		return "validated"
	case StateExhaustedFallback:
		return "exhausted_fallback"
	}
	return "unknown"
}

const (
	// FallbackConfidence is reported on the terminal fallback draft.
	FallbackConfidence = 0.1

	// FallbackError explains the terminal fallback draft.
	FallbackError = "all analysis methods failed"

	// PlaceholderItemName names the single item of the terminal fallback draft.
	PlaceholderItemName = "unreadable item"
)

// TerminalDraft is the always-valid draft returned when every analysis method failed
func TerminalDraft(now time.Time) *ExpenseDraft {
	return &ExpenseDraft{
		Merchant: UnspecifiedMerchant,
		Date:     calendarDate(now),
		Total:    decimal.Zero,
		Items: []LineItem{{
			Name:     PlaceholderItemName,
			Price:    decimal.Zero,
			Quantity: 1,
			Category: CategoryOther,
		}},
		Confidence: FallbackConfidence,
		Source:     SourceFallback,
		Error:      FallbackError,
	}
}

// AnalysisChain turns OCR text into a validated draft, trying external providers
// first and the rule-based extractor last.
type AnalysisChain struct {
	external []AnalysisProvider
	final    AnalysisProvider
	cfg      chainConfig
}

// NewAnalysisChain creates a chain over external providers in priority order.
// final runs last without a timeout; nil means a RuleBasedExtractor with default categories.
func NewAnalysisChain(external []AnalysisProvider, final AnalysisProvider, opts ...ChainOption) *AnalysisChain {
	cfg := newChainConfig(opts)
	if final == nil {
		final = NewRuleBasedExtractor(nil, cfg.now)
	}
	return &AnalysisChain{
		external: append([]AnalysisProvider(nil), external...),
		final:    final,
		cfg:      cfg,
	}
}

// Providers returns every provider in the order they are tried
func (c *AnalysisChain) Providers() []AnalysisProvider {
	return append(append([]AnalysisProvider(nil), c.external...), c.final)
}

// Analyze returns the first candidate draft that passes Validate. It fails only with
// ErrInsufficientInput, checked before any provider runs.
func (c *AnalysisChain) Analyze(ctx context.Context, text string) (*ExpenseDraft, error) {
	draft, _, err := c.AnalyzeWithState(ctx, text)
	return draft, err
}

// AnalyzeWithState is Analyze that also reports the terminal chain state
func (c *AnalysisChain) AnalyzeWithState(ctx context.Context, text string) (*ExpenseDraft, ChainState, error) {
	if textLength(text) < minTextLength {
		return nil, StateNotAttempted, ErrInsufficientInput
	}

	providers := c.Providers()
	var outcome ValidationOutcome

	run := func(i int) attempt[*ExpenseDraft] {
		p := providers[i]
		slog.Debug("Analysis attempt", "state", StateTrying, "index", i, "provider", p.Source())
		start := time.Now()
		var (
			draft *ExpenseDraft
			err   error
		)
		if i == len(providers)-1 {
			draft, err = c.final.Analyze(ctx, text)
		} else {
			draft, err = callWithTimeout(ctx, c.cfg.timeout, func(ctx context.Context) (*ExpenseDraft, error) {
				return p.Analyze(ctx, text)
			})
		}
		return attempt[*ExpenseDraft]{source: p.Source(), value: draft, err: wrapProviderError(p.Source(), "Analyze", err), elapsed: time.Since(start)}
	}

	accept := func(a attempt[*ExpenseDraft]) bool {
		if a.err != nil {
			slog.Warn("Analysis provider failed, trying next", "provider", a.source, "error", a.err)
			c.cfg.metrics.observeAttempt(chainAnalysis, a.source, outcomeFailed, a.elapsed)
			return false
		}
		outcome = Validate(a.value)
		if !outcome.Accepted {
			slog.Warn("Analysis result rejected, trying next", "provider", a.source, "reasons", outcome.Reasons)
			c.cfg.metrics.observeAttempt(chainAnalysis, a.source, outcomeRejected, a.elapsed)
			return false
		}
		c.cfg.metrics.observeAttempt(chainAnalysis, a.source, outcomeAccepted, a.elapsed)
		return true
	}

	a, idx := firstSuccess(len(providers), run, accept)
	if idx < 0 {
		slog.Error("All analysis methods failed", "providers", len(providers))
		c.cfg.metrics.observeResult(chainAnalysis, StateExhaustedFallback.String(), SourceFallback)
		return TerminalDraft(c.cfg.now()), StateExhaustedFallback, nil
	}

	draft := a.value.clone()
	if draft.Source == "" {
		draft.Source = a.source
	}
	draft.Date = calendarDate(draft.Date)
	draft.Warnings = append(draft.Warnings, outcome.Warnings...)
	if len(outcome.Warnings) > 0 {
		slog.Warn("Analysis result accepted with warnings", "provider", draft.Source, "warnings", outcome.Warnings,
			"total", draft.Total.String(), "items_total", draft.ItemsTotal().String())
	}
	slog.Info("Analysis successful", "provider", draft.Source)
	c.cfg.metrics.observeResult(chainAnalysis, StateValidated.String(), draft.Source)
	return &draft, StateValidated, nil
}

// Check runs every provider once on text and reports reachability
func (c *AnalysisChain) Check(ctx context.Context, text string) []ProviderStatus {
	providers := c.Providers()
	statuses := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		draft, err := callWithTimeout(ctx, c.cfg.timeout, func(ctx context.Context) (*ExpenseDraft, error) {
			return p.Analyze(ctx, text)
		})
		status := ProviderStatus{Source: p.Source()}
		if err != nil {
			status.Detail = err.Error()
		} else if outcome := Validate(draft); !outcome.Accepted {
			status.Detail = "invalid draft"
		} else {
			status.OK = true
			status.Detail = draft.Merchant
		}
		statuses = append(statuses, status)
	}
	return statuses
}

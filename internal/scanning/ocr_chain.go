package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// FallbackOCRResult is returned when no OCR provider produced usable text
func FallbackOCRResult() OCRResult {
	return OCRResult{Text: "", Confidence: 0, Source: SourceFallback}
}

// OCRChain tries OCR providers in order until one returns enough text
type OCRChain struct {
	providers []OCRProvider
	cfg       chainConfig
}

// NewOCRChain creates a chain over providers in priority order
func NewOCRChain(providers []OCRProvider, opts ...ChainOption) *OCRChain {
	return &OCRChain{
		providers: append([]OCRProvider(nil), providers...),
		cfg:       newChainConfig(opts),
	}
}

// Providers returns the chain's providers in order
func (c *OCRChain) Providers() []OCRProvider {
	return append([]OCRProvider(nil), c.providers...)
}

// Extract returns the first OCR result with more than 10 characters of text,
// normalized with CleanText. It never fails: when every provider fails the
// fallback result with empty text is returned.
func (c *OCRChain) Extract(ctx context.Context, img Image) OCRResult {
	run := func(i int) attempt[*OCRResult] {
		p := c.providers[i]
		start := time.Now()
		res, err := callWithTimeout(ctx, c.cfg.timeout, func(ctx context.Context) (*OCRResult, error) {
			return p.ExtractText(ctx, img)
		})
		if err == nil && res == nil {
			err = ErrMalformedResponse
		}
		return attempt[*OCRResult]{source: p.Source(), value: res, err: wrapProviderError(p.Source(), "ExtractText", err), elapsed: time.Since(start)}
	}

	accept := func(a attempt[*OCRResult]) bool {
		switch {
		case a.err != nil:
			slog.Warn("OCR provider failed, trying next", "provider", a.source, "error", a.err)
			c.cfg.metrics.observeAttempt(chainOCR, a.source, outcomeFailed, a.elapsed)
			return false
		case textLength(a.value.Text) <= minTextLength:
			slog.Warn("OCR provider returned too little text, trying next", "provider", a.source, "length", textLength(a.value.Text))
			c.cfg.metrics.observeAttempt(chainOCR, a.source, outcomeRejected, a.elapsed)
			return false
		}
		c.cfg.metrics.observeAttempt(chainOCR, a.source, outcomeAccepted, a.elapsed)
		return true
	}

	a, idx := firstSuccess(len(c.providers), run, accept)
	if idx < 0 {
		slog.Warn("All OCR providers failed", "providers", len(c.providers))
		c.cfg.metrics.observeResult(chainOCR, StateExhaustedFallback.String(), SourceFallback)
		return FallbackOCRResult()
	}

	source := a.value.Source
	if source == "" {
		source = a.source
	}
	slog.Info("OCR successful", "provider", source)
	c.cfg.metrics.observeResult(chainOCR, StateValidated.String(), source)
	return OCRResult{
		Text:       CleanText(a.value.Text),
		Confidence: clampConfidence(a.value.Confidence),
		Source:     source,
	}
}

// ProviderStatus reports whether a single provider answered the smoke test
type ProviderStatus struct {
	Source Source `json:"source"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Check calls every provider once with img and reports reachability. A provider
// that answers with no text is still reachable.
func (c *OCRChain) Check(ctx context.Context, img Image) []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(c.providers))
	for _, p := range c.providers {
		res, err := callWithTimeout(ctx, c.cfg.timeout, func(ctx context.Context) (*OCRResult, error) {
			return p.ExtractText(ctx, img)
		})
		status := ProviderStatus{Source: p.Source()}
		switch {
		case err == nil && res == nil:
			status.Detail = ErrMalformedResponse.Error()
		case err == nil:
			status.OK = true
			status.Detail = fmt.Sprintf("%d characters", textLength(res.Text))
		case errors.Is(err, ErrNoText):
			status.OK = true
			status.Detail = "reachable, no text in test image"
		default:
			status.Detail = err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

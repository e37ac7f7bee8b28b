package scanning

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
)

// SmokeTestReceipt is the receipt text used to check analysis providers.
const SmokeTestReceipt = "ร้าน 7-Eleven\nน้ำดื่ม 15 บาท\nขนม 25 บาท\nรวม 40 บาท"

// Scan is the outcome of one pipeline run
type Scan struct {
	OCR   OCRResult    `json:"ocr"`
	Draft ExpenseDraft `json:"draft"`
}

// Scanner turns receipt images into drafts
type Scanner interface {
	Scan(ctx context.Context, img Image) (*Scan, error)
}

// Pipeline runs preprocessing, OCR and analysis for one receipt.
// It is safe for concurrent use.
type Pipeline struct {
	preprocessor *Preprocessor
	ocr          *OCRChain
	analysis     *AnalysisChain
}

// NewPipeline wires the three stages together. A nil preprocessor uses the defaults.
func NewPipeline(preprocessor *Preprocessor, ocr *OCRChain, analysis *AnalysisChain) *Pipeline {
	if preprocessor == nil {
		preprocessor = NewPreprocessor(0)
	}
	return &Pipeline{preprocessor: preprocessor, ocr: ocr, analysis: analysis}
}

// Scan interprets one receipt image. It fails with ErrInsufficientInput when no
// usable text was read, or with the context's error when the caller gave up.
func (p *Pipeline) Scan(ctx context.Context, img Image) (*Scan, error) {
	processed := p.preprocessor.Process(img)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ocr := p.ocr.Extract(ctx, processed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draft, err := p.analysis.Analyze(ctx, ocr.Text)
	if err != nil {
		slog.Warn("Receipt text unusable", "ocr_source", ocr.Source, "length", textLength(ocr.Text))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Scan{OCR: ocr, Draft: *draft}, nil
}

// ProviderReport is the result of CheckProviders
type ProviderReport struct {
	OCR      []ProviderStatus `json:"ocr"`
	Analysis []ProviderStatus `json:"analysis"`
	// Draft is what the full analysis chain made of SmokeTestReceipt
	Draft *ExpenseDraft `json:"draft,omitempty"`
}

// CheckProviders calls every provider once with fixed inputs and reports reachability
func (p *Pipeline) CheckProviders(ctx context.Context) ProviderReport {
	report := ProviderReport{
		OCR:      p.ocr.Check(ctx, blankTestImage()),
		Analysis: p.analysis.Check(ctx, SmokeTestReceipt),
	}
	draft, err := p.analysis.Analyze(ctx, SmokeTestReceipt)
	if err != nil {
		slog.Error("Smoke test analysis failed", "error", err)
	} else {
		report.Draft = draft
	}
	return report
}

// Close closes every provider that holds a client
func (p *Pipeline) Close() error {
	var errs []error
	for _, provider := range p.ocr.Providers() {
		if c, ok := provider.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	for _, provider := range p.analysis.Providers() {
		if c, ok := provider.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// blankTestImage is a small white PNG
func blankTestImage() Image {
	img := imaging.New(64, 64, color.White)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return Image{Data: nil, ContentType: "image/png"}
	}
	return Image{Data: buf.Bytes(), ContentType: "image/png"}
}

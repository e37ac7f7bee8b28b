package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	// DefaultOCRSpaceURL is the public OCR.space parse endpoint.
	DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

	ocrSpaceOverlayConfidence = 0.8
	ocrSpacePlainConfidence   = 0.6
)

// OCRSpace implements OCRProvider using the OCR.space API
type OCRSpace struct {
	apiKey   string
	url      string
	language string
	client   *http.Client
}

// NewOCRSpace creates a new OCR.space provider. url may be empty.
func NewOCRSpace(apiKey, url string) (*OCRSpace, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ocr.space api key is required: %w", ErrNotConfigured)
	}
	if url == "" {
		url = DefaultOCRSpaceURL
	}
	return &OCRSpace{
		apiKey:   apiKey,
		url:      url,
		language: "tha",
		client:   &http.Client{},
	}, nil
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText  string `json:"ParsedText"`
		TextOverlay *struct {
			HasOverlay bool `json:"HasOverlay"`
		} `json:"TextOverlay"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	// ErrorMessage is either a string or a list of strings
	ErrorMessage json.RawMessage `json:"ErrorMessage"`
}

// errorText flattens ErrorMessage into one line
func (r ocrSpaceResponse) errorText() string {
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(r.ErrorMessage, &s); err == nil {
		return s
	}
	return string(r.ErrorMessage)
}

// Source implements OCRProvider
func (o *OCRSpace) Source() Source {
	return SourceOCRSpace
}

// ExtractText uploads the image and returns the first parsed page
func (o *OCRSpace) ExtractText(ctx context.Context, img Image) (*OCRResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "receipt.png")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	fields := [][2]string{
		{"apikey", o.apiKey},
		{"language", o.language},
		{"isOverlayRequired", "false"},
		{"detectOrientation", "true"},
		{"isTable", "true"},
		{"OCREngine", "2"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ocr.space API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ocr.space API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var parsed ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformedResponse, err)
	}
	if parsed.IsErroredOnProcessing {
		return nil, fmt.Errorf("ocr.space processing error: %s", parsed.errorText())
	}

	result := &OCRResult{Confidence: ocrSpacePlainConfidence, Source: SourceOCRSpace}
	if len(parsed.ParsedResults) > 0 {
		first := parsed.ParsedResults[0]
		result.Text = first.ParsedText
		if first.TextOverlay != nil && first.TextOverlay.HasOverlay {
			result.Confidence = ocrSpaceOverlayConfidence
		}
	}
	return result, nil
}

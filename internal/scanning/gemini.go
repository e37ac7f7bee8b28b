package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfidence is reported on drafts produced by Gemini.
const GeminiConfidence = 0.85

// Gemini implements AnalysisProvider using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	parser draftParser
}

// NewGemini creates a new Gemini analysis provider
func NewGemini(ctx context.Context, apiKey string, modelName string, now func() time.Time) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", ErrNotConfigured)
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(1000)

	return &Gemini{
		client: client,
		model:  model,
		parser: newDraftParser(nil, now),
	}, nil
}

// Source implements AnalysisProvider
func (g *Gemini) Source() Source {
	return SourceGemini
}

// Analyze asks Gemini to structure the receipt text
func (g *Gemini) Analyze(ctx context.Context, text string) (*ExpenseDraft, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildAnalysisPrompt(text, DefaultCategories)))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no response from gemini", ErrMalformedResponse)
	}

	// Extract text response
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	draft, err := g.parser.parse(responseText.String(), SourceGemini, GeminiConfidence)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return draft, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

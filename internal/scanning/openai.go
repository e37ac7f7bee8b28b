package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfidence is reported on drafts produced by OpenAI.
const OpenAIConfidence = 0.9

// OpenAI implements AnalysisProvider using the OpenAI chat completions API
type OpenAI struct {
	client *openai.Client
	model  string
	parser draftParser
}

// NewOpenAI creates a new OpenAI analysis provider. baseURL may be empty.
func NewOpenAI(apiKey, modelName, baseURL string, now func() time.Time) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required: %w", ErrNotConfigured)
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
		parser: newDraftParser(nil, now),
	}, nil
}

// Source implements AnalysisProvider
func (o *OpenAI) Source() Source {
	return SourceOpenAI
}

// Analyze asks the model to structure the receipt text
func (o *OpenAI) Analyze(ctx context.Context, text string) (*ExpenseDraft, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: receiptSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildAnalysisPrompt(text, DefaultCategories)},
		},
		MaxTokens:   1000,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices from openai", ErrMalformedResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	draft, err := o.parser.parse(content, SourceOpenAI, OpenAIConfidence)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return draft, nil
}

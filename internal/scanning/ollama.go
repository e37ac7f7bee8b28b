package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfidence is reported on drafts produced by a local Ollama model.
const OllamaConfidence = 0.7

// Ollama implements AnalysisProvider using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	parser  draftParser
}

// NewOllama creates a new Ollama analysis provider.
// Text models with JSON mode work best, e.g. llama3.1, qwen2.5 or gemma2.
func NewOllama(baseURL string, modelName string, now func() time.Time) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5"
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		// Calls are bounded by the chain's context deadline
		client: &http.Client{},
		parser: newDraftParser(nil, now),
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Source implements AnalysisProvider
func (o *Ollama) Source() Source {
	return SourceOllama
}

// Analyze asks the local model to structure the receipt text
func (o *Ollama) Analyze(ctx context.Context, text string) (*ExpenseDraft, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: receiptSystemPrompt},
			{Role: "user", Content: buildAnalysisPrompt(text, DefaultCategories)},
		},
		Options: map[string]any{"temperature": 0.1},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformedResponse, err)
	}

	draft, err := o.parser.parse(chatResp.Message.Content, SourceOllama, OllamaConfidence)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return draft, nil
}

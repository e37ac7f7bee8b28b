package scanning

import (
	"fmt"
	"strings"
)

// receiptSystemPrompt is sent as the system message where a provider supports one
const receiptSystemPrompt = "You are an expert at reading Thai and English receipts. Answer with JSON only."

// receiptAnalysisPrompt is the shared prompt used by all LLM providers for structuring receipt text
const receiptAnalysisPrompt = `Analyze the following text read from a receipt and convert it to JSON.

Receipt text:
%s

Return ONLY valid JSON in this exact format:
{
  "merchant": "Store name",
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "items": [
    {"name": "Item name", "price": 0.00, "quantity": 1, "category": "category"}
  ]
}

Important:
- The merchant is the store or business name, usually on the first lines
- The date must be in YYYY-MM-DD format using the Gregorian calendar (convert Buddhist Era years by subtracting 543)
- total and price must be numbers (not strings) in Thai baht
- quantity must be a whole number
- category must be one of: %s
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// buildAnalysisPrompt renders the prompt for text using the labels of categories
func buildAnalysisPrompt(text string, categories []Category) string {
	labels := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		labels = append(labels, c.Label)
	}
	labels = append(labels, CategoryOther)
	return fmt.Sprintf(receiptAnalysisPrompt, text, strings.Join(labels, ", "))
}

package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// draftJSON is the shape requested from LLM providers
type draftJSON struct {
	Merchant string           `json:"merchant"`
	Date     string           `json:"date"`
	Total    *decimal.Decimal `json:"total"`
	Items    []itemJSON       `json:"items"`
}

type itemJSON struct {
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *float64         `json:"quantity"`
	Category string           `json:"category"`
}

// draftParser turns LLM responses into drafts
type draftParser struct {
	classifier *CategoryClassifier
	now        func() time.Time
}

func newDraftParser(classifier *CategoryClassifier, now func() time.Time) draftParser {
	if classifier == nil {
		classifier = NewCategoryClassifier(DefaultCategories)
	}
	if now == nil {
		now = time.Now
	}
	return draftParser{classifier: classifier, now: now}
}

// extractJSONObject strips markdown fences and returns the outermost JSON object in text
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("%w: invalid JSON object", ErrMalformedResponse)
	}
	return text[startIdx : endIdx+1], nil
}

// parse decodes an LLM response. Missing totals and prices make the response malformed;
// other missing fields are left empty so Validate rejects the draft.
func (p draftParser) parse(text string, source Source, confidence float64) (*ExpenseDraft, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var data draftJSON
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrMalformedResponse, err)
	}
	if data.Total == nil {
		return nil, fmt.Errorf("%w: total is missing", ErrMalformedResponse)
	}

	draft := &ExpenseDraft{
		Merchant:   strings.TrimSpace(data.Merchant),
		Date:       p.parseDate(data.Date),
		Total:      *data.Total,
		Confidence: confidence,
		Source:     source,
	}

	if data.Items != nil {
		draft.Items = make([]LineItem, 0, len(data.Items))
	}
	for i, it := range data.Items {
		if it.Price == nil {
			return nil, fmt.Errorf("%w: item %d has no price", ErrMalformedResponse, i+1)
		}
		item := LineItem{
			Name:     strings.TrimSpace(it.Name),
			Price:    *it.Price,
			Category: strings.ToLower(strings.TrimSpace(it.Category)),
		}
		if it.Quantity != nil {
			item.Quantity = int(math.Round(*it.Quantity))
		}
		if !p.classifier.Known(item.Category) {
			item.Category = p.classifier.Classify(item.Name)
		}
		draft.Items = append(draft.Items, item)
	}

	return draft, nil
}

// parseDate accepts ISO and day-first dates, including Buddhist Era years. An empty
// date stays zero; an unreadable one becomes today.
func (p draftParser) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"02-01-2006",
		"2/1/2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			if d.Year() >= 2400 {
				d = d.AddDate(-buddhistEraOffset, 0, 0)
			}
			return calendarDate(d)
		}
	}
	return calendarDate(p.now())
}

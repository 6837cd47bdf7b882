// Package extraction reads receipt photos and suggests categories with a
// hosted multimodal model.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"lana/internal/dates"
)

var (
	// ErrNotConfigured is returned when no model client is available.
	ErrNotConfigured = errors.New("extraction: model not configured")
	// ErrUnreadable is returned when the model answer cannot be parsed.
	ErrUnreadable = errors.New("extraction: unreadable model response")
)

// Generator is the slice of the Gemini models API used here. *genai.Models
// satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiGenerator creates a Gemini API client.
func NewGeminiGenerator(ctx context.Context, apiKey string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

// Confidence flags which draft fields the model actually found.
type Confidence struct {
	Amount   bool `json:"amount"`
	Merchant bool `json:"merchant"`
	Date     bool `json:"date"`
}

// Draft is an unsaved expense read from a receipt.
type Draft struct {
	Amount     int64       `json:"amount"`
	Merchant   string      `json:"merchant"`
	Date       *dates.Date `json:"date,omitempty"`
	Category   string      `json:"category,omitempty"`
	Confidence Confidence  `json:"confidence"`
}

// Extractor calls the model. A nil generator leaves it unconfigured:
// receipt scans fail and suggestions use keywords only.
type Extractor struct {
	gen     Generator
	model   string
	timeout time.Duration
}

// NewExtractor returns an Extractor using model on gen.
func NewExtractor(gen Generator, model string) *Extractor {
	return &Extractor{gen: gen, model: model, timeout: 45 * time.Second}
}

// Configured reports whether a model client is set.
func (e *Extractor) Configured() bool {
	return e != nil && e.gen != nil
}

const receiptPrompt = "You read photos of purchase receipts, mostly from Mexico.\n\n" +
	"Return STRICT JSON only, one object with these fields:\n" +
	"- \"total\": number, the final amount paid including taxes, or null\n" +
	"- \"merchant\": string, the business name as printed, or null\n" +
	"- \"date\": string \"YYYY-MM-DD\", the purchase date, or null\n\n" +
	"Do not guess: use null for anything you cannot read.\n" +
	"Do NOT wrap the response in code fences.\n"

// ScanReceipt preprocesses the image and asks the model for total, merchant
// and date. loc resolves the printed date to a calendar day.
func (e *Extractor) ScanReceipt(ctx context.Context, image []byte, loc *time.Location) (*Draft, error) {
	if !e.Configured() {
		return nil, ErrNotConfigured
	}
	prepared, err := Preprocess(image)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: prepared}},
			},
		},
	}
	raw, err := e.generate(ctx, contents)
	if err != nil {
		return nil, err
	}
	return parseReceipt(raw, loc)
}

type receiptAnswer struct {
	Total    json.RawMessage `json:"total"`
	Merchant *string         `json:"merchant"`
	Date     *string         `json:"date"`
}

func parseReceipt(raw string, loc *time.Location) (*Draft, error) {
	var ans receiptAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &ans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	d := &Draft{}
	if cents, ok := parseAmount(ans.Total); ok {
		d.Amount = cents
		d.Confidence.Amount = true
	}
	if ans.Merchant != nil {
		if m := strings.TrimSpace(*ans.Merchant); m != "" {
			d.Merchant = m
			d.Confidence.Merchant = true
		}
	}
	if ans.Date != nil {
		if day, err := dates.Parse(strings.TrimSpace(*ans.Date), loc); err == nil {
			d.Date = &day
			d.Confidence.Date = true
		}
	}
	return d, nil
}

// parseAmount accepts a JSON number or a printed amount such as "$1,234.50"
// and returns positive cents.
func parseAmount(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "", "MXN", "").Replace(str)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil || !amount.IsPositive() {
		return 0, false
	}
	return amount.Shift(2).Round(0).IntPart(), true
}

func (e *Extractor) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	temperature := float32(0)
	resp, err := e.gen.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnreadable)
	}
	return text, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

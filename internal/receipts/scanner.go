// Package receipts extracts structured transaction fields from receipt
// images with Gemini vision.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for receipt scanning.
const DefaultModelName = "gemini-2.0-flash"

// MaxImageBytes is the largest accepted receipt image (5 MB).
const MaxImageBytes = 5 << 20

// ScanResult is the structured extraction from a receipt image. IsReceipt is
// false when the image does not look like a receipt at all.
type ScanResult struct {
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"-"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchantName"`
	Category     string    `json:"category"`
	IsReceipt    bool      `json:"-"`
}

// Scanner scans receipt images.
type Scanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (*ScanResult, error)
}

// GeminiScanner is the concrete Scanner backed by the genai SDK. Concurrent
// model calls are capped with a semaphore; vision requests are expensive and
// an unbounded burst from the upload form would hit provider rate limits.
type GeminiScanner struct {
	model string
	sem   chan struct{}
}

func NewGeminiScanner() *GeminiScanner {
	return &GeminiScanner{
		model: DefaultModelName,
		sem:   make(chan struct{}, 3),
	}
}

const scanPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format YYYY-MM-DD)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: housing, transportation, groceries, utilities, entertainment, food, shopping, healthcare, education, personal, travel, insurance, gifts, bills, other-expense)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it's not a receipt, return an empty object {}.
Do NOT wrap the response in code fences.`

// Scan sends the image to the model and parses the structured reply.
func (s *GeminiScanner) Scan(ctx context.Context, image []byte, mimeType string) (*ScanResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("receipts: empty image")
	}
	if len(image) > MaxImageBytes {
		return nil, fmt.Errorf("receipts: image exceeds %d bytes", MaxImageBytes)
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("receipts: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: scanPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("receipts: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("receipts: empty response from model")
	}

	return ParseScanResponse(rawText)
}

// ParseScanResponse parses the model reply. An empty JSON object means the
// image was not a receipt; that is a valid result, not an error.
func ParseScanResponse(raw string) (*ScanResult, error) {
	clean := cleanModelJSON(raw)

	var payload struct {
		Amount       float64 `json:"amount"`
		Date         string  `json:"date"`
		Description  string  `json:"description"`
		MerchantName string  `json:"merchantName"`
		Category     string  `json:"category"`
	}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("receipts: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	if payload.Date == "" && payload.Amount == 0 && payload.MerchantName == "" {
		return &ScanResult{IsReceipt: false}, nil
	}

	result := &ScanResult{
		Amount:       payload.Amount,
		Description:  payload.Description,
		MerchantName: payload.MerchantName,
		Category:     payload.Category,
		IsReceipt:    true,
	}
	if payload.Date != "" {
		d, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return nil, fmt.Errorf("receipts: bad date %q: %w", payload.Date, err)
		}
		result.Date = d
	}
	return result, nil
}

// cleanModelJSON strips markdown fences and keeps only the outermost JSON
// object when the model ignores formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

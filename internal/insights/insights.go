// Package insights asks Gemini for short natural-language takeaways on a
// month of spending. The model is treated as unreliable: callers get either
// a parsed list of strings or an error, and apply their own fallback.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// DefaultModelName is the Gemini model used for insight generation.
const DefaultModelName = "gemini-2.0-flash"

// FallbackInsights is substituted whenever generation fails or returns
// unparsable content. Report delivery must never abort on a model failure.
var FallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// Generator produces insight strings for a month of aggregated stats.
type Generator interface {
	Generate(ctx context.Context, stats domain.MonthlyStats, month string) ([]string, error)
}

// GeminiGenerator is the concrete Generator backed by the genai SDK.
// The client reads GEMINI_API_KEY from the environment.
type GeminiGenerator struct {
	model string
}

func NewGeminiGenerator() *GeminiGenerator {
	return &GeminiGenerator{model: DefaultModelName}
}

// Generate asks the model for three short insights and parses the response
// as a JSON array of strings after stripping any markdown fences.
func (g *GeminiGenerator) Generate(ctx context.Context, stats domain.MonthlyStats, month string) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("insights: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: BuildPrompt(stats, month)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("insights: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("insights: empty response from model")
	}

	return ParseInsights(rawText)
}

// BuildPrompt renders the aggregates into the instruction prompt.
func BuildPrompt(stats domain.MonthlyStats, month string) string {
	var b strings.Builder
	b.WriteString("Analyze this financial data and provide 3 concise, actionable insights.\n")
	b.WriteString("Focus on spending patterns and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Financial Data for %s:\n", month)
	fmt.Fprintf(&b, "- Total Income: $%s\n", stats.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "- Total Expenses: $%s\n", stats.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "- Net Income: $%s\n", stats.Net().StringFixed(2))

	// Stable ordering keeps the prompt deterministic.
	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, fmt.Sprintf("%s: $%s", c, stats.ByCategory[c].StringFixed(2)))
	}
	fmt.Fprintf(&b, "- Expense Categories: %s\n\n", strings.Join(parts, ", "))

	b.WriteString("Format the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]` + "\n")
	b.WriteString("Return ONLY the raw JSON array. Do NOT wrap it in code fences.\n")
	return b.String()
}

// ParseInsights extracts a JSON string array from a model response,
// tolerating markdown fences and surrounding junk.
func ParseInsights(raw string) ([]string, error) {
	clean := cleanModelJSON(raw)

	var insights []string
	if err := json.Unmarshal([]byte(clean), &insights); err != nil {
		return nil, fmt.Errorf("insights: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if len(insights) == 0 {
		return nil, fmt.Errorf("insights: model returned an empty array")
	}
	return insights, nil
}

// cleanModelJSON strips markdown fences and keeps only the outermost JSON
// array when the model ignores formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
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

	// If there's still junk around the JSON array, keep only from the first
	// '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

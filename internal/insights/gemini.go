package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"finsight/internal/core"
)

// GeminiGenerator asks a Gemini model for three short insights about a
// month's statistics.
type GeminiGenerator struct {
	apiKey string
	model  string
}

func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	return &GeminiGenerator{apiKey: apiKey, model: model}
}

func (g *GeminiGenerator) GenerateInsights(ctx context.Context, stats core.MonthlyStats, month string) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(stats, month)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, errors.New("generate insights: empty model response")
	}

	return parseInsights(raw)
}

func buildPrompt(stats core.MonthlyStats, month string) string {
	categories := make([]string, 0, len(stats.ByCategory))
	for cat, amount := range stats.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: $%s", cat, amount))
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Analyze this financial data and provide 3 concise, actionable insights.\n")
	b.WriteString("Focus on spending patterns and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Financial Data for %s:\n", month)
	fmt.Fprintf(&b, "- Total Income: $%s\n", stats.TotalIncome)
	fmt.Fprintf(&b, "- Total Expenses: $%s\n", stats.TotalExpenses)
	fmt.Fprintf(&b, "- Net Income: $%s\n", stats.TotalIncome.Sub(stats.TotalExpenses))
	fmt.Fprintf(&b, "- Expense Categories: %s\n\n", strings.Join(categories, ", "))
	b.WriteString("Format the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

// parseInsights extracts the JSON string array from a model response,
// tolerating Markdown code fences the model was told not to emit.
func parseInsights(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("parse insights response: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("parse insights response: empty array")
	}
	return out, nil
}

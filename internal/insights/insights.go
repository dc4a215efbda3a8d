// Package insights produces short narrative observations about a month of
// spending. The Gemini-backed generator is best effort; callers fall back to
// StaticInsights whenever it fails.
package insights

import (
	"context"

	"finsight/internal/core"
)

// Generator turns monthly statistics into a handful of short insight strings.
type Generator interface {
	GenerateInsights(ctx context.Context, stats core.MonthlyStats, month string) ([]string, error)
}

// StaticInsights is the fallback used when no model is configured or the
// model call fails.
func StaticInsights() []string {
	return []string{
		"Your highest expense category this month might need attention.",
		"Consider setting up a budget for better financial management.",
		"Track your recurring expenses to identify potential savings.",
	}
}

// StaticGenerator always returns the static fallback insights.
type StaticGenerator struct{}

func (StaticGenerator) GenerateInsights(_ context.Context, _ core.MonthlyStats, _ string) ([]string, error) {
	return StaticInsights(), nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
	"finsight/internal/email"
	"finsight/internal/insights"
)

// ReportStore is the store surface the monthly report generator needs.
type ReportStore interface {
	ListUsersWithAccounts(ctx context.Context) ([]core.User, error)
	MonthlyStats(ctx context.Context, userID string, from, to time.Time) (core.MonthlyStats, error)
}

// ReportGenerator emails each account-holding user a summary of the previous
// calendar month. Insight generation is best effort: when the model fails,
// the report ships with static insights instead of failing.
type ReportGenerator struct {
	store    ReportStore
	sender   email.Sender
	insights insights.Generator
}

func NewReportGenerator(store ReportStore, sender email.Sender, gen insights.Generator) *ReportGenerator {
	return &ReportGenerator{store: store, sender: sender, insights: gen}
}

// GenerateReports sends one report per user and returns the number sent.
// Per-user failures are logged and skipped.
func (g *ReportGenerator) GenerateReports(ctx context.Context, now time.Time) (int, error) {
	users, err := g.store.ListUsersWithAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users with accounts: %w", err)
	}

	from, to := core.PreviousMonthRange(now)
	month := from.Format("January")

	processed := 0
	for _, user := range users {
		if err := g.reportForUser(ctx, user, from, to, month); err != nil {
			slog.ErrorContext(ctx, "Monthly report failed",
				"user_id", user.ID,
				"month", month,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Monthly report generation complete",
		"users", len(users),
		"processed", processed,
		"month", month)

	return processed, nil
}

func (g *ReportGenerator) reportForUser(ctx context.Context, user core.User, from, to time.Time, month string) error {
	stats, err := g.store.MonthlyStats(ctx, user.ID, from, to)
	if err != nil {
		return fmt.Errorf("compute monthly stats: %w", err)
	}

	lines, err := g.insights.GenerateInsights(ctx, stats, month)
	if err != nil {
		slog.WarnContext(ctx, "Insight generation failed, using static insights",
			"user_id", user.ID,
			"error", err)
		lines = insights.StaticInsights()
	}

	body, err := email.RenderMonthlyReport(email.NewMonthlyReportData(user.Name, month, stats, lines))
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	err = g.sender.Send(ctx, email.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Your Monthly Financial Report - %s", month),
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	return nil
}

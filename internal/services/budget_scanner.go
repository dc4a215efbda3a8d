package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
	"finsight/internal/email"
	"finsight/internal/storage"
)

const alertThresholdPercent = 80

// BudgetStore is the store surface the budget alert scanner needs.
type BudgetStore interface {
	ListBudgets(ctx context.Context) ([]storage.BudgetRecord, error)
	GetDefaultAccount(ctx context.Context, userID string) (*core.Account, error)
	SumExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (core.Money, error)
	SetBudgetLastAlert(ctx context.Context, budgetID string, sentAt time.Time) error
}

// BudgetAlertScanner emails users whose month-to-date spend on their default
// account crosses the alert threshold. The lastAlertSent timestamp caps
// alerts at one per budget per calendar month no matter how often the
// scanner runs.
type BudgetAlertScanner struct {
	store  BudgetStore
	sender email.Sender
}

func NewBudgetAlertScanner(store BudgetStore, sender email.Sender) *BudgetAlertScanner {
	return &BudgetAlertScanner{store: store, sender: sender}
}

// ScanBudgets checks every budget and returns the number of alerts sent.
// Per-budget failures are logged and skipped so one bad record cannot block
// the batch.
func (s *BudgetAlertScanner) ScanBudgets(ctx context.Context, now time.Time) (int, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}

	sent := 0
	for _, rec := range budgets {
		fired, err := s.checkBudget(ctx, rec, now)
		if err != nil {
			slog.ErrorContext(ctx, "Budget check failed",
				"budget_id", rec.Budget.ID,
				"user_id", rec.Budget.UserID,
				"error", err)
			continue
		}
		if fired {
			sent++
		}
	}

	slog.InfoContext(ctx, "Budget alert scan complete",
		"budgets", len(budgets),
		"alerts_sent", sent)

	return sent, nil
}

func (s *BudgetAlertScanner) checkBudget(ctx context.Context, rec storage.BudgetRecord, now time.Time) (bool, error) {
	budget := rec.Budget

	account, err := s.store.GetDefaultAccount(ctx, budget.UserID)
	if errors.Is(err, core.ErrNotFound) {
		// No default account means nothing to measure against.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve default account: %w", err)
	}

	// A zero or negative budget has no meaningful percentage.
	if !budget.Amount.IsPositive() {
		return false, nil
	}

	spent, err := s.store.SumExpenses(ctx, budget.UserID, account.ID, core.MonthStart(now), now)
	if err != nil {
		return false, fmt.Errorf("sum month-to-date expenses: %w", err)
	}

	percentUsed := core.PercentUsed(spent, budget.Amount)
	if percentUsed < alertThresholdPercent {
		return false, nil
	}
	if budget.LastAlertSent != nil && core.SameCalendarMonth(*budget.LastAlertSent, now) {
		return false, nil
	}

	body, err := email.RenderBudgetAlert(
		email.NewBudgetAlertData(rec.UserName, account.Name, budget.Amount, spent, percentUsed))
	if err != nil {
		return false, fmt.Errorf("render alert: %w", err)
	}

	err = s.sender.Send(ctx, email.Message{
		To:      rec.UserEmail,
		Subject: fmt.Sprintf("Budget Alert for %s", account.Name),
		HTML:    body,
	})
	if err != nil {
		return false, fmt.Errorf("send alert: %w", err)
	}

	// Stamp only after a successful send; a failed send retries naturally on
	// the next scan.
	if err := s.store.SetBudgetLastAlert(ctx, budget.ID, now); err != nil {
		return false, fmt.Errorf("record alert timestamp: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"budget_id", budget.ID,
		"user_id", budget.UserID,
		"percentage_used", percentUsed)

	return true, nil
}

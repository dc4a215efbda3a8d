package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
	"finsight/internal/storage"
)

// ProcessorStore is the store surface the recurring processor needs: load a
// template and commit one recurrence application atomically.
type ProcessorStore interface {
	GetTransaction(ctx context.Context, id, userID string) (*core.Transaction, error)
	ApplyRecurrence(ctx context.Context, p storage.ApplyRecurrenceParams) error
}

// RecurringProcessor materializes one due occurrence of a recurring template:
// it creates the instance transaction, advances the template's schedule and
// adjusts the account balance as a single logical unit.
//
// Delivery of work items is at-least-once, so Process re-checks due-ness
// before acting: once a prior delivery has committed the schedule advance,
// a duplicate finds the template no longer due and exits without effect.
type RecurringProcessor struct {
	store ProcessorStore
}

func NewRecurringProcessor(store ProcessorStore) *RecurringProcessor {
	return &RecurringProcessor{store: store}
}

// Process handles one work item. A vanished template is a benign no-op; any
// other failure propagates so the delivery layer can retry this item alone.
func (p *RecurringProcessor) Process(ctx context.Context, transactionID, userID string, now time.Time) error {
	template, err := p.store.GetTransaction(ctx, transactionID, userID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Recurring template gone, skipping",
			"transaction_id", transactionID,
			"user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recurring template: %w", err)
	}

	if !template.IsDue(now) {
		slog.InfoContext(ctx, "Recurring template not due, skipping",
			"transaction_id", template.ID,
			"next_recurring_date", template.NextRecurringDate)
		return nil
	}

	next, err := core.NextRecurringDate(template.Date, template.RecurringInterval)
	if err != nil {
		return fmt.Errorf("compute next occurrence for %s: %w", template.ID, err)
	}

	instance := core.Transaction{
		ID:          uuid.NewString(),
		Type:        template.Type,
		Amount:      template.Amount,
		Description: template.Description + " (Recurring)",
		Date:        now,
		Category:    template.Category,
		Status:      core.StatusCompleted,
		UserID:      template.UserID,
		AccountID:   template.AccountID,
	}

	err = p.store.ApplyRecurrence(ctx, storage.ApplyRecurrenceParams{
		Instance:          instance,
		TemplateID:        template.ID,
		LastProcessed:     now,
		NextRecurringDate: next,
		AccountID:         template.AccountID,
		BalanceDelta:      template.BalanceDelta(),
	})
	if err != nil {
		return fmt.Errorf("apply recurrence for %s: %w", template.ID, err)
	}

	slog.InfoContext(ctx, "Recurring transaction processed",
		"transaction_id", template.ID,
		"instance_id", instance.ID,
		"amount_cents", template.Amount.Cents(),
		"type", template.Type,
		"next_recurring_date", next.Format("2006-01-02"))

	return nil
}

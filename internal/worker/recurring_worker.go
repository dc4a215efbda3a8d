// Package worker consumes process-recurring work items and applies them.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/core"
)

// Processor applies one due recurring template.
type Processor interface {
	Process(ctx context.Context, transactionID, userID string, now time.Time) error
}

// DueLister finds recurring templates whose next occurrence is due.
type DueLister interface {
	FindDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
}

// RecurringWorker bridges AMQP deliveries to the recurring processor.
type RecurringWorker struct {
	processor Processor
	due       DueLister
}

func NewRecurringWorker(processor Processor, due DueLister) *RecurringWorker {
	return &RecurringWorker{processor: processor, due: due}
}

// HandleProcessMessage processes a single work item from the queue.
func (w *RecurringWorker) HandleProcessMessage(ctx context.Context, msg *amqp.ProcessRecurringMessage) error {
	slog.InfoContext(ctx, "Processing recurring transaction message",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	if err := w.processor.Process(ctx, msg.TransactionID, msg.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("process recurring transaction: %w", err)
	}

	return nil
}

// StartupCatchUp processes any templates that are already due, directly and
// without the queue. This is a backup mechanism in case published messages
// were lost while the worker was down.
func (w *RecurringWorker) StartupCatchUp(ctx context.Context, now time.Time) error {
	due, err := w.due.FindDueRecurring(ctx, now)
	if err != nil {
		return fmt.Errorf("find due templates for startup check: %w", err)
	}

	if len(due) == 0 {
		slog.InfoContext(ctx, "No due recurring templates found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found due recurring templates on startup, processing...",
		"count", len(due))

	processed := 0
	failed := 0
	for _, tx := range due {
		if err := w.processor.Process(ctx, tx.ID, tx.UserID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to process template during startup",
				"transaction_id", tx.ID, "error", err)
			failed++
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Startup catch-up completed",
		"total", len(due),
		"processed", processed,
		"failed", failed)

	return nil
}

// Package services implements the scheduled jobs: the due-transaction
// scanner, the per-transaction recurring processor, the budget alert scanner
// and the monthly report generator. Every job is stateless across
// invocations; all durable state lives in the store.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
)

// DueLister finds recurring templates ready for processing.
type DueLister interface {
	FindDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
}

// RecurringPublisher emits one work item per due template.
type RecurringPublisher interface {
	PublishProcessRecurring(ctx context.Context, transactionID, userID string) error
}

// DueScanner dispatches due recurring templates as independent work items.
// It never mutates the store; processing happens downstream, one consumer
// invocation per item.
type DueScanner struct {
	store     DueLister
	publisher RecurringPublisher
}

func NewDueScanner(store DueLister, publisher RecurringPublisher) *DueScanner {
	return &DueScanner{store: store, publisher: publisher}
}

// ScanDue queries all due recurring templates and publishes one message per
// match, returning the number dispatched. A query failure aborts the scan
// before any dispatch; a publish failure is isolated to its item.
func (s *DueScanner) ScanDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.FindDueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find due recurring transactions: %w", err)
	}

	if len(due) == 0 {
		slog.InfoContext(ctx, "No due recurring transactions", "scan_date", now.Format("2006-01-02"))
		return 0, nil
	}

	dispatched := 0
	for _, tx := range due {
		if err := s.publisher.PublishProcessRecurring(ctx, tx.ID, tx.UserID); err != nil {
			slog.ErrorContext(ctx, "Failed to dispatch recurring transaction",
				"transaction_id", tx.ID,
				"user_id", tx.UserID,
				"error", err)
			continue
		}
		dispatched++
	}

	slog.InfoContext(ctx, "Due recurring scan complete",
		"due", len(due),
		"dispatched", dispatched)

	return dispatched, nil
}

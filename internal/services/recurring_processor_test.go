package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finsight/internal/core"
)

func TestRecurringProcessor_Process(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	store := newFakeStore()
	template := newTemplate("tmpl-1", "user-1", &yesterday)
	store.templates["tmpl-1"] = template
	store.accounts["acct-1"] = &core.Account{
		ID:      "acct-1",
		Name:    "Main",
		Balance: core.MoneyFromCents(50000), // 500.00
		UserID:  "user-1",
	}

	processor := NewRecurringProcessor(store)

	if err := processor.Process(context.Background(), "tmpl-1", "user-1", now); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// One instance created, marked as a generated recurrence.
	if len(store.instances) != 1 {
		t.Fatalf("created %d instances, want 1", len(store.instances))
	}
	instance := store.instances[0]
	if instance.Amount.Cents() != 5000 {
		t.Errorf("instance amount = %d cents, want 5000", instance.Amount.Cents())
	}
	if !strings.HasSuffix(instance.Description, " (Recurring)") {
		t.Errorf("instance description = %q, want recurring suffix", instance.Description)
	}
	if instance.IsRecurring {
		t.Error("instance must not itself be recurring")
	}
	if !instance.Date.Equal(now) {
		t.Errorf("instance date = %v, want %v", instance.Date, now)
	}

	// Balance dropped by the expense amount.
	if got := store.accounts["acct-1"].Balance.Cents(); got != 45000 {
		t.Errorf("balance = %d cents, want 45000", got)
	}

	// Schedule advanced one month from the template date, not from now.
	wantNext := template.Date.AddDate(0, 1, 0)
	if template.NextRecurringDate == nil || !template.NextRecurringDate.Equal(wantNext) {
		t.Errorf("NextRecurringDate = %v, want %v", template.NextRecurringDate, wantNext)
	}
	if template.LastProcessed == nil || !template.LastProcessed.Equal(now) {
		t.Errorf("LastProcessed = %v, want %v", template.LastProcessed, now)
	}
}

func TestRecurringProcessor_DoubleDeliveryIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	store := newFakeStore()
	store.templates["tmpl-1"] = newTemplate("tmpl-1", "user-1", &yesterday)
	store.accounts["acct-1"] = &core.Account{ID: "acct-1", Balance: core.MoneyFromCents(50000), UserID: "user-1"}

	processor := NewRecurringProcessor(store)

	// Simulate at-least-once delivery of the same work item.
	if err := processor.Process(context.Background(), "tmpl-1", "user-1", now); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := processor.Process(context.Background(), "tmpl-1", "user-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if len(store.instances) != 1 {
		t.Errorf("created %d instances, want exactly 1", len(store.instances))
	}
	if got := store.accounts["acct-1"].Balance.Cents(); got != 45000 {
		t.Errorf("balance = %d cents, want 45000 (single adjustment)", got)
	}
}

func TestRecurringProcessor_IncomeAddsToBalance(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	template := newTemplate("tmpl-1", "user-1", nil)
	template.Type = core.Income
	template.Amount = core.MoneyFromCents(250000)
	store.templates["tmpl-1"] = template
	store.accounts["acct-1"] = &core.Account{ID: "acct-1", Balance: core.MoneyFromCents(10000), UserID: "user-1"}

	if err := NewRecurringProcessor(store).Process(context.Background(), "tmpl-1", "user-1", now); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := store.accounts["acct-1"].Balance.Cents(); got != 260000 {
		t.Errorf("balance = %d cents, want 260000", got)
	}
}

func TestRecurringProcessor_MissingTemplateIsBenign(t *testing.T) {
	processor := NewRecurringProcessor(newFakeStore())

	if err := processor.Process(context.Background(), "gone", "user-1", time.Now()); err != nil {
		t.Errorf("missing template should be a no-op, got %v", err)
	}
}

func TestRecurringProcessor_NotDueIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)

	store := newFakeStore()
	store.templates["tmpl-1"] = newTemplate("tmpl-1", "user-1", &future)
	store.accounts["acct-1"] = &core.Account{ID: "acct-1", Balance: core.MoneyFromCents(50000), UserID: "user-1"}

	if err := NewRecurringProcessor(store).Process(context.Background(), "tmpl-1", "user-1", now); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(store.instances) != 0 || store.applyCalls != 0 {
		t.Error("not-due template must not be applied")
	}
}

func TestRecurringProcessor_InvalidInterval(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	template := newTemplate("tmpl-1", "user-1", nil)
	template.RecurringInterval = "FORTNIGHTLY"
	store.templates["tmpl-1"] = template

	err := NewRecurringProcessor(store).Process(context.Background(), "tmpl-1", "user-1", now)
	if !errors.Is(err, core.ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if len(store.instances) != 0 {
		t.Error("invalid interval must not create an instance")
	}
}

func TestRecurringProcessor_StoreFailurePropagates(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.templates["tmpl-1"] = newTemplate("tmpl-1", "user-1", nil)
	store.applyErr = errors.New("disk full")

	err := NewRecurringProcessor(store).Process(context.Background(), "tmpl-1", "user-1", now)
	if err == nil {
		t.Fatal("store failure must propagate for retry")
	}
}

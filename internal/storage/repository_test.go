package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "finsight.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUserAccount(t *testing.T, repo *SQLiteRepository, balanceCents int64) (core.User, core.Account) {
	t.Helper()
	ctx := context.Background()

	user := core.User{
		ID:          uuid.NewString(),
		ClerkUserID: uuid.NewString(),
		Email:       uuid.NewString() + "@example.com",
		Name:        "Test User",
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	account := core.Account{
		ID:        uuid.NewString(),
		Name:      "Main",
		Type:      core.Current,
		Balance:   core.MoneyFromCents(balanceCents),
		IsDefault: true,
		UserID:    user.ID,
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return user, account
}

func recurringTemplate(user core.User, account core.Account, next *time.Time) core.Transaction {
	return core.Transaction{
		ID:                uuid.NewString(),
		Type:              core.Expense,
		Amount:            core.MoneyFromCents(5000),
		Description:       "Gym membership",
		Date:              time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Category:          "health",
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
		NextRecurringDate: next,
		Status:            core.StatusCompleted,
		UserID:            user.ID,
		AccountID:         account.ID,
	}
}

func TestFindDueRecurring(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 50000)

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 10)

	// 3 due: never processed, past next date x2. 2 not due: future next date,
	// pending status.
	due := []core.Transaction{
		recurringTemplate(user, account, nil),
		recurringTemplate(user, account, &past),
		recurringTemplate(user, account, &past),
	}
	due[1].LastProcessed = &past
	due[2].LastProcessed = &past

	notDueFuture := recurringTemplate(user, account, &future)
	notDueFuture.LastProcessed = &past
	notDuePending := recurringTemplate(user, account, &past)
	notDuePending.Status = core.StatusPending

	for _, tx := range append(due, notDueFuture, notDuePending) {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	got, err := repo.FindDueRecurring(ctx, now)
	if err != nil {
		t.Fatalf("FindDueRecurring: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("FindDueRecurring returned %d transactions, want 3", len(got))
	}
	for _, tx := range got {
		if !tx.IsRecurring {
			t.Errorf("transaction %s is not recurring", tx.ID)
		}
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 0)

	tx := recurringTemplate(user, account, nil)
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if _, err := repo.GetTransaction(ctx, tx.ID, user.ID); err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, tx.ID, "someone-else"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("wrong owner: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetTransaction(ctx, uuid.NewString(), user.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing id: expected ErrNotFound, got %v", err)
	}
}

func TestApplyRecurrence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 50000) // 500.00

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(time.Second)
	template := recurringTemplate(user, account, &yesterday)
	if err := repo.CreateTransaction(ctx, template); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	next, err := core.NextRecurringDate(template.Date, template.RecurringInterval)
	if err != nil {
		t.Fatalf("NextRecurringDate: %v", err)
	}

	err = repo.ApplyRecurrence(ctx, ApplyRecurrenceParams{
		Instance: core.Transaction{
			ID:          uuid.NewString(),
			Type:        template.Type,
			Amount:      template.Amount,
			Description: template.Description + " (Recurring)",
			Date:        now,
			Category:    template.Category,
			Status:      core.StatusCompleted,
			UserID:      template.UserID,
			AccountID:   template.AccountID,
		},
		TemplateID:        template.ID,
		LastProcessed:     now,
		NextRecurringDate: next,
		AccountID:         account.ID,
		BalanceDelta:      template.Amount.Neg(),
	})
	if err != nil {
		t.Fatalf("ApplyRecurrence: %v", err)
	}

	// Balance dropped by the expense amount.
	acct, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Balance.Cents() != 45000 {
		t.Errorf("balance = %d cents, want 45000", acct.Balance.Cents())
	}

	// Template schedule advanced.
	updated, err := repo.GetTransaction(ctx, template.ID, user.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if updated.LastProcessed == nil || !updated.LastProcessed.Equal(now) {
		t.Errorf("LastProcessed = %v, want %v", updated.LastProcessed, now)
	}
	if updated.NextRecurringDate == nil || !updated.NextRecurringDate.Equal(next) {
		t.Errorf("NextRecurringDate = %v, want %v", updated.NextRecurringDate, next)
	}

	// Template is no longer due.
	if updated.IsDue(now) {
		t.Error("template should not be due after schedule advance")
	}
}

func TestSumExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 0)

	monthStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	mk := func(txType core.TransactionType, cents int64, date time.Time) core.Transaction {
		return core.Transaction{
			ID:        uuid.NewString(),
			Type:      txType,
			Amount:    core.MoneyFromCents(cents),
			Date:      date,
			Category:  "misc",
			Status:    core.StatusCompleted,
			UserID:    user.ID,
			AccountID: account.ID,
		}
	}

	for _, tx := range []core.Transaction{
		mk(core.Expense, 30000, monthStart.AddDate(0, 0, 2)),
		mk(core.Expense, 50000, monthStart.AddDate(0, 0, 10)),
		mk(core.Income, 100000, monthStart.AddDate(0, 0, 5)),         // income excluded
		mk(core.Expense, 99900, monthStart.AddDate(0, 0, -1)),        // previous month excluded
		mk(core.Expense, 12300, now.AddDate(0, 0, 5)),                // after "now" excluded
	} {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	total, err := repo.SumExpenses(ctx, user.ID, account.ID, monthStart, now)
	if err != nil {
		t.Fatalf("SumExpenses: %v", err)
	}
	if total.Cents() != 80000 {
		t.Errorf("month-to-date expenses = %d cents, want 80000", total.Cents())
	}
}

func TestMonthlyStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 0)

	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)

	txs := []core.Transaction{
		{ID: uuid.NewString(), Type: core.Income, Amount: core.MoneyFromCents(500000), Date: from.AddDate(0, 0, 1), Category: "salary", Status: core.StatusCompleted, UserID: user.ID, AccountID: account.ID},
		{ID: uuid.NewString(), Type: core.Expense, Amount: core.MoneyFromCents(120000), Date: from.AddDate(0, 0, 3), Category: "housing", Status: core.StatusCompleted, UserID: user.ID, AccountID: account.ID},
		{ID: uuid.NewString(), Type: core.Expense, Amount: core.MoneyFromCents(30000), Date: from.AddDate(0, 0, 8), Category: "food", Status: core.StatusCompleted, UserID: user.ID, AccountID: account.ID},
		{ID: uuid.NewString(), Type: core.Expense, Amount: core.MoneyFromCents(20000), Date: from.AddDate(0, 0, 12), Category: "food", Status: core.StatusCompleted, UserID: user.ID, AccountID: account.ID},
	}
	for _, tx := range txs {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	stats, err := repo.MonthlyStats(ctx, user.ID, from, to)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if stats.TotalIncome.Cents() != 500000 {
		t.Errorf("TotalIncome = %d cents, want 500000", stats.TotalIncome.Cents())
	}
	if stats.TotalExpenses.Cents() != 170000 {
		t.Errorf("TotalExpenses = %d cents, want 170000", stats.TotalExpenses.Cents())
	}
	if stats.TransactionCount != 4 {
		t.Errorf("TransactionCount = %d, want 4", stats.TransactionCount)
	}
	if got := stats.ByCategory["food"].Cents(); got != 50000 {
		t.Errorf("food category = %d cents, want 50000", got)
	}
	if _, ok := stats.ByCategory["salary"]; ok {
		t.Error("income categories must not appear in expense breakdown")
	}
}

func TestMonthlyStats_EmptyMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, _ := seedUserAccount(t, repo, 0)

	stats, err := repo.MonthlyStats(ctx, user.ID,
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if !stats.TotalIncome.IsZero() || !stats.TotalExpenses.IsZero() {
		t.Error("empty month should have zero totals")
	}
	if stats.TransactionCount != 0 || len(stats.ByCategory) != 0 {
		t.Error("empty month should have no transactions or categories")
	}
}

func TestListBudgetsAndAlerts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, _ := seedUserAccount(t, repo, 0)

	budget := core.Budget{
		ID:     uuid.NewString(),
		Amount: core.MoneyFromCents(100000),
		UserID: user.ID,
	}
	if err := repo.CreateBudget(ctx, budget); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	records, err := repo.ListBudgets(ctx)
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ListBudgets returned %d records, want 1", len(records))
	}
	if records[0].UserEmail != user.Email {
		t.Errorf("UserEmail = %q, want %q", records[0].UserEmail, user.Email)
	}
	if records[0].Budget.LastAlertSent != nil {
		t.Error("new budget should have no alert timestamp")
	}

	sentAt := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	if err := repo.SetBudgetLastAlert(ctx, budget.ID, sentAt); err != nil {
		t.Fatalf("SetBudgetLastAlert: %v", err)
	}

	records, err = repo.ListBudgets(ctx)
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if records[0].Budget.LastAlertSent == nil || !records[0].Budget.LastAlertSent.Equal(sentAt) {
		t.Errorf("LastAlertSent = %v, want %v", records[0].Budget.LastAlertSent, sentAt)
	}
}

func TestGetDefaultAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo, 0)

	got, err := repo.GetDefaultAccount(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetDefaultAccount: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("default account = %s, want %s", got.ID, account.ID)
	}

	if _, err := repo.GetDefaultAccount(ctx, uuid.NewString()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for user without accounts, got %v", err)
	}
}

func TestListUsersWithAccounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	withAccount, _ := seedUserAccount(t, repo, 0)

	bare := core.User{
		ID:          uuid.NewString(),
		ClerkUserID: uuid.NewString(),
		Email:       "noaccounts@example.com",
	}
	if err := repo.CreateUser(ctx, bare); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	users, err := repo.ListUsersWithAccounts(ctx)
	if err != nil {
		t.Fatalf("ListUsersWithAccounts: %v", err)
	}
	if len(users) != 1 || users[0].ID != withAccount.ID {
		t.Errorf("ListUsersWithAccounts = %v, want only %s", users, withAccount.ID)
	}
}

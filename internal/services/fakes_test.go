package services

import (
	"context"
	"errors"
	"time"

	"finsight/internal/core"
	"finsight/internal/email"
	"finsight/internal/storage"
)

// fakeStore is an in-memory stand-in for the SQLite repository. Mutations
// behave like the real store so idempotency scenarios can be exercised.
type fakeStore struct {
	templates map[string]*core.Transaction
	accounts  map[string]*core.Account
	budgets   []storage.BudgetRecord
	users     []core.User
	stats     map[string]core.MonthlyStats
	expenses  map[string]core.Money // month-to-date expense total per account id
	instances []core.Transaction

	findDueErr  error
	applyErr    error
	sumErr      error
	statsErr    error
	applyCalls  int
	alertStamps map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:   map[string]*core.Transaction{},
		accounts:    map[string]*core.Account{},
		stats:       map[string]core.MonthlyStats{},
		expenses:    map[string]core.Money{},
		alertStamps: map[string]time.Time{},
	}
}

func (f *fakeStore) FindDueRecurring(_ context.Context, now time.Time) ([]core.Transaction, error) {
	if f.findDueErr != nil {
		return nil, f.findDueErr
	}
	var out []core.Transaction
	for _, tx := range f.templates {
		if tx.IsRecurring && tx.Status == core.StatusCompleted &&
			(tx.LastProcessed == nil || tx.IsDue(now)) {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id, userID string) (*core.Transaction, error) {
	tx, ok := f.templates[id]
	if !ok || tx.UserID != userID {
		return nil, core.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

func (f *fakeStore) ApplyRecurrence(_ context.Context, p storage.ApplyRecurrenceParams) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	template, ok := f.templates[p.TemplateID]
	if !ok {
		return core.ErrNotFound
	}
	account, ok := f.accounts[p.AccountID]
	if !ok {
		return core.ErrNotFound
	}

	f.instances = append(f.instances, p.Instance)
	lastProcessed := p.LastProcessed
	next := p.NextRecurringDate
	template.LastProcessed = &lastProcessed
	template.NextRecurringDate = &next
	account.Balance = account.Balance.Add(p.BalanceDelta)
	return nil
}

func (f *fakeStore) ListBudgets(context.Context) ([]storage.BudgetRecord, error) {
	return f.budgets, nil
}

func (f *fakeStore) GetDefaultAccount(_ context.Context, userID string) (*core.Account, error) {
	for _, acct := range f.accounts {
		if acct.UserID == userID && acct.IsDefault {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeStore) SumExpenses(_ context.Context, _, accountID string, _, _ time.Time) (core.Money, error) {
	if f.sumErr != nil {
		return core.Money{}, f.sumErr
	}
	return f.expenses[accountID], nil
}

func (f *fakeStore) SetBudgetLastAlert(_ context.Context, budgetID string, sentAt time.Time) error {
	for i := range f.budgets {
		if f.budgets[i].Budget.ID == budgetID {
			t := sentAt
			f.budgets[i].Budget.LastAlertSent = &t
			f.alertStamps[budgetID] = sentAt
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) ListUsersWithAccounts(context.Context) ([]core.User, error) {
	return f.users, nil
}

func (f *fakeStore) MonthlyStats(_ context.Context, userID string, _, _ time.Time) (core.MonthlyStats, error) {
	if f.statsErr != nil {
		return core.MonthlyStats{}, f.statsErr
	}
	if stats, ok := f.stats[userID]; ok {
		return stats, nil
	}
	return core.MonthlyStats{ByCategory: map[string]core.Money{}}, nil
}

// fakePublisher records dispatched work items and can fail selected ids.
type fakePublisher struct {
	published []string
	failFor   map[string]bool
}

func (f *fakePublisher) PublishProcessRecurring(_ context.Context, transactionID, _ string) error {
	if f.failFor[transactionID] {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, transactionID)
	return nil
}

// fakeSender records sent messages and can fail selected recipients.
type fakeSender struct {
	sent    []email.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	if f.failFor[msg.To] {
		return errors.New("smtp rejected")
	}
	f.sent = append(f.sent, msg)
	return nil
}

// fixedInsights returns a canned insight list, or an error when set.
type fixedInsights struct {
	lines []string
	err   error
}

func (f fixedInsights) GenerateInsights(context.Context, core.MonthlyStats, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

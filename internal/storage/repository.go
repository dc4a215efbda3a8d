// Package storage is the SQLite-backed store for users, accounts,
// transactions and budgets. All cross-invocation scheduler state (balances,
// schedule fields, alert timestamps) lives here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finsight/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, type, amount_cents, description, date, category, receipt_url,
	is_recurring, recurring_interval, next_recurring_date, last_processed, status, user_id, account_id`

// FindDueRecurring returns all completed recurring templates that have never
// been processed or whose next occurrence date has passed. Read-only.
func (r *SQLiteRepository) FindDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE is_recurring = 1
		  AND status = 'COMPLETED'
		  AND (last_processed IS NULL OR next_recurring_date <= ?)
		ORDER BY date`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("query due recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due transactions: %w", err)
	}
	return out, nil
}

// GetTransaction loads a transaction by id scoped to its owner. Returns
// core.ErrNotFound when no such row exists.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, userID string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &tx, nil
}

// ApplyRecurrenceParams describes the single logical unit a recurrence
// application commits: the new instance, the template's schedule advance and
// the account balance delta.
type ApplyRecurrenceParams struct {
	Instance          core.Transaction
	TemplateID        string
	LastProcessed     time.Time
	NextRecurringDate time.Time
	AccountID         string
	BalanceDelta      core.Money
}

// ApplyRecurrence commits the instance insert, the template schedule advance
// and the balance adjustment in one SQL transaction. The balance update is an
// in-database increment, never a read-modify-write in application code.
func (r *SQLiteRepository) ApplyRecurrence(ctx context.Context, p ApplyRecurrenceParams) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recurrence transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inst := p.Instance
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, type, amount_cents, description, date, category, receipt_url,
			 is_recurring, status, user_id, account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		inst.ID, string(inst.Type), inst.Amount.Cents(), inst.Description,
		inst.Date.UTC(), inst.Category, inst.ReceiptURL, string(inst.Status),
		inst.UserID, inst.AccountID, now, now)
	if err != nil {
		return fmt.Errorf("insert recurring instance: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET last_processed = ?, next_recurring_date = ?, updated_at = ?
		WHERE id = ?`,
		p.LastProcessed.UTC(), p.NextRecurringDate.UTC(), now, p.TemplateID)
	if err != nil {
		return fmt.Errorf("advance template schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("advance template schedule: %w", core.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = ?
		WHERE id = ?`,
		p.BalanceDelta.Cents(), now, p.AccountID)
	if err != nil {
		return fmt.Errorf("adjust account balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("adjust account balance: %w", core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recurrence transaction: %w", err)
	}
	return nil
}

// BudgetRecord joins a budget with its owner's contact details, which the
// alert scanner needs to address the notification.
type BudgetRecord struct {
	Budget    core.Budget
	UserEmail string
	UserName  string
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]BudgetRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.amount_cents, b.last_alert_sent, b.user_id, u.email, u.name
		FROM budgets b
		JOIN users u ON u.id = b.user_id
		ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []BudgetRecord
	for rows.Next() {
		var (
			rec       BudgetRecord
			cents     int64
			lastAlert sql.NullTime
		)
		if err := rows.Scan(&rec.Budget.ID, &cents, &lastAlert, &rec.Budget.UserID,
			&rec.UserEmail, &rec.UserName); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		rec.Budget.Amount = core.MoneyFromCents(cents)
		if lastAlert.Valid {
			t := lastAlert.Time
			rec.Budget.LastAlertSent = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// GetDefaultAccount returns the user's default account, or core.ErrNotFound
// when the user has none.
func (r *SQLiteRepository) GetDefaultAccount(ctx context.Context, userID string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, balance_cents, is_default, user_id
		FROM accounts
		WHERE user_id = ? AND is_default = 1
		LIMIT 1`, userID)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default account for user %s: %w", userID, err)
	}
	return &acct, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, balance_cents, is_default, user_id
		FROM accounts
		WHERE id = ?`, id)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &acct, nil
}

// SumExpenses totals EXPENSE transactions for one account of one user inside
// the inclusive [from, to] range.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE user_id = ? AND account_id = ? AND type = 'EXPENSE'
		  AND date >= ? AND date <= ?`,
		userID, accountID, from.UTC(), to.UTC()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.MoneyFromCents(cents), nil
}

func (r *SQLiteRepository) SetBudgetLastAlert(ctx context.Context, budgetID string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`,
		sentAt.UTC(), time.Now().UTC(), budgetID)
	if err != nil {
		return fmt.Errorf("set budget last alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set budget last alert: %w", core.ErrNotFound)
	}
	return nil
}

// ListUsersWithAccounts returns every user owning at least one account.
func (r *SQLiteRepository) ListUsersWithAccounts(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.clerk_user_id, u.email, u.name, u.image_url
		FROM users u
		JOIN accounts a ON a.user_id = u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("query users with accounts: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.ClerkUserID, &u.Email, &u.Name, &u.ImageURL); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// MonthlyStats aggregates one user's transactions inside the inclusive
// [from, to] range: income and expense totals, expense totals per category,
// and the overall transaction count.
func (r *SQLiteRepository) MonthlyStats(ctx context.Context, userID string, from, to time.Time) (core.MonthlyStats, error) {
	stats := core.MonthlyStats{ByCategory: map[string]core.Money{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, amount_cents, category
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return stats, fmt.Errorf("query monthly transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txType   string
			cents    int64
			category string
		)
		if err := rows.Scan(&txType, &cents, &category); err != nil {
			return stats, fmt.Errorf("scan monthly transaction: %w", err)
		}
		amount := core.MoneyFromCents(cents)
		if core.TransactionType(txType) == core.Expense {
			stats.TotalExpenses = stats.TotalExpenses.Add(amount)
			stats.ByCategory[category] = stats.ByCategory[category].Add(amount)
		} else {
			stats.TotalIncome = stats.TotalIncome.Add(amount)
		}
		stats.TransactionCount++
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate monthly transactions: %w", err)
	}
	return stats, nil
}

// Creation helpers used by the account/transaction CRUD layer and tests. The
// scheduler jobs themselves never create users, accounts or budgets.

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, clerk_user_id, email, name, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ClerkUserID, u.Email, u.Name, u.ImageURL, now, now)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, balance_cents, is_default, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type), a.Balance.Cents(), a.IsDefault, a.UserID, now, now)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, amount_cents, last_alert_sent, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Amount.Cents(), nullableTime(b.LastAlertSent), b.UserID, now, now)
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}
	now := time.Now().UTC()
	var interval any
	if t.IsRecurring {
		interval = string(t.RecurringInterval)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, type, amount_cents, description, date, category, receipt_url,
			 is_recurring, recurring_interval, next_recurring_date, last_processed,
			 status, user_id, account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Amount.Cents(), t.Description, t.Date.UTC(),
		t.Category, t.ReceiptURL, t.IsRecurring, interval,
		nullableTime(t.NextRecurringDate), nullableTime(t.LastProcessed),
		string(t.Status), t.UserID, t.AccountID, now, now)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx          core.Transaction
		txType      string
		cents       int64
		interval    sql.NullString
		nextDate    sql.NullTime
		lastProc    sql.NullTime
		status      string
		isRecurring bool
	)
	err := row.Scan(&tx.ID, &txType, &cents, &tx.Description, &tx.Date, &tx.Category,
		&tx.ReceiptURL, &isRecurring, &interval, &nextDate, &lastProc, &status,
		&tx.UserID, &tx.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(txType)
	tx.Amount = core.MoneyFromCents(cents)
	tx.IsRecurring = isRecurring
	tx.Status = core.TransactionStatus(status)
	if interval.Valid {
		tx.RecurringInterval = core.RecurringInterval(interval.String)
	}
	if nextDate.Valid {
		t := nextDate.Time
		tx.NextRecurringDate = &t
	}
	if lastProc.Valid {
		t := lastProc.Time
		tx.LastProcessed = &t
	}
	return tx, nil
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		acct     core.Account
		acctType string
		cents    int64
	)
	err := row.Scan(&acct.ID, &acct.Name, &acctType, &cents, &acct.IsDefault, &acct.UserID)
	if err != nil {
		return core.Account{}, err
	}
	acct.Type = core.AccountType(acctType)
	acct.Balance = core.MoneyFromCents(cents)
	return acct, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

type (
	TransactionType   string
	AccountType       string
	RecurringInterval string
	TransactionStatus string

	Account struct {
		ID        string
		Name      string
		Type      AccountType
		Balance   Money
		IsDefault bool
		UserID    string
	}

	// Transaction is a single ledger event. A record with IsRecurring set is a
	// template: it never posts to the ledger itself, instead each time it
	// becomes due a non-recurring instance is materialized from it and the
	// template's NextRecurringDate/LastProcessed advance.
	Transaction struct {
		ID                string
		Type              TransactionType
		Amount            Money
		Description       string
		Date              time.Time
		Category          string
		ReceiptURL        string
		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate *time.Time
		LastProcessed     *time.Time
		Status            TransactionStatus
		UserID            string
		AccountID         string
	}

	Budget struct {
		ID            string
		Amount        Money
		LastAlertSent *time.Time
		UserID        string
	}

	User struct {
		ID          string
		ClerkUserID string
		Email       string
		Name        string
		ImageURL    string
	}

	// MonthlyStats aggregates one user's transactions over a calendar month.
	MonthlyStats struct {
		TotalIncome      Money
		TotalExpenses    Money
		ByCategory       map[string]Money
		TransactionCount int
	}
)

var (
	// ErrNotFound marks a record that vanished between scan and process.
	// Callers treat it as a benign no-op, not a failure.
	ErrNotFound = errors.New("record not found")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid transaction status")
	ErrMissingOwner     = errors.New("missing owner user id")
	ErrMissingAccount   = errors.New("missing account id")
	ErrMissingRecurring = errors.New("recurring interval required for recurring transaction")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.UserID == "" {
		return ErrMissingOwner
	}
	if t.AccountID == "" {
		return ErrMissingAccount
	}
	if t.IsRecurring && !t.RecurringInterval.Valid() {
		return ErrMissingRecurring
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.UserID == "" {
		return ErrMissingOwner
	}
	return nil
}

// BalanceDelta is the signed amount a transaction applies to its account:
// positive for income, negative for expense.
func (t Transaction) BalanceDelta() Money {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// SameCalendarMonth reports whether a and b fall in the same month and year.
func SameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthStart returns midnight UTC on the first day of t's calendar month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonthRange returns the inclusive [first instant, last instant]
// bounds of the calendar month before t's.
func PreviousMonthRange(t time.Time) (time.Time, time.Time) {
	start := MonthStart(t).AddDate(0, -1, 0)
	end := MonthStart(t).Add(-time.Nanosecond)
	return start, end
}

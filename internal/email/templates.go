package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"

	"finsight/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// BudgetAlertData drives the budget threshold notification body.
type BudgetAlertData struct {
	Name          string
	AccountName   string
	BudgetAmount  string
	TotalExpenses string
	Remaining     string
	PercentUsed   int64
}

// NewBudgetAlertData formats the raw amounts for the alert template.
func NewBudgetAlertData(name, accountName string, budget, spent core.Money, percentUsed int64) BudgetAlertData {
	return BudgetAlertData{
		Name:          name,
		AccountName:   accountName,
		BudgetAmount:  budget.String(),
		TotalExpenses: spent.String(),
		Remaining:     budget.Sub(spent).String(),
		PercentUsed:   percentUsed,
	}
}

// CategoryLine is one expense category row in the monthly report.
type CategoryLine struct {
	Name   string
	Amount string
}

// MonthlyReportData drives the monthly summary body.
type MonthlyReportData struct {
	Name             string
	Month            string
	TotalIncome      string
	TotalExpenses    string
	Net              string
	Categories       []CategoryLine
	Insights         []string
	TransactionCount int
}

// NewMonthlyReportData formats a user's monthly statistics for the report
// template. Categories are sorted by name for a stable rendering.
func NewMonthlyReportData(name, month string, stats core.MonthlyStats, insights []string) MonthlyReportData {
	categories := make([]CategoryLine, 0, len(stats.ByCategory))
	for cat, amount := range stats.ByCategory {
		categories = append(categories, CategoryLine{Name: cat, Amount: amount.String()})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	return MonthlyReportData{
		Name:             name,
		Month:            month,
		TotalIncome:      stats.TotalIncome.String(),
		TotalExpenses:    stats.TotalExpenses.String(),
		Net:              stats.TotalIncome.Sub(stats.TotalExpenses).String(),
		Categories:       categories,
		Insights:         insights,
		TransactionCount: stats.TransactionCount,
	}
}

// RenderBudgetAlert renders the budget alert HTML body.
func RenderBudgetAlert(data BudgetAlertData) (string, error) {
	return render("budget_alert.html", data)
}

// RenderMonthlyReport renders the monthly report HTML body.
func RenderMonthlyReport(data MonthlyReportData) (string, error) {
	return render("monthly_report.html", data)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

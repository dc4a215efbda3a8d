package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldTransactionID = "transaction_id"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldBudgetID      = "budget_id"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldInterval      = "interval"
	FieldPercentUsed   = "percentage_used"
	FieldProcessed     = "processed"
	FieldEmailTo       = "email_to"
	FieldMonth         = "month"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentScheduler = "scheduler"
	ComponentWorker    = "worker"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentEmail     = "email"
	ComponentInsights  = "insights"
	ComponentHTTP      = "http"
)

// Operations defines standard operation names
const (
	OpScanDue         = "scan_due"
	OpProcessOne      = "process_one"
	OpScanBudgets     = "scan_budgets"
	OpGenerateReports = "generate_reports"
	OpPublish         = "publish"
	OpConsume         = "consume"
	OpSendEmail       = "send_email"
	OpStartup         = "startup"
	OpShutdown        = "shutdown"
)

package services

import (
	"context"

	"lana/internal/budgets"
	"lana/internal/cashflow"
	"lana/internal/dates"
	"lana/internal/extraction"
	"lana/internal/importer"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/recurring"
	"lana/internal/settings"
	"lana/internal/tiers"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	GetLimits(userID string) (*tiers.Limits, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color, keywords string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	ListCategoriesByType(userID string, categoryType models.CategoryType) ([]models.Category, error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, input UpdateCategoryInput) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// UpdateCategoryInput holds the optional fields of a category update.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	Keywords    *string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	From             *dates.Date
	To               *dates.Date
	Type             *models.TransactionType
	Category         *string
	Recurring        *bool
	MinAmount        *int64
	MaxAmount        *int64
	IncludeCancelled bool
}

// CreateTransactionInput is a new transaction. A zero Date means today in
// the user's timezone.
type CreateTransactionInput struct {
	Type            models.TransactionType
	Amount          int64
	Category        string
	Description     string
	Date            dates.Date
	PaymentReceived bool
	Recurring       bool
	Source          models.TransactionSource
}

// UpdateTransactionInput holds the optional fields of a transaction update.
type UpdateTransactionInput struct {
	Type            *models.TransactionType
	Amount          *int64
	Category        *string
	Description     *string
	Date            *dates.Date
	PaymentReceived *bool
}

// PaymentInput registers the payment of an income transaction.
type PaymentInput struct {
	PaidOn    dates.Date
	Method    string
	Reference string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	RegisterPayment(userID, transactionID string, input PaymentInput) (*models.Transaction, error)
	ImportTransactions(userID string, rows []importer.Row) (int, error)
}

// BudgetProgress is a budget's utilization for one month.
type BudgetProgress struct {
	BudgetID string              `json:"budget_id"`
	Category string              `json:"category"`
	Type     models.CategoryType `json:"type"`
	Month    string              `json:"month"`
	budgets.Utilization
}

// BudgetSummary lists the utilization of every budget in a month.
type BudgetSummary struct {
	Month      string           `json:"month"`
	Budgets    []BudgetProgress `json:"budgets"`
	TotalLimit int64            `json:"total_limit"`
	TotalSpent int64            `json:"total_spent"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID, category string, budgetType models.CategoryType, limit int64) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, category *string, limit *int64) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string, month *dates.Date) (*BudgetProgress, error)
	GetBudgetSummary(userID string, month *dates.Date) (*BudgetSummary, error)
}

// RecurringRuleInput is a new recurring rule.
type RecurringRuleInput struct {
	Type        models.TransactionType
	Amount      int64
	Category    string
	Description string
	DayOfMonth  int
}

// UpdateRecurringRuleInput holds the optional fields of a rule update.
type UpdateRecurringRuleInput struct {
	Amount      *int64
	Category    *string
	Description *string
	DayOfMonth  *int
	IsActive    *bool
}

// RecurringServicer defines the contract for recurring rules and their
// materialization.
type RecurringServicer interface {
	CreateRule(userID string, input RecurringRuleInput) (*models.RecurringRule, error)
	GetUserRules(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringRule], error)
	ListActiveRules(userID string) ([]models.RecurringRule, error)
	GetRuleByID(userID, ruleID string) (*models.RecurringRule, error)
	UpdateRule(userID, ruleID string, input UpdateRecurringRuleInput) (*models.RecurringRule, error)
	DeleteRule(userID, ruleID string) error
	Materialize(ctx context.Context, userID string, today dates.Date) (recurring.RunResult, error)
	MaterializeForUser(ctx context.Context, userID string) (recurring.RunResult, error)
	SweepAll(ctx context.Context) (recurring.RunResult, error)
}

// SettingsServicer defines the contract for per-user settings.
type SettingsServicer interface {
	GetSettings(userID string) (*settings.Settings, error)
	UpdateSettings(userID string, s settings.Settings) (*settings.Settings, error)
}

// CreateInvoiceInput is everything needed to stamp an invoice.
type CreateInvoiceInput struct {
	CustomerLegalName string
	CustomerTaxID     string
	CustomerTaxSystem string
	CustomerZip       string
	CustomerEmail     string
	ProductKey        string
	Description       string
	Quantity          int64
	UnitPrice         int64
	IVARate           string
	ISRRetention      string
	IVARetention      string
	Use               string
	PaymentForm       string
	PaymentMethod     string
	Category          string
	Date              dates.Date
}

// InvoiceFile names a downloadable invoice document.
type InvoiceFile string

const (
	InvoiceFilePDF InvoiceFile = "pdf"
	InvoiceFileXML InvoiceFile = "xml"
)

// InvoiceServicer defines the contract for CFDI invoicing.
type InvoiceServicer interface {
	CreateInvoice(ctx context.Context, userID string, input CreateInvoiceInput) (*models.Invoice, error)
	GetUserInvoices(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Invoice], error)
	GetInvoiceByID(userID, invoiceID string) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, userID, invoiceID, motive string) (*models.Invoice, error)
	DownloadInvoiceFile(ctx context.Context, userID, invoiceID string, kind InvoiceFile) ([]byte, error)
	RenderInvoicePDF(userID, invoiceID string) ([]byte, error)
}

// ReceiptServicer defines the contract for receipt extraction and category
// suggestions.
type ReceiptServicer interface {
	ScanReceipt(ctx context.Context, userID string, image []byte) (*extraction.Draft, error)
	SuggestCategory(ctx context.Context, userID, description string, categoryType models.CategoryType) (*extraction.Suggestion, error)
}

// CheckoutResponse is returned to the client to redirect to Stripe.
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// PaymentIntentResponse carries the client secret for the card element.
type PaymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// BillingServicer defines the contract for subscription billing.
type BillingServicer interface {
	CreateCheckoutSession(userID string, tier models.SubscriptionTier, successURL, cancelURL string) (*CheckoutResponse, error)
	CreatePaymentIntent(userID string, tier models.SubscriptionTier) (*PaymentIntentResponse, error)
	HandleWebhook(payload []byte, signature string) error
}

// CashflowReport is the cash-flow chart of a user.
type CashflowReport struct {
	Granularity     dates.Granularity `json:"granularity"`
	From            dates.Date        `json:"from"`
	To              dates.Date        `json:"to"`
	ForecastEnabled bool              `json:"forecast_enabled"`
	Buckets         []cashflow.Bucket `json:"buckets"`
}

// CashflowServicer defines the contract for the cash-flow chart.
type CashflowServicer interface {
	GetCashflow(userID string, granularity dates.Granularity) (*CashflowReport, error)
}

// CalendarEntry is a recurring occurrence shown on a calendar day.
type CalendarEntry struct {
	RuleID       string                 `json:"rule_id"`
	Type         models.TransactionType `json:"type"`
	Amount       int64                  `json:"amount"`
	Category     string                 `json:"category"`
	Description  string                 `json:"description"`
	Date         dates.Date             `json:"date"`
	Materialized bool                   `json:"materialized"`
}

// CalendarDay is one day of the month view.
type CalendarDay struct {
	Date         dates.Date           `json:"date"`
	Transactions []models.Transaction `json:"transactions"`
	Recurring    []CalendarEntry      `json:"recurring"`
	Income       int64                `json:"income"`
	Expense      int64                `json:"expense"`
}

// CalendarMonth is the month view.
type CalendarMonth struct {
	Month string        `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// CalendarServicer defines the contract for the calendar view.
type CalendarServicer interface {
	GetMonth(userID string, month dates.Date) (*CalendarMonth, error)
}

// ExportServicer defines the contract for statement exports.
type ExportServicer interface {
	ExportCSV(userID string, from, to *dates.Date) ([]byte, error)
	ExportPDF(userID string, from, to *dates.Date) ([]byte, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}

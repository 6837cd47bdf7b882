package models

import "lana/internal/dates"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionSource records how a transaction came to exist.
type TransactionSource string

const (
	SourceManual    TransactionSource = "manual"
	SourceRecurring TransactionSource = "recurring"
	SourceReceipt   TransactionSource = "receipt"
	SourceInvoice   TransactionSource = "invoice"
	SourceImport    TransactionSource = "import"
)

// CancelledInvoiceCategory is the category a transaction is moved to when
// its invoice is cancelled. History views and aggregates skip it.
const CancelledInvoiceCategory = "Factura cancelada"

// Transaction represents a financial transaction in the system
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index:idx_transactions_user_date" json:"user_id"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Category    string          `gorm:"not null;default:''" json:"category"`
	Description string          `json:"description"`
	Date        dates.Date      `gorm:"not null;index:idx_transactions_user_date" json:"date"`

	// Income only
	PaymentReceived  bool        `gorm:"not null;default:false" json:"payment_received"`
	PaidOn           *dates.Date `json:"paid_on,omitempty"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	PaymentReference string      `json:"payment_reference,omitempty"`

	// Provenance marker only, not a link to the rule.
	Recurring bool              `gorm:"not null;default:false" json:"recurring"`
	Source    TransactionSource `gorm:"not null;default:'manual'" json:"source"`
}

// IsCancelledInvoice reports whether the transaction sits in the cancelled
// invoice category.
func (t *Transaction) IsCancelledInvoice() bool {
	return t.Category == CancelledInvoiceCategory
}

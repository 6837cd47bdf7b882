package models

import (
	"time"

	"gorm.io/datatypes"
)

// InvoiceStatus is the provider's lifecycle status of a stamped CFDI.
type InvoiceStatus string

const (
	InvoiceStatusValid    InvoiceStatus = "valid"
	InvoiceStatusCanceled InvoiceStatus = "canceled"
	InvoiceStatusPending  InvoiceStatus = "pending"
)

// Invoice is a stamped CFDI. Certificate fields are stored exactly as the
// provider returned them; Raw keeps the full response body.
type Invoice struct {
	Base
	UserID        string        `gorm:"type:uuid;not null;index" json:"user_id"`
	TransactionID *string       `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	ProviderID    string        `gorm:"not null;index" json:"provider_id"`
	Status        InvoiceStatus `gorm:"not null" json:"status"`

	// Customer
	CustomerLegalName string `gorm:"not null" json:"customer_legal_name"`
	CustomerTaxID     string `gorm:"not null" json:"customer_tax_id"`
	CustomerTaxSystem string `json:"customer_tax_system"`
	CustomerZip       string `json:"customer_zip"`
	CustomerEmail     string `json:"customer_email,omitempty"`

	// Concept and payment terms
	ProductKey    string `json:"product_key"`
	Description   string `json:"description"`
	Use           string `json:"use"`
	PaymentForm   string `json:"payment_form"`
	PaymentMethod string `json:"payment_method"`
	Currency      string `gorm:"not null;default:'MXN'" json:"currency"`

	// Amounts in cents
	Subtotal    int64 `gorm:"type:bigint;not null" json:"subtotal"`
	Transferred int64 `gorm:"type:bigint;not null;default:0" json:"transferred_taxes"`
	Retained    int64 `gorm:"type:bigint;not null;default:0" json:"retained_taxes"`
	Total       int64 `gorm:"type:bigint;not null" json:"total"`

	// Stamp
	UUID             string     `gorm:"index" json:"uuid"`
	Series           string     `json:"series,omitempty"`
	FolioNumber      int64      `json:"folio_number,omitempty"`
	StampDate        *time.Time `json:"stamp_date,omitempty"`
	Signature        string     `json:"signature,omitempty"`
	SATSignature     string     `json:"sat_signature,omitempty"`
	SATCertNumber    string     `json:"sat_cert_number,omitempty"`
	ComplementString string     `json:"complement_string,omitempty"`
	VerificationURL  string     `json:"verification_url,omitempty"`

	CancellationStatus string     `json:"cancellation_status,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`

	PDFURI string `json:"pdf_uri,omitempty"`
	XMLURI string `json:"xml_uri,omitempty"`

	Raw datatypes.JSON `json:"-"`
}

// IsCancellable reports whether the invoice can still be cancelled.
func (i *Invoice) IsCancellable() bool {
	return i.Status == InvoiceStatusValid
}

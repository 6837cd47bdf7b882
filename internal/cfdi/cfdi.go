// Package cfdi assembles Mexican tax invoices (CFDI 4.0), computes their
// taxes locally and stamps them through a hosted provider.
package cfdi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	PaymentMethodSingle      = "PUE" // paid in full at issue
	PaymentMethodInstallment = "PPD" // paid later or in parts
)

// PaymentFormToBeDefined is the SAT payment form required with PPD.
const PaymentFormToBeDefined = "99"

// Cancellation motives accepted by SAT.
const (
	MotiveWithErrorsRelated   = "01"
	MotiveWithErrorsUnrelated = "02"
	MotiveNotCarriedOut       = "03"
	MotiveNominalGlobal       = "04"
)

var (
	rfcPattern        = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)
	zipPattern        = regexp.MustCompile(`^[0-9]{5}$`)
	productKeyPattern = regexp.MustCompile(`^[0-9]{8}$`)
	taxSystemPattern  = regexp.MustCompile(`^[0-9]{3}$`)
)

// IVA rates a line item can carry.
var (
	IVA16 = decimal.RequireFromString("0.16")
	IVA8  = decimal.RequireFromString("0.08")
	IVA0  = decimal.Zero
)

// Customer is the invoice receiver.
type Customer struct {
	LegalName string
	TaxID     string
	TaxSystem string
	Zip       string
	Email     string
}

// Item is the single concept billed.
type Item struct {
	ProductKey  string
	Description string
	Quantity    int64
	UnitPrice   int64 // cents, before taxes
}

// Taxes lists the rates applied to the item. A zero retention rate means no
// retention.
type Taxes struct {
	IVARate      decimal.Decimal
	ISRRetention decimal.Decimal
	IVARetention decimal.Decimal
}

// Request is everything needed to stamp one invoice.
type Request struct {
	Customer      Customer
	Item          Item
	Taxes         Taxes
	Use           string
	PaymentForm   string
	PaymentMethod string
	Currency      string
	Series        string
}

// Totals are the invoice amounts in cents.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	Transferred int64 `json:"transferred_taxes"`
	Retained    int64 `json:"retained_taxes"`
	Total       int64 `json:"total"`
}

// Normalize uppercases identifiers and fills defaults.
func (r *Request) Normalize() {
	r.Customer.TaxID = strings.ToUpper(strings.TrimSpace(r.Customer.TaxID))
	r.Customer.LegalName = strings.ToUpper(strings.TrimSpace(r.Customer.LegalName))
	r.PaymentMethod = strings.ToUpper(strings.TrimSpace(r.PaymentMethod))
	r.Use = strings.ToUpper(strings.TrimSpace(r.Use))
	if r.Currency == "" {
		r.Currency = "MXN"
	}
	if r.Item.Quantity == 0 {
		r.Item.Quantity = 1
	}
}

// Validate checks the request against the structural CFDI rules the
// provider would otherwise reject.
func (r *Request) Validate() error {
	var errs []error
	if r.Customer.LegalName == "" {
		errs = append(errs, errors.New("customer legal name is required"))
	}
	if !rfcPattern.MatchString(r.Customer.TaxID) {
		errs = append(errs, fmt.Errorf("invalid RFC %q", r.Customer.TaxID))
	}
	if !taxSystemPattern.MatchString(r.Customer.TaxSystem) {
		errs = append(errs, fmt.Errorf("invalid tax system %q", r.Customer.TaxSystem))
	}
	if !zipPattern.MatchString(r.Customer.Zip) {
		errs = append(errs, fmt.Errorf("invalid zip code %q", r.Customer.Zip))
	}
	if !productKeyPattern.MatchString(r.Item.ProductKey) {
		errs = append(errs, fmt.Errorf("invalid product key %q", r.Item.ProductKey))
	}
	if r.Item.Description == "" {
		errs = append(errs, errors.New("item description is required"))
	}
	if r.Item.Quantity < 1 {
		errs = append(errs, errors.New("quantity must be at least 1"))
	}
	if r.Item.UnitPrice <= 0 {
		errs = append(errs, errors.New("unit price must be greater than zero"))
	}
	if !r.Taxes.IVARate.Equal(IVA16) && !r.Taxes.IVARate.Equal(IVA8) && !r.Taxes.IVARate.IsZero() {
		errs = append(errs, fmt.Errorf("unsupported IVA rate %s", r.Taxes.IVARate))
	}
	if r.Taxes.ISRRetention.IsNegative() || r.Taxes.IVARetention.IsNegative() {
		errs = append(errs, errors.New("retention rates must not be negative"))
	}
	if r.Taxes.IVARetention.GreaterThan(r.Taxes.IVARate) {
		errs = append(errs, errors.New("IVA retention cannot exceed the IVA rate"))
	}
	if r.Use == "" {
		errs = append(errs, errors.New("CFDI use is required"))
	}
	switch r.PaymentMethod {
	case PaymentMethodSingle:
		if r.PaymentForm == PaymentFormToBeDefined {
			errs = append(errs, errors.New("payment form 99 is only valid with PPD"))
		}
	case PaymentMethodInstallment:
		if r.PaymentForm != PaymentFormToBeDefined {
			errs = append(errs, errors.New("PPD invoices must use payment form 99"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid payment method %q: expected PUE or PPD", r.PaymentMethod))
	}
	if r.PaymentForm == "" {
		errs = append(errs, errors.New("payment form is required"))
	}
	return errors.Join(errs...)
}

// Compute returns the invoice totals. Each tax is rounded half-up to
// two decimals on its own before totals are summed.
func Compute(r Request) Totals {
	subtotal := r.Item.UnitPrice * r.Item.Quantity
	base := decimal.New(subtotal, -2)

	transferred := taxCents(base, r.Taxes.IVARate)
	retained := taxCents(base, r.Taxes.ISRRetention) + taxCents(base, r.Taxes.IVARetention)

	return Totals{
		Subtotal:    subtotal,
		Transferred: transferred,
		Retained:    retained,
		Total:       subtotal + transferred - retained,
	}
}

func taxCents(base, rate decimal.Decimal) int64 {
	if rate.IsZero() {
		return 0
	}
	return base.Mul(rate).Round(2).Shift(2).IntPart()
}

// FormatCents renders cents as a fixed two-decimal amount.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Provider stamps, cancels and serves invoices.
type Provider interface {
	CreateInvoice(ctx context.Context, req Request) (*Stamp, error)
	CancelInvoice(ctx context.Context, id, motive string) (*Stamp, error)
	DownloadPDF(ctx context.Context, id string) ([]byte, error)
	DownloadXML(ctx context.Context, id string) ([]byte, error)
}

// ValidMotive reports whether m is a SAT cancellation motive.
func ValidMotive(m string) bool {
	switch m {
	case MotiveWithErrorsRelated, MotiveWithErrorsUnrelated, MotiveNotCarriedOut, MotiveNominalGlobal:
		return true
	}
	return false
}

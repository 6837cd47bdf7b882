package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lana/internal/cfdi"
	"lana/internal/command"
	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/logger"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/storage"
	"lana/internal/tiers"
)

// DefaultInvoiceCategory is the category of income created by an invoice
// when the caller names none.
const DefaultInvoiceCategory = "Facturación"

// invoiceService handles CFDI invoicing.
type invoiceService struct {
	db       *gorm.DB
	provider cfdi.Provider
	archive  storage.Archive
	now      func() time.Time
}

// NewInvoiceService creates a new InvoiceServicer. provider and archive may
// be nil when not configured.
func NewInvoiceService(db *gorm.DB, provider cfdi.Provider, archive storage.Archive) InvoiceServicer {
	return &invoiceService{db: db, provider: provider, archive: archive, now: time.Now}
}

// CreateInvoice stamps an invoice and records the income it bills. If the
// invoice cannot be stored after stamping it is cancelled again.
func (s *invoiceService) CreateInvoice(ctx context.Context, userID string, input CreateInvoiceInput) (*models.Invoice, error) {
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	limits := tiers.ForUser(user)
	if !limits.Allows(tiers.FeatureCFDIInvoicing) {
		return nil, apperrors.ErrFeatureNotAvailable
	}

	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return nil, err
	}
	today := dates.Of(s.now().In(prefs.Location()))
	first := dates.FirstOfMonth(today)
	monthStart := time.Date(first.Year, first.Month, 1, 0, 0, 0, 0, prefs.Location()).UTC()

	var issued int64
	if err := s.db.Model(&models.Invoice{}).
		Where("user_id = ? AND created_at >= ?", userID, monthStart).
		Count(&issued).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !limits.WithinLimit(tiers.LimitInvoicesPerMonth, issued) {
		return nil, apperrors.ErrTierLimitReached
	}

	req, err := buildInvoiceRequest(input)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, apperrors.ErrProviderNotConfigured
	}
	totals := cfdi.Compute(req)

	date := input.Date
	if date.IsZero() {
		date = today
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = DefaultInvoiceCategory
	}

	var stamp *cfdi.Stamp
	var invoice *models.Invoice
	res := command.Execute(ctx,
		command.Command{
			Name: "stamp invoice",
			Apply: func(ctx context.Context) error {
				var err error
				if stamp, err = s.provider.CreateInvoice(ctx, req); err != nil {
					return providerError(err)
				}
				return nil
			},
			Rollback: func(ctx context.Context) error {
				_, err := s.provider.CancelInvoice(ctx, stamp.ID, cfdi.MotiveWithErrorsUnrelated)
				return err
			},
		},
		command.Command{
			Name: "store invoice",
			Apply: func(ctx context.Context) error {
				var err error
				invoice, err = s.store(ctx, userID, req, totals, stamp, category, date)
				return err
			},
		},
	)
	if !res.OK {
		logger.Get().Errorw("create invoice failed", "user_id", userID, "step", res.Failed, "error", res.Error())
		return nil, commandError(res)
	}

	if provTotal := decimal.NewFromFloat(stamp.Total).Shift(2).Round(0).IntPart(); stamp.Total != 0 && provTotal != totals.Total {
		logger.Get().Warnw("invoice total differs from provider",
			"invoice_id", invoice.ID,
			"local_total", totals.Total,
			"provider_total", provTotal,
		)
	}
	return invoice, nil
}

func (s *invoiceService) store(ctx context.Context, userID string, req cfdi.Request, totals cfdi.Totals, stamp *cfdi.Stamp, category string, date dates.Date) (*models.Invoice, error) {
	paid := req.PaymentMethod == cfdi.PaymentMethodSingle
	folio := strings.TrimSpace(fmt.Sprintf("%s %d", stamp.Series, stamp.FolioNumber))

	income := &models.Transaction{
		UserID:          userID,
		Type:            models.TransactionTypeIncome,
		Amount:          totals.Total,
		Category:        category,
		Description:     strings.TrimSpace(fmt.Sprintf("Factura %s %s", folio, req.Customer.LegalName)),
		Date:            date,
		PaymentReceived: paid,
		Source:          models.SourceInvoice,
	}
	if paid {
		paidOn := date
		income.PaidOn = &paidOn
		income.PaymentMethod = req.PaymentForm
	}

	status := models.InvoiceStatus(stamp.Status)
	if status == "" {
		status = models.InvoiceStatusValid
	}
	invoice := &models.Invoice{
		UserID:             userID,
		ProviderID:         stamp.ID,
		Status:             status,
		CustomerLegalName:  req.Customer.LegalName,
		CustomerTaxID:      req.Customer.TaxID,
		CustomerTaxSystem:  req.Customer.TaxSystem,
		CustomerZip:        req.Customer.Zip,
		CustomerEmail:      req.Customer.Email,
		ProductKey:         req.Item.ProductKey,
		Description:        req.Item.Description,
		Use:                req.Use,
		PaymentForm:        req.PaymentForm,
		PaymentMethod:      req.PaymentMethod,
		Currency:           req.Currency,
		Subtotal:           totals.Subtotal,
		Transferred:        totals.Transferred,
		Retained:           totals.Retained,
		Total:              totals.Total,
		UUID:               stamp.UUID,
		Series:             stamp.Series,
		FolioNumber:        stamp.FolioNumber,
		StampDate:          stamp.StampDate(),
		Signature:          stamp.Stamp.Signature,
		SATSignature:       stamp.Stamp.SATSignature,
		SATCertNumber:      stamp.Stamp.SATCertNumber,
		ComplementString:   stamp.Stamp.ComplementString,
		VerificationURL:    stamp.VerificationURL,
		CancellationStatus: stamp.CancellationStatus,
		Raw:                datatypes.JSON(stamp.Raw),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(income).Error; err != nil {
			return err
		}
		invoice.TransactionID = &income.ID
		return tx.Create(invoice).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return invoice, nil
}

// buildInvoiceRequest converts the input into a normalized, validated
// provider request. An empty IVA rate means 16%.
func buildInvoiceRequest(input CreateInvoiceInput) (cfdi.Request, error) {
	ivaRate, err := parseRate(input.IVARate, cfdi.IVA16)
	if err != nil {
		return cfdi.Request{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid IVA rate")
	}
	isr, err := parseRate(input.ISRRetention, decimal.Zero)
	if err != nil {
		return cfdi.Request{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid ISR retention rate")
	}
	ivaRet, err := parseRate(input.IVARetention, decimal.Zero)
	if err != nil {
		return cfdi.Request{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid IVA retention rate")
	}

	req := cfdi.Request{
		Customer: cfdi.Customer{
			LegalName: input.CustomerLegalName,
			TaxID:     input.CustomerTaxID,
			TaxSystem: strings.TrimSpace(input.CustomerTaxSystem),
			Zip:       strings.TrimSpace(input.CustomerZip),
			Email:     strings.TrimSpace(input.CustomerEmail),
		},
		Item: cfdi.Item{
			ProductKey:  strings.TrimSpace(input.ProductKey),
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
		},
		Taxes: cfdi.Taxes{
			IVARate:      ivaRate,
			ISRRetention: isr,
			IVARetention: ivaRet,
		},
		Use:           input.Use,
		PaymentForm:   strings.TrimSpace(input.PaymentForm),
		PaymentMethod: input.PaymentMethod,
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return cfdi.Request{}, apperrors.WithMessage(apperrors.ErrInvalidInput, strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	return req, nil
}

func parseRate(s string, def decimal.Decimal) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return decimal.NewFromString(s)
}

// GetUserInvoices returns the user's invoices, newest first.
func (s *invoiceService) GetUserInvoices(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Invoice], error) {
	page.Defaults()

	base := s.db.Model(&models.Invoice{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var invoices []models.Invoice
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(invoices, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetInvoiceByID retrieves an invoice of the user.
func (s *invoiceService) GetInvoiceByID(userID, invoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.Where("id = ? AND user_id = ?", invoiceID, userID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvoiceNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &invoice, nil
}

// CancelInvoice cancels a valid invoice and moves its income into the
// cancelled-invoice category. An empty motive means 02.
func (s *invoiceService) CancelInvoice(ctx context.Context, userID, invoiceID, motive string) (*models.Invoice, error) {
	if motive == "" {
		motive = cfdi.MotiveWithErrorsUnrelated
	}
	if !cfdi.ValidMotive(motive) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid cancellation motive")
	}

	invoice, err := s.GetInvoiceByID(userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.IsCancellable() {
		return nil, apperrors.ErrInvoiceNotCancellable
	}
	if s.provider == nil {
		return nil, apperrors.ErrProviderNotConfigured
	}

	res := command.Execute(ctx, cancelInvoiceCommands(s.db, s.provider, invoice, motive)...)
	if !res.OK {
		logger.Get().Errorw("cancel invoice failed", "invoice_id", invoice.ID, "step", res.Failed, "error", res.Error())
		return nil, commandError(res)
	}
	return s.GetInvoiceByID(userID, invoiceID)
}

// cancelInvoiceCommands moves the linked income into the cancelled-invoice
// category, marks the invoice cancelled and finally cancels it with the
// provider. The provider call comes last because it cannot be undone.
func cancelInvoiceCommands(db *gorm.DB, provider cfdi.Provider, invoice *models.Invoice, motive string) []command.Command {
	var cmds []command.Command

	if invoice.TransactionID != nil {
		txID := *invoice.TransactionID
		var previous string
		cmds = append(cmds, command.Command{
			Name: "recategorize transaction",
			Apply: func(ctx context.Context) error {
				var t models.Transaction
				if err := db.WithContext(ctx).Unscoped().Where("id = ?", txID).First(&t).Error; err != nil {
					return err
				}
				previous = t.Category
				return db.WithContext(ctx).Unscoped().Model(&models.Transaction{}).
					Where("id = ?", txID).
					Update("category", models.CancelledInvoiceCategory).Error
			},
			Rollback: func(ctx context.Context) error {
				return db.WithContext(ctx).Unscoped().Model(&models.Transaction{}).
					Where("id = ?", txID).
					Update("category", previous).Error
			},
		})
	}

	cmds = append(cmds,
		command.Command{
			Name: "mark invoice cancelled",
			Apply: func(ctx context.Context) error {
				return db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]any{
					"status":      models.InvoiceStatusCanceled,
					"canceled_at": time.Now(),
				}).Error
			},
			Rollback: func(ctx context.Context) error {
				return db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]any{
					"status":      invoice.Status,
					"canceled_at": nil,
				}).Error
			},
		},
		command.Command{
			Name: "cancel invoice at provider",
			Apply: func(ctx context.Context) error {
				stamp, err := provider.CancelInvoice(ctx, invoice.ProviderID, motive)
				if err != nil {
					return providerError(err)
				}
				if err := db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", invoice.ID).
					Update("cancellation_status", stamp.CancellationStatus).Error; err != nil {
					logger.Get().Warnw("store cancellation status failed", "invoice_id", invoice.ID, "error", err)
				}
				return nil
			},
		},
	)
	return cmds
}

// DownloadInvoiceFile returns the provider's PDF or XML. Documents are
// archived on first download and served from the archive afterwards.
func (s *invoiceService) DownloadInvoiceFile(ctx context.Context, userID, invoiceID string, kind InvoiceFile) ([]byte, error) {
	invoice, err := s.GetInvoiceByID(userID, invoiceID)
	if err != nil {
		return nil, err
	}

	column, uri, contentType := "pdf_uri", invoice.PDFURI, "application/pdf"
	if kind == InvoiceFileXML {
		column, uri, contentType = "xml_uri", invoice.XMLURI, "application/xml"
	} else if kind != InvoiceFilePDF {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "file must be pdf or xml")
	}

	if uri != "" && s.archive != nil {
		data, err := s.archive.Get(ctx, uri)
		if err == nil {
			return data, nil
		}
		logger.Get().Warnw("archived invoice file unavailable", "invoice_id", invoice.ID, "uri", uri, "error", err)
	}

	if s.provider == nil {
		return nil, apperrors.ErrProviderNotConfigured
	}
	var data []byte
	if kind == InvoiceFileXML {
		data, err = s.provider.DownloadXML(ctx, invoice.ProviderID)
	} else {
		data, err = s.provider.DownloadPDF(ctx, invoice.ProviderID)
	}
	if err != nil {
		return nil, providerError(err)
	}

	if s.archive != nil {
		key := fmt.Sprintf("invoices/%s/%s.%s", userID, invoice.ID, kind)
		stored, err := s.archive.Put(ctx, key, contentType, data)
		if err != nil {
			logger.Get().Warnw("archive invoice file failed", "invoice_id", invoice.ID, "error", err)
		} else if err := s.db.Model(invoice).Update(column, stored).Error; err != nil {
			logger.Get().Warnw("store archive uri failed", "invoice_id", invoice.ID, "error", err)
		}
	}
	return data, nil
}

// RenderInvoicePDF draws the invoice locally from the stored stamp fields.
func (s *invoiceService) RenderInvoicePDF(userID, invoiceID string) ([]byte, error) {
	invoice, err := s.GetInvoiceByID(userID, invoiceID)
	if err != nil {
		return nil, err
	}
	data, err := cfdi.RenderPDF(invoice)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return data, nil
}

// providerError maps a vendor failure to PROVIDER_ERROR, keeping the
// provider's message when it sent one.
func providerError(err error) error {
	appErr := apperrors.Wrap(apperrors.ErrProviderError, err)
	var apiErr *cfdi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		appErr.Message = "Invoice provider: " + apiErr.Message
	}
	return appErr
}

// commandError converts a failed command result into the error returned to
// the client.
func commandError(res command.Result) error {
	var appErr *apperrors.AppError
	if errors.As(res.Err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, res.Error())
}

// getUser loads a user or returns USER_NOT_FOUND.
func getUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

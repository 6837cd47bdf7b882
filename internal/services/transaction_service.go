package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"lana/internal/cfdi"
	"lana/internal/command"
	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/importer"
	"lana/internal/logger"
	"lana/internal/models"
	"lana/internal/pagination"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db       *gorm.DB
	provider cfdi.Provider
}

// NewTransactionService creates a new TransactionServicer. provider may be
// nil when invoicing is not configured; deleting an invoiced transaction
// then fails.
func NewTransactionService(db *gorm.DB, provider cfdi.Provider) TransactionServicer {
	return &transactionService{
		db:       db,
		provider: provider,
	}
}

func validTransactionType(t models.TransactionType) bool {
	return t == models.TransactionTypeIncome || t == models.TransactionTypeExpense
}

func validSource(s models.TransactionSource) bool {
	switch s {
	case models.SourceManual, models.SourceRecurring, models.SourceReceipt, models.SourceInvoice, models.SourceImport:
		return true
	}
	return false
}

// CreateTransaction records a new income or expense.
func (s *transactionService) CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error) {
	if !validTransactionType(input.Type) {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if input.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if input.Source == "" {
		input.Source = models.SourceManual
	}
	if !validSource(input.Source) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction source")
	}

	if input.Date.IsZero() {
		prefs, err := loadSettings(s.db, userID)
		if err != nil {
			return nil, err
		}
		input.Date = prefs.Today()
	}

	transaction := &models.Transaction{
		UserID:          userID,
		Type:            input.Type,
		Amount:          input.Amount,
		Category:        strings.TrimSpace(input.Category),
		Description:     strings.TrimSpace(input.Description),
		Date:            input.Date,
		PaymentReceived: input.Type == models.TransactionTypeIncome && input.PaymentReceived,
		Recurring:       input.Recurring,
		Source:          input.Source,
	}
	if transaction.PaymentReceived {
		paidOn := input.Date
		transaction.PaidOn = &paidOn
	}

	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's
// transactions, newest first.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListTransactions returns every matching transaction in date order.
func (s *transactionService) ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error) {
	q := applyTransactionFilters(s.db.Where("user_id = ?", userID), filter)

	var transactions []models.Transaction
	if err := q.Order("date ASC").Order("created_at ASC").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("LOWER(category) = ?", strings.ToLower(*f.Category))
	}
	if f.Recurring != nil {
		q = q.Where("recurring = ?", *f.Recurring)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if !f.IncludeCancelled {
		q = q.Where("category <> ?", models.CancelledInvoiceCategory)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction applies the provided fields. Turning a transaction into
// an expense clears its payment data.
func (s *transactionService) UpdateTransaction(userID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	typ := transaction.Type
	if input.Type != nil {
		if !validTransactionType(*input.Type) {
			return nil, apperrors.ErrInvalidTransactionType
		}
		typ = *input.Type
		updates["type"] = typ
	}
	if input.Amount != nil {
		if *input.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *input.Amount
	}
	if input.Category != nil {
		updates["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Date != nil {
		if input.Date.IsZero() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "date cannot be empty")
		}
		updates["date"] = *input.Date
	}
	if input.PaymentReceived != nil {
		if *input.PaymentReceived && typ != models.TransactionTypeIncome {
			return nil, apperrors.ErrPaymentNotApplicable
		}
		updates["payment_received"] = *input.PaymentReceived
		if !*input.PaymentReceived {
			updates["paid_on"] = nil
		} else if transaction.PaidOn == nil {
			paidOn := transaction.Date
			if input.Date != nil {
				paidOn = *input.Date
			}
			updates["paid_on"] = paidOn
		}
	}
	if typ == models.TransactionTypeExpense && transaction.Type == models.TransactionTypeIncome {
		updates["payment_received"] = false
		updates["paid_on"] = nil
		updates["payment_method"] = ""
		updates["payment_reference"] = ""
	}

	if len(updates) == 0 {
		return transaction, nil
	}
	if err := s.db.Model(transaction).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetTransactionByID(userID, transactionID)
}

// RegisterPayment marks an income transaction as paid. A zero PaidOn means
// today in the user's timezone.
func (s *transactionService) RegisterPayment(userID, transactionID string, input PaymentInput) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.Type != models.TransactionTypeIncome {
		return nil, apperrors.ErrPaymentNotApplicable
	}

	paidOn := input.PaidOn
	if paidOn.IsZero() {
		prefs, err := loadSettings(s.db, userID)
		if err != nil {
			return nil, err
		}
		paidOn = prefs.Today()
	}

	if err := s.db.Model(transaction).Updates(map[string]any{
		"payment_received":  true,
		"paid_on":           paidOn,
		"payment_method":    strings.TrimSpace(input.Method),
		"payment_reference": strings.TrimSpace(input.Reference),
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetTransactionByID(userID, transactionID)
}

// ImportTransactions stores normalized legacy rows in one database
// transaction and returns how many were created.
func (s *transactionService) ImportTransactions(userID string, rows []importer.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	records := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		t := models.Transaction{
			UserID:          userID,
			Type:            r.Type,
			Amount:          r.Amount,
			Category:        strings.TrimSpace(r.Category),
			Description:     strings.TrimSpace(r.Description),
			Date:            r.Date,
			PaymentReceived: r.Type == models.TransactionTypeIncome && r.PaymentReceived,
			Recurring:       r.Recurring,
			Source:          models.SourceImport,
		}
		if t.PaymentReceived {
			paidOn := r.Date
			t.PaidOn = &paidOn
		}
		records = append(records, t)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&records, 100).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return len(records), nil
}

// DeleteTransaction soft-deletes a transaction. When a valid invoice is
// linked to it the invoice is cancelled with the provider too, and either
// both happen or neither does.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	var invoice models.Invoice
	err = s.db.Where("transaction_id = ? AND user_id = ? AND status = ?", transaction.ID, userID, models.InvoiceStatusValid).
		First(&invoice).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Delete(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	case err != nil:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if s.provider == nil {
		return apperrors.ErrProviderNotConfigured
	}

	deleteTx := command.Command{
		Name: "delete transaction",
		Apply: func(ctx context.Context) error {
			return s.db.WithContext(ctx).Delete(transaction).Error
		},
		Rollback: func(ctx context.Context) error {
			return s.db.WithContext(ctx).Unscoped().Model(&models.Transaction{}).
				Where("id = ?", transaction.ID).
				Update("deleted_at", nil).Error
		},
	}
	cmds := append([]command.Command{deleteTx}, cancelInvoiceCommands(s.db, s.provider, &invoice, cfdi.MotiveWithErrorsUnrelated)...)

	res := command.Execute(ctx, cmds...)
	if !res.OK {
		logger.Get().Errorw("delete invoiced transaction failed",
			"transaction_id", transaction.ID,
			"invoice_id", invoice.ID,
			"step", res.Failed,
			"error", res.Error(),
		)
		return commandError(res)
	}
	return nil
}

// dateRangeFilter builds a filter over [from, to].
func dateRangeFilter(from, to dates.Date) TransactionFilter {
	return TransactionFilter{From: &from, To: &to}
}

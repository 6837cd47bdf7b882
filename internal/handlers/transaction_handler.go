package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/importer"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/services"
)

const maxImportRows = 5000

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	settingsService    services.SettingsServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(
	transactionService services.TransactionServicer,
	settingsService services.SettingsServicer,
	auditService services.AuditServicer,
) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		settingsService:    settingsService,
		auditService:       auditService,
	}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// Date is YYYY-MM-DD or an RFC3339 timestamp read in the user's timezone.
type CreateTransactionRequest struct {
	Type            models.TransactionType   `json:"type" binding:"required,transaction_type"`
	Amount          int64                    `json:"amount" binding:"required,gt=0"`
	Category        string                   `json:"category" binding:"max=100"`
	Description     string                   `json:"description" binding:"max=500"`
	Date            string                   `json:"date"`
	PaymentReceived bool                     `json:"payment_received"`
	Recurring       bool                     `json:"recurring"`
	Source          models.TransactionSource `json:"source" binding:"omitempty,oneof=manual receipt"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
type UpdateTransactionRequest struct {
	Type            *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Amount          *int64                  `json:"amount" binding:"omitempty,gt=0"`
	Category        *string                 `json:"category" binding:"omitempty,max=100"`
	Description     *string                 `json:"description" binding:"omitempty,max=500"`
	Date            *string                 `json:"date"`
	PaymentReceived *bool                   `json:"payment_received"`
}

// RegisterPaymentRequest marks an income as paid. An empty paid_on means today.
type RegisterPaymentRequest struct {
	PaidOn    string `json:"paid_on"`
	Method    string `json:"method" binding:"max=50"`
	Reference string `json:"reference" binding:"max=100"`
}

// ImportTransactionsRequest carries rows exported by older clients.
type ImportTransactionsRequest struct {
	Rows []map[string]any `json:"rows" binding:"required"`
}

// ImportTransactionsResponse reports an import.
type ImportTransactionsResponse struct {
	Imported int                 `json:"imported"`
	Rejected []importer.RowError `json:"rejected"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Create a new income or expense. An empty date means today in the user's timezone.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loc, err := userLocation(h.settingsService, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date, err := parseDate(req.Date, loc, "date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input := services.CreateTransactionInput{
		Type:            req.Type,
		Amount:          req.Amount,
		Category:        req.Category,
		Description:     req.Description,
		PaymentReceived: req.PaymentReceived,
		Recurring:       req.Recurring,
		Source:          req.Source,
	}
	if date != nil {
		input.Date = *date
	}

	transaction, err := h.transactionService.CreateTransaction(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_TRANSACTION", "transaction", transaction.ID, c.ClientIP(),
		map[string]interface{}{"type": transaction.Type, "amount": transaction.Amount, "date": transaction.Date.String()})

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetUserTransactions handles the retrieval of all transactions for a user
// @Summary     Get transactions
// @Description Get a paginated, filtered list of transactions, newest first. Cancelled invoices are hidden unless include_cancelled=true.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from              query string false "First day (YYYY-MM-DD)"
// @Param       to                query string false "Last day (YYYY-MM-DD)"
// @Param       type              query string false "income or expense"
// @Param       category          query string false "Category name"
// @Param       recurring         query bool   false "Only recurring (or non-recurring) transactions"
// @Param       min_amount        query int    false "Minimum amount in cents"
// @Param       max_amount        query int    false "Maximum amount in cents"
// @Param       include_cancelled query bool   false "Include cancelled invoices"
// @Param       page              query int    false "Page number (default 1)"
// @Param       page_size         query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loc, err := userLocation(h.settingsService, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter, err := parseTransactionFilter(c, loc)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context, loc *time.Location) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	from, to, err := parseDateRange(c, loc)
	if err != nil {
		return filter, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from")
	}
	filter.From, filter.To = from, to

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		switch txType {
		case models.TransactionTypeIncome, models.TransactionTypeExpense:
			filter.Type = &txType
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income or expense")
		}
	}

	if v := strings.TrimSpace(c.Query("category")); v != "" {
		filter.Category = &v
	}

	if filter.Recurring, err = parseBoolQuery(c, "recurring"); err != nil {
		return filter, err
	}

	includeCancelled, err := parseBoolQuery(c, "include_cancelled")
	if err != nil {
		return filter, err
	}
	filter.IncludeCancelled = includeCancelled != nil && *includeCancelled

	if v := c.Query("min_amount"); v != "" {
		amt, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid min_amount")
		}
		filter.MinAmount = &amt
	}

	if v := c.Query("max_amount"); v != "" {
		amt, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid max_amount")
		}
		filter.MaxAmount = &amt
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles updating a transaction
// @Summary     Update transaction
// @Description Update fields of an existing transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.UpdateTransactionInput{
		Type:            req.Type,
		Amount:          req.Amount,
		Category:        req.Category,
		Description:     req.Description,
		PaymentReceived: req.PaymentReceived,
	}
	if req.Date != nil {
		loc, err := userLocation(h.settingsService, userID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		var d dates.Date
		if *req.Date != "" {
			if d, err = dates.Parse(*req.Date, loc); err != nil {
				respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid date: "+err.Error()))
				return
			}
		}
		input.Date = &d
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, transactionID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deleting a transaction
// @Summary     Delete transaction
// @Description Delete a transaction. A stamped invoice linked to it is cancelled at the provider first.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     502 {object} ErrorResponse "Invoice provider failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}

// RegisterPayment handles registering the payment of an income
// @Summary     Register payment
// @Description Mark an income transaction as paid
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Transaction ID"
// @Param       request body RegisterPaymentRequest true "Payment details"
// @Success     200 {object} models.Transaction "Paid transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or not an income"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/payment [post]
func (h *TransactionHandler) RegisterPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.PaymentInput{Method: req.Method, Reference: req.Reference}
	if req.PaidOn != "" {
		loc, err := userLocation(h.settingsService, userID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		paidOn, err := parseDate(req.PaidOn, loc, "paid_on")
		if err != nil {
			respondWithError(c, err)
			return
		}
		input.PaidOn = *paidOn
	}

	transaction, err := h.transactionService.RegisterPayment(userID, transactionID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REGISTER_PAYMENT", "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"paid_on": transaction.PaidOn, "method": transaction.PaymentMethod})

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// ImportTransactions handles importing transactions exported by older clients
// @Summary     Import transactions
// @Description Import legacy rows. Field name variants are accepted; rows that cannot be read are reported and skipped.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ImportTransactionsRequest true "Legacy rows"
// @Success     200 {object} ImportTransactionsResponse "Import result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/import [post]
func (h *TransactionHandler) ImportTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if len(req.Rows) > maxImportRows {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "too many rows"))
		return
	}

	loc, err := userLocation(h.settingsService, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, rejected := importer.NormalizeAll(req.Rows, loc)
	imported, err := h.transactionService.ImportTransactions(userID, rows)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if rejected == nil {
		rejected = []importer.RowError{}
	}

	h.auditService.Log(userID, "IMPORT_TRANSACTIONS", "transaction", "", c.ClientIP(),
		map[string]interface{}{"imported": imported, "rejected": len(rejected)})

	c.JSON(http.StatusOK, ImportTransactionsResponse{Imported: imported, Rejected: rejected})
}

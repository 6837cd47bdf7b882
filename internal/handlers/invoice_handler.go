package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/pagination"
	"lana/internal/services"
)

// InvoiceHandler handles CFDI invoice requests.
type InvoiceHandler struct {
	invoiceService  services.InvoiceServicer
	settingsService services.SettingsServicer
	auditService    services.AuditServicer
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(
	invoiceService services.InvoiceServicer,
	settingsService services.SettingsServicer,
	auditService services.AuditServicer,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:  invoiceService,
		settingsService: settingsService,
		auditService:    auditService,
	}
}

// CreateInvoiceRequest is a one-concept CFDI. Amounts are in cents; rates
// are decimal fractions such as "0.16".
type CreateInvoiceRequest struct {
	CustomerLegalName string `json:"customer_legal_name" binding:"required,max=300"`
	CustomerTaxID     string `json:"customer_tax_id" binding:"required,min=12,max=13"`
	CustomerTaxSystem string `json:"customer_tax_system" binding:"required,numeric,len=3"`
	CustomerZip       string `json:"customer_zip" binding:"required,numeric,len=5"`
	CustomerEmail     string `json:"customer_email" binding:"omitempty,email"`
	ProductKey        string `json:"product_key" binding:"required,numeric,len=8"`
	Description       string `json:"description" binding:"required,max=1000"`
	Quantity          int64  `json:"quantity" binding:"required,gt=0"`
	UnitPrice         int64  `json:"unit_price" binding:"required,gt=0"`
	IVARate           string `json:"iva_rate" binding:"omitempty,numeric"`
	ISRRetention      string `json:"isr_retention" binding:"omitempty,numeric"`
	IVARetention      string `json:"iva_retention" binding:"omitempty,numeric"`
	Use               string `json:"use" binding:"required,max=4"`
	PaymentForm       string `json:"payment_form" binding:"required,numeric,len=2"`
	PaymentMethod     string `json:"payment_method" binding:"required,payment_method"`
	Category          string `json:"category" binding:"max=100"`
	Date              string `json:"date"`
}

// CancelInvoiceRequest carries the SAT cancellation motive (01-04).
type CancelInvoiceRequest struct {
	Motive string `json:"motive" binding:"omitempty,oneof=01 02 03 04"`
}

// CreateInvoice stamps a CFDI and records the income it bills.
// @Summary     Issue an invoice
// @Description Stamp a CFDI with the provider and create the linked income transaction
// @Tags        invoices
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInvoiceRequest true "Invoice details"
// @Success     201 {object} models.Invoice "Stamped invoice"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not available on plan"
// @Failure     502 {object} ErrorResponse "Provider error"
// @Failure     503 {object} ErrorResponse "Provider not configured"
// @Router      /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.CreateInvoiceInput{
		CustomerLegalName: req.CustomerLegalName,
		CustomerTaxID:     req.CustomerTaxID,
		CustomerTaxSystem: req.CustomerTaxSystem,
		CustomerZip:       req.CustomerZip,
		CustomerEmail:     req.CustomerEmail,
		ProductKey:        req.ProductKey,
		Description:       req.Description,
		Quantity:          req.Quantity,
		UnitPrice:         req.UnitPrice,
		IVARate:           req.IVARate,
		ISRRetention:      req.ISRRetention,
		IVARetention:      req.IVARetention,
		Use:               req.Use,
		PaymentForm:       req.PaymentForm,
		PaymentMethod:     req.PaymentMethod,
		Category:          req.Category,
	}
	if req.Date != "" {
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
		input.Date = *date
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_INVOICE", "invoice", invoice.ID, c.ClientIP(),
		map[string]interface{}{"uuid": invoice.UUID, "total": invoice.Total, "customer_tax_id": invoice.CustomerTaxID})

	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

// GetInvoices lists the user's invoices.
// @Summary     Get invoices
// @Description Get a paginated list of invoices, newest first
// @Tags        invoices
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Invoice] "Paginated invoices"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /invoices [get]
func (h *InvoiceHandler) GetInvoices(c *gin.Context) {
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

	result, err := h.invoiceService.GetUserInvoices(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInvoiceByID returns one invoice.
// @Summary     Get invoice
// @Description Get an invoice with its stamp fields
// @Tags        invoices
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Invoice ID"
// @Success     200 {object} models.Invoice "Invoice"
// @Failure     400 {object} ErrorResponse "Invalid invoice ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Invoice not found"
// @Router      /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoiceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByID(userID, invoiceID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// CancelInvoice cancels a stamped invoice.
// @Summary     Cancel invoice
// @Description Cancel the CFDI at the provider and move its income to the cancelled-invoice category
// @Tags        invoices
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true  "Invoice ID"
// @Param       request body CancelInvoiceRequest false "Cancellation motive (default 02)"
// @Success     200 {object} models.Invoice "Cancelled invoice"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Invoice not found"
// @Failure     409 {object} ErrorResponse "Invoice cannot be cancelled"
// @Failure     502 {object} ErrorResponse "Provider error"
// @Router      /invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoiceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), userID, invoiceID, req.Motive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CANCEL_INVOICE", "invoice", invoiceID, c.ClientIP(),
		map[string]interface{}{"motive": req.Motive})

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// DownloadFile proxies the provider's PDF or XML of an invoice.
// @Summary     Download invoice file
// @Description Download the stamped PDF or XML from the provider. The file is archived on first download.
// @Tags        invoices
// @Produce     application/pdf
// @Produce     application/xml
// @Security    BearerAuth
// @Param       id     path string true "Invoice ID"
// @Param       format path string true "pdf or xml"
// @Success     200 {file} file "Invoice document"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Invoice not found"
// @Failure     502 {object} ErrorResponse "Provider error"
// @Router      /invoices/{id}/files/{format} [get]
func (h *InvoiceHandler) DownloadFile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoiceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	kind := services.InvoiceFile(c.Param("format"))
	var contentType string
	switch kind {
	case services.InvoiceFilePDF:
		contentType = "application/pdf"
	case services.InvoiceFileXML:
		contentType = "application/xml"
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "format must be 'pdf' or 'xml'"))
		return
	}

	data, err := h.invoiceService.DownloadInvoiceFile(c.Request.Context(), userID, invoiceID, kind)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="factura-%s.%s"`, invoiceID, kind))
	c.Data(http.StatusOK, contentType, data)
}

// RenderPDF renders a printable summary of the stored stamp fields.
// @Summary     Printable invoice
// @Description Render a PDF from the stored invoice and certificate fields without calling the provider
// @Tags        invoices
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       id path string true "Invoice ID"
// @Success     200 {file} file "Invoice PDF"
// @Failure     400 {object} ErrorResponse "Invalid invoice ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Invoice not found"
// @Router      /invoices/{id}/printable [get]
func (h *InvoiceHandler) RenderPDF(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoiceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	data, err := h.invoiceService.RenderInvoicePDF(userID, invoiceID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="factura-%s.pdf"`, invoiceID))
	c.Data(http.StatusOK, "application/pdf", data)
}

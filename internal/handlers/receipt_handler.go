package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/services"
)

// maxReceiptBytes bounds an uploaded receipt photo.
const maxReceiptBytes = 8 << 20

// ReceiptHandler handles receipt scans and category suggestions.
type ReceiptHandler struct {
	receiptService services.ReceiptServicer
	auditService   services.AuditServicer
}

// NewReceiptHandler creates a new ReceiptHandler.
func NewReceiptHandler(receiptService services.ReceiptServicer, auditService services.AuditServicer) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService, auditService: auditService}
}

// SuggestCategoryRequest represents the request payload for a suggestion.
type SuggestCategoryRequest struct {
	Description string              `json:"description" binding:"required,max=500"`
	Type        models.CategoryType `json:"type" binding:"omitempty,category_type"`
}

// ScanReceipt extracts an expense draft from a receipt photo.
// @Summary     Scan a receipt
// @Description Read amount, merchant and date from a receipt image. Nothing is saved; the draft is returned for review.
// @Tags        receipts
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       image formData file true "Receipt image (JPEG, PNG or WebP)"
// @Success     200 {object} extraction.Draft "Expense draft"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not available on plan"
// @Failure     422 {object} ErrorResponse "Receipt could not be read"
// @Failure     503 {object} ErrorResponse "Extraction not configured"
// @Router      /receipts/scan [post]
func (h *ReceiptHandler) ScanReceipt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image is required"))
		return
	}
	if file.Size > maxReceiptBytes {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image must be at most 8 MB"))
		return
	}

	f, err := file.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, maxReceiptBytes))
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}

	draft, err := h.receiptService.ScanReceipt(c.Request.Context(), userID, image)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SCAN_RECEIPT", "receipt", "", c.ClientIP(),
		map[string]interface{}{"size": file.Size, "confidence": draft.Confidence})

	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// SuggestCategory proposes one of the user's categories for a description.
// @Summary     Suggest a category
// @Description Pick the best matching category. Falls back to keywords when AI categorization is unavailable.
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SuggestCategoryRequest true "Description to categorize"
// @Success     200 {object} extraction.Suggestion "Suggestion"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/suggest [post]
func (h *ReceiptHandler) SuggestCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SuggestCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	suggestion, err := h.receiptService.SuggestCategory(c.Request.Context(), userID, req.Description, req.Type)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

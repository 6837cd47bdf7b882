package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "lana/internal/errors"
	"lana/internal/extraction"
	"lana/internal/logger"
	"lana/internal/models"
	"lana/internal/tiers"
)

// receiptService reads receipts and suggests categories.
type receiptService struct {
	db        *gorm.DB
	extractor *extraction.Extractor
}

// NewReceiptService creates a new ReceiptServicer. An unconfigured extractor
// makes scans fail and leaves suggestions to keyword matching.
func NewReceiptService(db *gorm.DB, extractor *extraction.Extractor) ReceiptServicer {
	return &receiptService{db: db, extractor: extractor}
}

// ScanReceipt turns a receipt photo into an unsaved expense draft. The
// draft's category is suggested from the merchant name.
func (s *receiptService) ScanReceipt(ctx context.Context, userID string, image []byte) (*extraction.Draft, error) {
	if len(image) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "image is required")
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	limits := tiers.ForUser(user)
	if !limits.Allows(tiers.FeatureReceiptScan) {
		return nil, apperrors.ErrFeatureNotAvailable
	}
	if !s.extractor.Configured() {
		return nil, apperrors.ErrProviderNotConfigured
	}

	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return nil, err
	}

	draft, err := s.extractor.ScanReceipt(ctx, image, prefs.Location())
	if err != nil {
		logger.Get().Warnw("receipt scan failed", "user_id", userID, "error", err)
		if errors.Is(err, extraction.ErrNotConfigured) {
			return nil, apperrors.ErrProviderNotConfigured
		}
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, err)
	}

	if draft.Merchant != "" {
		suggestion, err := s.suggest(ctx, userID, limits, draft.Merchant, models.CategoryTypeExpense)
		if err == nil {
			draft.Category = suggestion.Category
		}
	}
	return draft, nil
}

// SuggestCategory picks one of the user's categories of categoryType for
// description. Tiers without AI categorization get keyword matching only.
func (s *receiptService) SuggestCategory(ctx context.Context, userID, description string, categoryType models.CategoryType) (*extraction.Suggestion, error) {
	if categoryType == "" {
		categoryType = models.CategoryTypeExpense
	}
	if !validCategoryType(categoryType) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be income or expense")
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	suggestion, err := s.suggest(ctx, userID, tiers.ForUser(user), description, categoryType)
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

func (s *receiptService) suggest(ctx context.Context, userID string, limits tiers.Limits, description string, categoryType models.CategoryType) (extraction.Suggestion, error) {
	var categories []models.Category
	if err := s.db.Where("user_id = ? AND type = ?", userID, categoryType).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return extraction.Suggestion{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	candidates := make([]extraction.Candidate, 0, len(categories))
	for _, c := range categories {
		candidates = append(candidates, extraction.Candidate{
			Name:     c.Name,
			Keywords: extraction.SplitKeywords(c.Keywords),
		})
	}

	ext := s.extractor
	if !limits.Allows(tiers.FeatureAICategorization) {
		ext = nil
	}
	suggestion, modelErr := ext.SuggestCategory(ctx, description, candidates)
	if modelErr != nil {
		logger.Get().Warnw("category suggestion fell back to keywords", "user_id", userID, "error", modelErr)
	}
	return suggestion, nil
}

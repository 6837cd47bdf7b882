package services

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	apperrors "lana/internal/errors"
	"lana/internal/extraction"
	"lana/internal/models"
	"lana/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// NormalizeCategoryName trims, collapses inner whitespace and title-cases a
// category name using Spanish casing rules.
func NormalizeCategoryName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Spanish).String(name)
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(
	userID string,
	name string,
	categoryType models.CategoryType,
	description string,
	icon string,
	color string,
	keywords string,
) (*models.Category, error) {
	name = NormalizeCategoryName(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	if err := s.ensureUniqueName(userID, "", name, categoryType); err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID:      userID,
		Name:        name,
		Type:        categoryType,
		Description: description,
		Icon:        icon,
		Color:       color,
		Keywords:    normalizeKeywords(keywords),
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// ensureUniqueName rejects a name already used by another category of the
// same type. Names compare case-insensitively.
func (s *categoryService) ensureUniqueName(userID, excludeID, name string, categoryType models.CategoryType) error {
	q := s.db.Model(&models.Category{}).
		Where("user_id = ? AND type = ? AND LOWER(name) = ?", userID, categoryType, strings.ToLower(name))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

// GetUserCategories retrieves a paginated list of categories for a user.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return s.pageCategories(s.db.Model(&models.Category{}).Where("user_id = ?", userID), page)
}

// GetUserCategoriesByType retrieves a paginated list of categories of a specific type for a user.
func (s *categoryService) GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return s.pageCategories(s.db.Model(&models.Category{}).Where("user_id = ? AND type = ?", userID, categoryType), page)
}

func (s *categoryService) pageCategories(base *gorm.DB, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListCategoriesByType returns every category of a type, for pickers and
// suggestion candidates.
func (s *categoryService) ListCategoriesByType(userID string, categoryType models.CategoryType) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.Where("user_id = ? AND type = ?", userID, categoryType).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory updates an existing category. Transactions keep the name
// they were saved with.
func (s *categoryService) UpdateCategory(userID, categoryID string, input UpdateCategoryInput) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if input.Name != nil {
		name := NormalizeCategoryName(*input.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if err := s.ensureUniqueName(userID, categoryID, name, category.Type); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Icon != nil {
		updates["icon"] = *input.Icon
	}
	if input.Color != nil {
		updates["color"] = *input.Color
	}
	if input.Keywords != nil {
		updates["keywords"] = normalizeKeywords(*input.Keywords)
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory soft-deletes a category. Transactions store the category
// name, so history is unaffected.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// normalizeKeywords lowercases a comma separated keyword list.
func normalizeKeywords(s string) string {
	keywords := extraction.SplitKeywords(s)
	for i := range keywords {
		keywords[i] = strings.ToLower(keywords[i])
	}
	return strings.Join(keywords, ", ")
}

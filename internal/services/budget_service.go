package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"lana/internal/budgets"
	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/tiers"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB) BudgetServicer {
	return &budgetService{db: db, now: time.Now}
}

func validCategoryType(t models.CategoryType) bool {
	return t == models.CategoryTypeIncome || t == models.CategoryTypeExpense
}

// CreateBudget creates a monthly budget for a category. A zero limit
// creates an inactive budget.
func (s *budgetService) CreateBudget(userID, category string, budgetType models.CategoryType, limit int64) (*models.Budget, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	if budgetType == "" {
		budgetType = models.CategoryTypeExpense
	}
	if !validCategoryType(budgetType) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be income or expense")
	}
	if limit < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must not be negative")
	}

	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&models.Budget{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !tiers.ForUser(user).WithinLimit(tiers.LimitBudgets, count) {
		return nil, apperrors.ErrTierLimitReached
	}

	if err := s.ensureUnique(userID, "", category, budgetType); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		UserID:   userID,
		Category: category,
		Type:     budgetType,
		Limit:    limit,
	}
	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

func (s *budgetService) ensureUnique(userID, excludeID, category string, budgetType models.CategoryType) error {
	q := s.db.Model(&models.Budget{}).
		Where("user_id = ? AND type = ? AND LOWER(category) = ?", userID, budgetType, strings.ToLower(category))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateBudget
	}
	return nil
}

// GetUserBudgets returns a paginated list of budgets for the user.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var list []models.Budget
	if err := base.Scopes(pagination.Paginate(page)).Order("category ASC").Find(&list).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(list, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget changes the category or the limit of a budget.
func (s *budgetService) UpdateBudget(userID, budgetID string, category *string, limit *int64) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if category != nil {
		name := strings.TrimSpace(*category)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category cannot be empty")
		}
		if err := s.ensureUnique(userID, budgetID, name, budget.Type); err != nil {
			return nil, err
		}
		updates["category"] = name
	}
	if limit != nil {
		if *limit < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must not be negative")
		}
		updates["limit_amount"] = *limit
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetBudgetByID(userID, budgetID)
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetProgress computes a budget's utilization for month, or for the
// current month in the user's timezone when month is nil.
func (s *budgetService) GetBudgetProgress(userID, budgetID string, month *dates.Date) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	m, warn, err := s.resolveMonth(userID, month)
	if err != nil {
		return nil, err
	}
	txs, err := s.monthTransactions(userID, m)
	if err != nil {
		return nil, err
	}
	progress := evaluateBudget(budget, txs, m, warn)
	return &progress, nil
}

// GetBudgetSummary computes the utilization of every budget in a month.
func (s *budgetService) GetBudgetSummary(userID string, month *dates.Date) (*BudgetSummary, error) {
	m, warn, err := s.resolveMonth(userID, month)
	if err != nil {
		return nil, err
	}

	var list []models.Budget
	if err := s.db.Where("user_id = ?", userID).Order("category ASC").Find(&list).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	txs, err := s.monthTransactions(userID, m)
	if err != nil {
		return nil, err
	}

	summary := &BudgetSummary{Month: monthKey(m), Budgets: make([]BudgetProgress, 0, len(list))}
	for i := range list {
		p := evaluateBudget(&list[i], txs, m, warn)
		summary.Budgets = append(summary.Budgets, p)
		if list[i].IsActive() {
			summary.TotalLimit += p.Limit
			summary.TotalSpent += p.Spent
		}
	}
	return summary, nil
}

func (s *budgetService) resolveMonth(userID string, month *dates.Date) (dates.Date, int, error) {
	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return dates.Date{}, 0, err
	}
	m := dates.Of(s.now().In(prefs.Location()))
	if month != nil && !month.IsZero() {
		m = *month
	}
	return dates.FirstOfMonth(m), prefs.BudgetWarningPercent, nil
}

func (s *budgetService) monthTransactions(userID string, month dates.Date) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := applyTransactionFilters(s.db.Where("user_id = ?", userID), dateRangeFilter(month, dates.LastOfMonth(month))).
		Find(&txs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txs, nil
}

func evaluateBudget(b *models.Budget, txs []models.Transaction, month dates.Date, warn int) BudgetProgress {
	spent := budgets.Spent(txs, b.Category, models.TransactionType(b.Type), month)
	return BudgetProgress{
		BudgetID:    b.ID,
		Category:    b.Category,
		Type:        b.Type,
		Month:       monthKey(month),
		Utilization: budgets.Evaluate(b.Limit, spent, warn),
	}
}

func monthKey(d dates.Date) string {
	return d.String()[:7]
}

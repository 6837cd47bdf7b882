package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/logger"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/recurring"
	"lana/internal/tiers"
)

// errAlreadyGenerated reports a lost conditional update: another run
// produced the period first.
var errAlreadyGenerated = errors.New("occurrence already generated")

// recurringService handles recurring rules and their materialization.
type recurringService struct {
	db          *gorm.DB
	concurrency int
	now         func() time.Time
}

// NewRecurringService creates a new RecurringServicer. concurrency bounds
// how many users a sweep materializes at once.
func NewRecurringService(db *gorm.DB, concurrency int) RecurringServicer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &recurringService{db: db, concurrency: concurrency, now: time.Now}
}

// CreateRule creates an active monthly rule.
func (s *recurringService) CreateRule(userID string, input RecurringRuleInput) (*models.RecurringRule, error) {
	if !validTransactionType(input.Type) {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if input.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if err := recurring.ValidateDayOfMonth(input.DayOfMonth); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	var active int64
	if err := s.db.Model(&models.RecurringRule{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&active).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !tiers.ForUser(user).WithinLimit(tiers.LimitRecurringRules, active) {
		return nil, apperrors.ErrTierLimitReached
	}

	rule := &models.RecurringRule{
		UserID:      userID,
		Type:        input.Type,
		Amount:      input.Amount,
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		DayOfMonth:  input.DayOfMonth,
		IsActive:    true,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// GetUserRules returns a paginated list of the user's rules.
func (s *recurringService) GetUserRules(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringRule], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringRule{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.RecurringRule
	if err := base.Scopes(pagination.Paginate(page)).Order("day_of_month ASC").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListActiveRules returns every active rule of the user.
func (s *recurringService) ListActiveRules(userID string) ([]models.RecurringRule, error) {
	var rules []models.RecurringRule
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("day_of_month ASC").
		Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rules, nil
}

// GetRuleByID retrieves a rule of the user.
func (s *recurringService) GetRuleByID(userID, ruleID string) (*models.RecurringRule, error) {
	var rule models.RecurringRule
	if err := s.db.Where("id = ? AND user_id = ?", ruleID, userID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringRuleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rule, nil
}

// UpdateRule edits a rule. The generation marker is never touched here.
func (s *recurringService) UpdateRule(userID, ruleID string, input UpdateRecurringRuleInput) (*models.RecurringRule, error) {
	rule, err := s.GetRuleByID(userID, ruleID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
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
	if input.DayOfMonth != nil {
		if err := recurring.ValidateDayOfMonth(*input.DayOfMonth); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		updates["day_of_month"] = *input.DayOfMonth
	}
	if input.IsActive != nil {
		if *input.IsActive && !rule.IsActive {
			user, err := getUser(s.db, userID)
			if err != nil {
				return nil, err
			}
			var active int64
			if err := s.db.Model(&models.RecurringRule{}).
				Where("user_id = ? AND is_active = ?", userID, true).
				Count(&active).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if !tiers.ForUser(user).WithinLimit(tiers.LimitRecurringRules, active) {
				return nil, apperrors.ErrTierLimitReached
			}
		}
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(rule).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetRuleByID(userID, ruleID)
}

// DeleteRule soft-deletes a rule. Transactions it produced stay.
func (s *recurringService) DeleteRule(userID, ruleID string) error {
	rule, err := s.GetRuleByID(userID, ruleID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(rule).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Materialize creates at most one transaction per due rule, dated at the
// rule's most recent occurrence on or before today. Per-rule failures are
// logged and counted; they are retried on the next run.
func (s *recurringService) Materialize(ctx context.Context, userID string, today dates.Date) (recurring.RunResult, error) {
	var result recurring.RunResult

	rules, err := s.ListActiveRules(userID)
	if err != nil {
		return result, err
	}

	for i := range rules {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rule := &rules[i]
		occ, due := recurring.Due(rule.DayOfMonth, rule.LastGenerated, today)
		if !due {
			result.Skipped++
			continue
		}

		err := s.materializeOne(ctx, rule, occ)
		switch {
		case errors.Is(err, errAlreadyGenerated):
			result.Skipped++
		case err != nil:
			result.Errors++
			logger.Get().Errorw("recurring materialization failed",
				"rule_id", rule.ID,
				"user_id", userID,
				"occurrence", occ.String(),
				"error", err,
			)
		default:
			result.Processed++
		}
	}
	return result, nil
}

// materializeOne advances the marker with a conditional update and creates
// the transaction in the same database transaction, so a period is produced
// once even when runs overlap.
func (s *recurringService) materializeOne(ctx context.Context, rule *models.RecurringRule, occ dates.Date) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RecurringRule{}).
			Where("id = ? AND (last_generated IS NULL OR last_generated < ?)", rule.ID, occ).
			Update("last_generated", occ)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyGenerated
		}

		t := &models.Transaction{
			UserID:          rule.UserID,
			Type:            rule.Type,
			Amount:          rule.Amount,
			Category:        rule.Category,
			Description:     rule.Description,
			Date:            occ,
			PaymentReceived: false,
			Recurring:       true,
			Source:          models.SourceRecurring,
		}
		return tx.Create(t).Error
	})
}

// MaterializeForUser runs Materialize with today taken in the user's
// timezone.
func (s *recurringService) MaterializeForUser(ctx context.Context, userID string) (recurring.RunResult, error) {
	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return recurring.RunResult{}, err
	}
	return s.Materialize(ctx, userID, dates.Of(s.now().In(prefs.Location())))
}

// SweepAll materializes every user with an active rule, a bounded number at
// a time. A failing user is counted and does not stop the sweep.
func (s *recurringService) SweepAll(ctx context.Context) (recurring.RunResult, error) {
	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.RecurringRule{}).
		Where("is_active = ?", true).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return recurring.RunResult{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var (
		mu    sync.Mutex
		total recurring.RunResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range userIDs {
		g.Go(func() error {
			res, err := s.MaterializeForUser(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			total.Add(res)
			if err != nil {
				total.Errors++
				logger.Get().Errorw("recurring sweep for user failed", "user_id", id, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, ctx.Err()
}

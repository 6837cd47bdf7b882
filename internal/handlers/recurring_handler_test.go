package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/recurring"
	"lana/internal/services"
)

// --- mock recurring service ---

type mockRecurringService struct {
	createRuleFn         func(userID string, input services.RecurringRuleInput) (*models.RecurringRule, error)
	getRuleByIDFn        func(userID, ruleID string) (*models.RecurringRule, error)
	updateRuleFn         func(userID, ruleID string, input services.UpdateRecurringRuleInput) (*models.RecurringRule, error)
	deleteRuleFn         func(userID, ruleID string) error
	materializeForUserFn func(ctx context.Context, userID string) (recurring.RunResult, error)
	sweepAllFn           func(ctx context.Context) (recurring.RunResult, error)
}

func (m *mockRecurringService) CreateRule(userID string, input services.RecurringRuleInput) (*models.RecurringRule, error) {
	if m.createRuleFn != nil {
		return m.createRuleFn(userID, input)
	}
	return &models.RecurringRule{}, nil
}

func (m *mockRecurringService) GetUserRules(string, pagination.PageRequest) (*pagination.PageResponse[models.RecurringRule], error) {
	resp := pagination.NewPageResponse([]models.RecurringRule{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockRecurringService) ListActiveRules(string) ([]models.RecurringRule, error) {
	return nil, nil
}

func (m *mockRecurringService) GetRuleByID(userID, ruleID string) (*models.RecurringRule, error) {
	if m.getRuleByIDFn != nil {
		return m.getRuleByIDFn(userID, ruleID)
	}
	return &models.RecurringRule{}, nil
}

func (m *mockRecurringService) UpdateRule(userID, ruleID string, input services.UpdateRecurringRuleInput) (*models.RecurringRule, error) {
	if m.updateRuleFn != nil {
		return m.updateRuleFn(userID, ruleID, input)
	}
	return &models.RecurringRule{}, nil
}

func (m *mockRecurringService) DeleteRule(userID, ruleID string) error {
	if m.deleteRuleFn != nil {
		return m.deleteRuleFn(userID, ruleID)
	}
	return nil
}

func (m *mockRecurringService) Materialize(context.Context, string, dates.Date) (recurring.RunResult, error) {
	return recurring.RunResult{}, nil
}

func (m *mockRecurringService) MaterializeForUser(ctx context.Context, userID string) (recurring.RunResult, error) {
	if m.materializeForUserFn != nil {
		return m.materializeForUserFn(ctx, userID)
	}
	return recurring.RunResult{}, nil
}

func (m *mockRecurringService) SweepAll(ctx context.Context) (recurring.RunResult, error) {
	if m.sweepAllFn != nil {
		return m.sweepAllFn(ctx)
	}
	return recurring.RunResult{}, nil
}

var _ services.RecurringServicer = (*mockRecurringService)(nil)

func setupRecurringRouter(handler *RecurringHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/recurring", handler.CreateRule)
	auth.GET("/recurring", handler.GetRules)
	auth.POST("/recurring/materialize", handler.Materialize)
	auth.GET("/recurring/:id", handler.GetRuleByID)
	auth.PUT("/recurring/:id", handler.UpdateRule)
	auth.DELETE("/recurring/:id", handler.DeleteRule)
	return r
}

func TestRecurringHandler_CreateRule(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.RecurringRuleInput
		svc := &mockRecurringService{
			createRuleFn: func(_ string, input services.RecurringRuleInput) (*models.RecurringRule, error) {
				got = input
				return &models.RecurringRule{
					Base:       models.Base{ID: testResourceID},
					Type:       input.Type,
					Amount:     input.Amount,
					DayOfMonth: input.DayOfMonth,
					IsActive:   true,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupRecurringRouter(NewRecurringHandler(svc, audit))

		rec := doRequest(r, "POST", "/recurring",
			`{"type":"expense","amount":1500000,"category":"Renta","day_of_month":31}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.DayOfMonth != 31 || got.Category != "Renta" {
			t.Errorf("unexpected input %+v", got)
		}
		rule := parseJSON(t, rec)["rule"].(map[string]interface{})
		if rule["is_active"] != true {
			t.Errorf("expected active rule, got %v", rule)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "CREATE_RECURRING_RULE" {
			t.Errorf("unexpected audit %v", audit.actions)
		}
	})

	badInputs := map[string]string{
		"day zero":    `{"type":"expense","amount":100,"day_of_month":0}`,
		"day 32":      `{"type":"expense","amount":100,"day_of_month":32}`,
		"no amount":   `{"type":"expense","day_of_month":5}`,
		"bad type":    `{"type":"transfer","amount":100,"day_of_month":5}`,
		"missing day": `{"type":"income","amount":100}`,
	}
	for name, body := range badInputs {
		t.Run("returns 400 on "+name, func(t *testing.T) {
			r := setupRecurringRouter(NewRecurringHandler(&mockRecurringService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/recurring", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}

	t.Run("returns 403 at the plan limit", func(t *testing.T) {
		svc := &mockRecurringService{
			createRuleFn: func(string, services.RecurringRuleInput) (*models.RecurringRule, error) {
				return nil, apperrors.ErrTierLimitReached
			},
		}
		r := setupRecurringRouter(NewRecurringHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/recurring", `{"type":"income","amount":100,"day_of_month":1}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TIER_LIMIT_REACHED")
	})
}

func TestRecurringHandler_UpdateRule(t *testing.T) {
	t.Run("deactivates a rule", func(t *testing.T) {
		var got services.UpdateRecurringRuleInput
		svc := &mockRecurringService{
			updateRuleFn: func(_, id string, input services.UpdateRecurringRuleInput) (*models.RecurringRule, error) {
				got = input
				return &models.RecurringRule{Base: models.Base{ID: id}, IsActive: *input.IsActive}, nil
			},
		}
		r := setupRecurringRouter(NewRecurringHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/recurring/"+testResourceID, `{"is_active":false}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.IsActive == nil || *got.IsActive || got.Amount != nil {
			t.Errorf("unexpected input %+v", got)
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockRecurringService{
			updateRuleFn: func(string, string, services.UpdateRecurringRuleInput) (*models.RecurringRule, error) {
				return nil, apperrors.ErrRecurringRuleNotFound
			},
		}
		r := setupRecurringRouter(NewRecurringHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/recurring/"+testResourceID, `{"amount":10}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "RECURRING_RULE_NOT_FOUND")
	})
}

func TestRecurringHandler_DeleteRule(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupRecurringRouter(NewRecurringHandler(&mockRecurringService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/recurring/"+testResourceID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRecurringHandler_Materialize(t *testing.T) {
	t.Run("returns run counts", func(t *testing.T) {
		var gotUser string
		svc := &mockRecurringService{
			materializeForUserFn: func(_ context.Context, userID string) (recurring.RunResult, error) {
				gotUser = userID
				return recurring.RunResult{Processed: 2, Skipped: 1}, nil
			},
		}
		r := setupRecurringRouter(NewRecurringHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/recurring/materialize", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["processed"] != float64(2) || result["skipped"] != float64(1) || result["errors"] != float64(0) {
			t.Errorf("unexpected result %v", result)
		}
		if gotUser != testUserID {
			t.Errorf("expected user %s, got %s", testUserID, gotUser)
		}
	})

	t.Run("returns 500 on failure", func(t *testing.T) {
		svc := &mockRecurringService{
			materializeForUserFn: func(context.Context, string) (recurring.RunResult, error) {
				return recurring.RunResult{}, apperrors.ErrInternalServer
			},
		}
		r := setupRecurringRouter(NewRecurringHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/recurring/materialize", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

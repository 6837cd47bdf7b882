package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"lana/internal/settings"
)

func setupSettingsRouter(handler *SettingsHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/settings", handler.GetSettings)
	auth.PUT("/settings", handler.UpdateSettings)
	return r
}

func TestSettingsHandler_GetSettings(t *testing.T) {
	r := setupSettingsRouter(NewSettingsHandler(&mockSettingsService{}, &mockAuditService{}))

	rec := doRequest(r, "GET", "/settings", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	s := parseJSON(t, rec)["settings"].(map[string]interface{})
	if s["currency"] != "MXN" || s["timezone"] != "America/Mexico_City" || s["schema_version"] != float64(settings.CurrentVersion) {
		t.Errorf("unexpected settings %v", s)
	}
}

func TestSettingsHandler_UpdateSettings(t *testing.T) {
	t.Run("merges present fields", func(t *testing.T) {
		var got settings.Settings
		svc := &mockSettingsService{
			updateSettingsFn: func(_ string, s settings.Settings) (*settings.Settings, error) {
				got = s
				return &s, nil
			},
		}
		audit := &mockAuditService{}
		r := setupSettingsRouter(NewSettingsHandler(svc, audit))

		rec := doRequest(r, "PUT", "/settings", `{"timezone":"America/Tijuana","budget_warning_percent":90}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Timezone != "America/Tijuana" || got.BudgetWarningPercent != 90 {
			t.Errorf("fields not applied: %+v", got)
		}
		if got.Currency != "MXN" || got.WeekStart != "monday" {
			t.Errorf("absent fields changed: %+v", got)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "UPDATE_SETTINGS" {
			t.Errorf("unexpected audit %v", audit.actions)
		}
	})

	badInputs := map[string]string{
		"unknown timezone": `{"timezone":"Mars/Olympus"}`,
		"unknown currency": `{"currency":"ABC"}`,
		"zero percent":     `{"budget_warning_percent":0}`,
		"percent above":    `{"budget_warning_percent":101}`,
		"week start":       `{"week_start":"someday"}`,
		"relative route":   `{"last_route":"budgets"}`,
	}
	for name, body := range badInputs {
		t.Run("returns 400 on "+name, func(t *testing.T) {
			r := setupSettingsRouter(NewSettingsHandler(&mockSettingsService{}, &mockAuditService{}))

			rec := doRequest(r, "PUT", "/settings", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_SETTINGS")
		})
	}
}

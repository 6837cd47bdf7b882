package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	"lana/internal/services"
	"lana/internal/settings"
)

type mockCalendarService struct {
	getMonthFn func(userID string, month dates.Date) (*services.CalendarMonth, error)
}

func (m *mockCalendarService) GetMonth(userID string, month dates.Date) (*services.CalendarMonth, error) {
	if m.getMonthFn != nil {
		return m.getMonthFn(userID, month)
	}
	return &services.CalendarMonth{}, nil
}

var _ services.CalendarServicer = (*mockCalendarService)(nil)

func setupCalendarRouter(handler *CalendarHandler) *gin.Engine {
	r := gin.New()
	r.GET("/calendar", injectUserID(testUserID), handler.GetMonth)
	return r
}

func TestCalendarHandler_GetMonth(t *testing.T) {
	t.Run("uses the requested month", func(t *testing.T) {
		var got dates.Date
		svc := &mockCalendarService{
			getMonthFn: func(_ string, month dates.Date) (*services.CalendarMonth, error) {
				got = month
				return &services.CalendarMonth{
					Month: "2024-02",
					Days: []services.CalendarDay{{
						Date: dates.MustParse("2024-02-29"),
						Recurring: []services.CalendarEntry{{
							Amount:       900,
							Date:         dates.MustParse("2024-02-29"),
							Materialized: true,
						}},
					}},
				}, nil
			},
		}
		r := setupCalendarRouter(NewCalendarHandler(svc, &mockSettingsService{}))

		rec := doRequest(r, "GET", "/calendar?month=2024-02", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.String() != "2024-02-01" {
			t.Errorf("expected 2024-02-01, got %s", got)
		}
		days := parseJSON(t, rec)["days"].([]interface{})
		entry := days[0].(map[string]interface{})["recurring"].([]interface{})[0].(map[string]interface{})
		if entry["materialized"] != true || entry["date"] != "2024-02-29" {
			t.Errorf("unexpected entry %v", entry)
		}
	})

	t.Run("defaults to the current month of the user", func(t *testing.T) {
		var got dates.Date
		svc := &mockCalendarService{
			getMonthFn: func(_ string, month dates.Date) (*services.CalendarMonth, error) {
				got = month
				return &services.CalendarMonth{}, nil
			},
		}
		settingsSvc := &mockSettingsService{
			getSettingsFn: func(string) (*settings.Settings, error) {
				s := settings.Default()
				s.Timezone = "Pacific/Kiritimati"
				return &s, nil
			},
		}
		r := setupCalendarRouter(NewCalendarHandler(svc, settingsSvc))

		rec := doRequest(r, "GET", "/calendar", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		want := dates.FirstOfMonth(dates.Today(settings.Settings{Timezone: "Pacific/Kiritimati"}.Location()))
		if !got.Equal(want) {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("returns 400 on invalid month", func(t *testing.T) {
		r := setupCalendarRouter(NewCalendarHandler(&mockCalendarService{}, &mockSettingsService{}))

		rec := doRequest(r, "GET", "/calendar?month=02-2024", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"lana/internal/billing"
	"lana/internal/cfdi"
	"lana/internal/extraction"
	"lana/internal/logger"
	"lana/internal/models"
	"lana/internal/server"
	"lana/internal/services"
	"lana/internal/storage"
	"lana/internal/testutil"
	"lana/internal/validator"
)

const pipelineKey = "pipeline-test-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Provider *fakeProvider
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// fakeProvider stamps invoices in memory.
type fakeProvider struct {
	mu        sync.Mutex
	issued    int
	cancelled []string
}

func (p *fakeProvider) CreateInvoice(_ context.Context, req cfdi.Request) (*cfdi.Stamp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	totals := cfdi.Compute(req)
	st := &cfdi.Stamp{
		ID:              fmt.Sprintf("inv_%d", p.issued),
		Status:          "valid",
		UUID:            fmt.Sprintf("11111111-2222-4333-8444-%012d", p.issued),
		Series:          "F",
		FolioNumber:     int64(p.issued),
		Total:           float64(totals.Total) / 100,
		VerificationURL: "https://verificacfdi.facturaelectronica.sat.gob.mx/",
		Raw:             []byte(`{}`),
	}
	st.Stamp.Date = "2024-05-02T10:00:00"
	return st, nil
}

func (p *fakeProvider) CancelInvoice(_ context.Context, id, motive string) (*cfdi.Stamp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, id+":"+motive)
	return &cfdi.Stamp{ID: id, Status: "canceled", CancellationStatus: "accepted"}, nil
}

func (p *fakeProvider) DownloadPDF(context.Context, string) ([]byte, error) {
	return []byte("%PDF-provider"), nil
}

func (p *fakeProvider) DownloadXML(context.Context, string) ([]byte, error) {
	return []byte("<cfdi:Comprobante/>"), nil
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite. Stripe and Gemini are left unconfigured.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	provider := &fakeProvider{}

	router := server.NewRouter(server.Services{
		User:        services.NewUserService(db),
		Audit:       services.NewAuditService(db),
		Category:    services.NewCategoryService(db),
		Transaction: services.NewTransactionService(db, provider),
		Budget:      services.NewBudgetService(db),
		Recurring:   services.NewRecurringService(db, 2),
		Settings:    services.NewSettingsService(db),
		Cashflow:    services.NewCashflowService(db),
		Calendar:    services.NewCalendarService(db),
		Invoice:     services.NewInvoiceService(db, provider, storage.NewMemoryArchive()),
		Receipt:     services.NewReceiptService(db, extraction.NewExtractor(nil, "")),
		Billing:     services.NewBillingService(db, nil, billing.Prices{}, ""),
		Export:      services.NewExportService(db),
	}, server.Options{PipelineAPIKey: pipelineKey})

	return &testApp{DB: db, Router: router, Provider: provider}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	return app.requestWithHeaders(method, path, body, token, nil)
}

func (app *testApp) requestWithHeaders(method, path, body, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode returns the code of an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// subscribe puts a user on an active paid tier, as a processed webhook would.
func (app *testApp) subscribe(t *testing.T, userID string, tier models.SubscriptionTier) {
	t.Helper()
	err := app.DB.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"subscription_tier":   tier,
		"subscription_status": models.SubscriptionActive,
	}).Error
	if err != nil {
		t.Fatalf("failed to subscribe user: %v", err)
	}
}

// listData returns the data array of a paginated response.
func listData(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	data, ok := parseJSON(t, rec)["data"].([]interface{})
	if !ok {
		t.Fatalf("expected paginated body, got %s", rec.Body.String())
	}
	return data
}

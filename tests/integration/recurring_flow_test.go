package integration

import (
	"net/http"
	"testing"
)

func TestRecurringFlow_MaterializeIsIdempotent(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "rules@test.com", "password123")

	// Day 1 has always happened by today, so the rule is due at once
	rec := app.request("POST", "/api/v1/recurring",
		`{"type":"expense","amount":150000,"category":"Rent","description":"Apartment","day_of_month":1}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating rule, got %d: %s", rec.Code, rec.Body.String())
	}
	rule := parseJSON(t, rec)["rule"].(map[string]interface{})
	if rule["is_active"] != true {
		t.Errorf("expected an active rule, got %v", rule["is_active"])
	}

	rec = app.request("POST", "/api/v1/recurring/materialize", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["processed"].(float64) != 1 {
		t.Errorf("expected 1 processed, got %v", result["processed"])
	}

	// A second run in the same period produces nothing
	rec = app.request("POST", "/api/v1/recurring/materialize", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	if result["processed"].(float64) != 0 {
		t.Errorf("expected 0 processed on the second run, got %v", result["processed"])
	}
	if result["skipped"].(float64) != 1 {
		t.Errorf("expected 1 skipped on the second run, got %v", result["skipped"])
	}

	rec = app.request("GET", "/api/v1/transactions?recurring=true", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := listData(t, rec)
	if len(data) != 1 {
		t.Fatalf("expected 1 recurring transaction, got %d", len(data))
	}
	tx := data[0].(map[string]interface{})
	if tx["amount"].(float64) != 150000 || tx["category"] != "Rent" {
		t.Errorf("unexpected materialized transaction %v", tx)
	}
	if tx["source"] != "recurring" {
		t.Errorf("expected source recurring, got %v", tx["source"])
	}
	if tx["payment_received"] != false {
		t.Errorf("expected an unpaid transaction, got %v", tx["payment_received"])
	}
}

func TestRecurringFlow_InactiveRuleIsIgnored(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "paused@test.com", "password123")

	rec := app.request("POST", "/api/v1/recurring",
		`{"type":"income","amount":500000,"category":"Salary","day_of_month":1}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	ruleID := parseJSON(t, rec)["rule"].(map[string]interface{})["id"].(string)

	rec = app.request("PUT", "/api/v1/recurring/"+ruleID, `{"is_active":false}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 pausing the rule, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/recurring/materialize", "", token)
	result := parseJSON(t, rec)
	if result["processed"].(float64) != 0 {
		t.Errorf("expected nothing processed for a paused rule, got %v", result["processed"])
	}
}

func TestRecurringFlow_InvalidDay(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "day@test.com", "password123")

	rec := app.request("POST", "/api/v1/recurring",
		`{"type":"expense","amount":100,"day_of_month":32}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecurringFlow_PipelineSweep(t *testing.T) {
	app := setupApp(t)
	first, _, _ := app.registerUser(t, "first@test.com", "password123")
	second, _, _ := app.registerUser(t, "second@test.com", "password123")

	for _, token := range []string{first, second} {
		rec := app.request("POST", "/api/v1/recurring",
			`{"type":"expense","amount":9900,"category":"Streaming","day_of_month":1}`, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	// The first user already materialized on their own
	rec := app.request("POST", "/api/v1/recurring/materialize", "", first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("rejects a missing key", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/pipeline/recurring/sweep", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "INVALID_API_KEY" {
			t.Errorf("expected INVALID_API_KEY, got %s", code)
		}
	})

	t.Run("rejects a user token", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/pipeline/recurring/sweep", "", first)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("sweeps every user", func(t *testing.T) {
		rec := app.requestWithHeaders("POST", "/api/v1/pipeline/recurring/sweep", "", "",
			map[string]string{"X-API-Key": pipelineKey})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["processed"].(float64) != 1 {
			t.Errorf("expected 1 processed, got %v", result["processed"])
		}
		if result["skipped"].(float64) != 1 {
			t.Errorf("expected 1 skipped, got %v", result["skipped"])
		}
		if result["errors"].(float64) != 0 {
			t.Errorf("expected no errors, got %v", result["errors"])
		}
	})
}

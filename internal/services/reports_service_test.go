package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"lana/internal/dates"
	"lana/internal/models"
	"lana/internal/testutil"
)

func TestGetCashflow(t *testing.T) {
	t.Run("monthly_window", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCashflowService(db).(*cashflowService)
		svc.now = fixedClock("2024-06-15")
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeIncome, 50000, "Salario", dates.MustParse("2024-06-01"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 12000, "Comida", dates.MustParse("2024-06-10"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 3000, "Comida", dates.MustParse("2024-05-31"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 9999, models.CancelledInvoiceCategory, dates.MustParse("2024-06-02"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 7777, "Comida", dates.MustParse("2024-06-20"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 1111, "Comida", dates.MustParse("2023-06-30"))

		report, err := svc.GetCashflow(user.ID, dates.Month)
		testutil.AssertNoError(t, err)

		if len(report.Buckets) != 12 {
			t.Fatalf("expected 12 buckets, got %d", len(report.Buckets))
		}
		if report.From.String() != "2023-07-01" || report.To.String() != "2024-06-30" {
			t.Errorf("unexpected window %s..%s", report.From, report.To)
		}
		last := report.Buckets[11]
		if last.Label != "2024-06" || last.Income != 50000 || last.Expense != 12000 {
			t.Errorf("unexpected current bucket %+v", last)
		}
		if report.Buckets[10].Expense != 3000 {
			t.Errorf("expected 3000 in May, got %d", report.Buckets[10].Expense)
		}
		if report.ForecastEnabled || last.Forecast != nil {
			t.Error("free tier should not get a forecast")
		}
	})

	t.Run("forecast_on_paid_tier", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCashflowService(db).(*cashflowService)
		svc.now = fixedClock("2024-06-15")
		user := testutil.CreateTestUserWithTier(t, db, models.TierPro)

		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 15000, "Comida", dates.MustParse("2024-06-10"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 4000, "Comida", dates.MustParse("2024-05-10"))

		report, err := svc.GetCashflow(user.ID, dates.Month)
		testutil.AssertNoError(t, err)

		if !report.ForecastEnabled {
			t.Fatal("expected forecast to be enabled")
		}
		last := report.Buckets[11]
		if last.Forecast == nil || *last.Forecast != 30000 {
			t.Errorf("expected 15000 over 15/30 days to project 30000, got %v", last.Forecast)
		}
		prev := report.Buckets[10]
		if prev.Forecast == nil || *prev.Forecast != 4000 {
			t.Errorf("expected previous bucket anchored at its actual, got %v", prev.Forecast)
		}
	})

	t.Run("sunday_week_start", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCashflowService(db).(*cashflowService)
		svc.now = fixedClock("2024-06-15")
		user := testutil.CreateTestUser(t, db)

		prefs, err := NewSettingsService(db).GetSettings(user.ID)
		testutil.AssertNoError(t, err)
		prefs.WeekStart = "sunday"
		_, err = NewSettingsService(db).UpdateSettings(user.ID, *prefs)
		testutil.AssertNoError(t, err)

		// Both are Sundays: the first day of the oldest and of the current week.
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 700, "Comida", dates.MustParse("2024-03-24"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 500, "Comida", dates.MustParse("2024-06-09"))

		report, err := svc.GetCashflow(user.ID, dates.Week)
		testutil.AssertNoError(t, err)

		if report.From.String() != "2024-03-24" || report.To.String() != "2024-06-15" {
			t.Errorf("unexpected window %s..%s", report.From, report.To)
		}
		first, last := report.Buckets[0], report.Buckets[len(report.Buckets)-1]
		if first.Start.String() != "2024-03-24" || first.Expense != 700 {
			t.Errorf("unexpected oldest bucket %+v", first)
		}
		if last.Label != "2024-06-09" || last.Expense != 500 {
			t.Errorf("unexpected current bucket %+v", last)
		}
	})

	t.Run("invalid_granularity", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		_, err := NewCashflowService(db).GetCashflow(user.ID, "quarter")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetMonth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)

	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeIncome, 20000, "Salario", dates.MustParse("2024-02-01"))
	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 500, "Comida", dates.MustParse("2024-02-01"))
	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 900, "Comida", dates.MustParse("2024-03-01"))

	rent := testutil.CreateTestRecurringRule(t, db, user.ID, models.TransactionTypeExpense, 850000, 31)
	gym := testutil.CreateTestRecurringRule(t, db, user.ID, models.TransactionTypeExpense, 60000, 5)
	db.Model(gym).Update("last_generated", dates.MustParse("2024-02-05"))
	paused := testutil.CreateTestRecurringRule(t, db, user.ID, models.TransactionTypeExpense, 100, 10)
	db.Model(paused).Update("is_active", false)

	month, err := NewCalendarService(db).GetMonth(user.ID, dates.MustParse("2024-02-17"))
	testutil.AssertNoError(t, err)

	if month.Month != "2024-02" {
		t.Errorf("expected month 2024-02, got %s", month.Month)
	}
	if len(month.Days) != 29 {
		t.Fatalf("expected 29 days in February 2024, got %d", len(month.Days))
	}

	first := month.Days[0]
	if len(first.Transactions) != 2 || first.Income != 20000 || first.Expense != 500 {
		t.Errorf("unexpected first day %+v", first)
	}

	gymDay := month.Days[4]
	if len(gymDay.Recurring) != 1 || !gymDay.Recurring[0].Materialized {
		t.Errorf("expected materialized gym occurrence on the 5th, got %+v", gymDay.Recurring)
	}

	rentDay := month.Days[28]
	if len(rentDay.Recurring) != 1 {
		t.Fatalf("expected rent clamped to the 29th, got %+v", rentDay.Recurring)
	}
	if rentDay.Recurring[0].RuleID != rent.ID || rentDay.Recurring[0].Materialized {
		t.Errorf("unexpected rent entry %+v", rentDay.Recurring[0])
	}

	if len(month.Days[9].Recurring) != 0 {
		t.Error("inactive rule should not be shown")
	}
}

func TestExportCSV(t *testing.T) {
	t.Run("range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 12345, "Comida, rápida", dates.MustParse("2024-03-05"))
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeIncome, 100, "Salario", dates.MustParse("2024-04-05"))

		out, err := NewExportService(db).ExportCSV(user.ID, datePtr("2024-03-01"), datePtr("2024-03-31"))
		testutil.AssertNoError(t, err)

		rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
		testutil.AssertNoError(t, err)
		if len(rows) != 2 {
			t.Fatalf("expected header and one row, got %d rows", len(rows))
		}
		if rows[1][2] != "Comida, rápida" || rows[1][4] != "123.45" {
			t.Errorf("unexpected row %v", rows[1])
		}
	})

	t.Run("inverted_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		_, err := NewExportService(db).ExportCSV(user.ID, datePtr("2024-03-31"), datePtr("2024-03-01"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestExportPDF(t *testing.T) {
	t.Run("free_tier", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		_, err := NewExportService(db).ExportPDF(user.ID, nil, nil)
		testutil.AssertAppError(t, err, "FEATURE_NOT_AVAILABLE")
	})

	t.Run("pro_tier", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUserWithTier(t, db, models.TierPro)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 5000)

		out, err := NewExportService(db).ExportPDF(user.ID, nil, nil)
		testutil.AssertNoError(t, err)
		if !bytes.HasPrefix(out, []byte("%PDF")) {
			t.Error("expected a PDF document")
		}
	})
}

package services

import (
	"testing"

	"lana/internal/budgets"
	"lana/internal/dates"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/testutil"
)

func TestCreateBudget(t *testing.T) {
	t.Run("defaults_to_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, " Comida ", "", 500000)
		testutil.AssertNoError(t, err)

		if budget.Type != models.CategoryTypeExpense {
			t.Errorf("expected expense budget, got %s", budget.Type)
		}
		if budget.Category != "Comida" || budget.Limit != 500000 {
			t.Errorf("unexpected budget %+v", budget)
		}
	})

	t.Run("zero_limit_is_inactive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, "Ocio", models.CategoryTypeExpense, 0)
		testutil.AssertNoError(t, err)
		if budget.IsActive() {
			t.Error("expected zero-limit budget to be inactive")
		}
	})

	t.Run("duplicate_ignores_case", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestBudget(t, db, user.ID, "Comida")

		_, err := svc.CreateBudget(user.ID, "COMIDA", models.CategoryTypeExpense, 100)
		testutil.AssertAppError(t, err, "DUPLICATE_BUDGET")
	})

	t.Run("same_category_other_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestBudget(t, db, user.ID, "Freelance")

		_, err := svc.CreateBudget(user.ID, "Freelance", models.CategoryTypeIncome, 100)
		testutil.AssertNoError(t, err)
	})

	t.Run("negative_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, "Comida", models.CategoryTypeExpense, -1)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("missing_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, "  ", models.CategoryTypeExpense, 100)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, "Comida", "savings", 100)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("free_tier_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		for _, c := range []string{"Comida", "Renta", "Transporte"} {
			testutil.CreateTestBudget(t, db, user.ID, c)
		}

		_, err := svc.CreateBudget(user.ID, "Ocio", models.CategoryTypeExpense, 100)
		testutil.AssertAppError(t, err, "TIER_LIMIT_REACHED")
	})

	t.Run("pro_tier_above_free_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUserWithTier(t, db, models.TierPro)
		for _, c := range []string{"Comida", "Renta", "Transporte"} {
			testutil.CreateTestBudget(t, db, user.ID, c)
		}

		_, err := svc.CreateBudget(user.ID, "Ocio", models.CategoryTypeExpense, 100)
		testutil.AssertNoError(t, err)
	})
}

func TestGetUserBudgets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	testutil.CreateTestBudget(t, db, user.ID, "Renta")
	testutil.CreateTestBudget(t, db, user.ID, "Comida")
	testutil.CreateTestBudget(t, db, other.ID, "Comida")

	result, err := svc.GetUserBudgets(user.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 2 {
		t.Fatalf("expected 2 budgets, got %d", result.TotalItems)
	}
	if result.Data[0].Category != "Comida" {
		t.Errorf("expected alphabetical order, got %s first", result.Data[0].Category)
	}
}

func TestUpdateBudget(t *testing.T) {
	t.Run("limit_and_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

		updated, err := svc.UpdateBudget(user.ID, budget.ID, strPtr("Super"), int64Ptr(0))
		testutil.AssertNoError(t, err)

		if updated.Category != "Super" || updated.Limit != 0 {
			t.Errorf("unexpected budget %+v", updated)
		}
	})

	t.Run("rename_onto_existing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestBudget(t, db, user.ID, "Renta")
		budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

		_, err := svc.UpdateBudget(user.ID, budget.ID, strPtr("renta"), nil)
		testutil.AssertAppError(t, err, "DUPLICATE_BUDGET")
	})

	t.Run("keep_own_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

		_, err := svc.UpdateBudget(user.ID, budget.ID, strPtr("Comida"), int64Ptr(2000))
		testutil.AssertNoError(t, err)
	})

	t.Run("negative_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

		_, err := svc.UpdateBudget(user.ID, budget.ID, nil, int64Ptr(-5))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.UpdateBudget(user.ID, missingID, nil, int64Ptr(5))
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestDeleteBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

	testutil.AssertAppError(t, svc.DeleteBudget(other.ID, budget.ID), "BUDGET_NOT_FOUND")
	testutil.AssertNoError(t, svc.DeleteBudget(user.ID, budget.ID))

	_, err := svc.GetBudgetByID(user.ID, budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestGetBudgetProgress(t *testing.T) {
	tests := []struct {
		name   string
		spent  []int64
		status budgets.Status
	}{
		{name: "ok", spent: []int64{2000, 3000}, status: budgets.StatusOK},
		{name: "warning", spent: []int64{8000}, status: budgets.StatusWarning},
		{name: "limit_reached", spent: []int64{6000, 4000}, status: budgets.StatusLimitReached},
		{name: "exceeded", spent: []int64{10001}, status: budgets.StatusExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.TeardownTestDB(t, db)
			svc := NewBudgetService(db).(*budgetService)
			svc.now = fixedClock("2024-05-20")
			user := testutil.CreateTestUser(t, db)
			budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")

			var want int64
			for _, amount := range tt.spent {
				testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, amount, "comida", dates.MustParse("2024-05-10"))
				want += amount
			}
			// outside the month and of the wrong type
			testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 999, "Comida", dates.MustParse("2024-04-30"))
			testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeIncome, 999, "Comida", dates.MustParse("2024-05-11"))

			progress, err := svc.GetBudgetProgress(user.ID, budget.ID, nil)
			testutil.AssertNoError(t, err)

			if progress.Month != "2024-05" {
				t.Errorf("expected month 2024-05, got %s", progress.Month)
			}
			if progress.Spent != want {
				t.Errorf("expected spent %d, got %d", want, progress.Spent)
			}
			if progress.Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, progress.Status)
			}
		})
	}

	t.Run("explicit_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db).(*budgetService)
		svc.now = fixedClock("2024-05-20")
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, "Comida")
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 999, "Comida", dates.MustParse("2024-04-30"))

		progress, err := svc.GetBudgetProgress(user.ID, budget.ID, datePtr("2024-04-15"))
		testutil.AssertNoError(t, err)
		if progress.Month != "2024-04" || progress.Spent != 999 {
			t.Errorf("unexpected progress %+v", progress)
		}
	})

	t.Run("cancelled_invoices_not_counted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db).(*budgetService)
		svc.now = fixedClock("2024-05-20")
		user := testutil.CreateTestUser(t, db)
		budget, err := svc.CreateBudget(user.ID, models.CancelledInvoiceCategory, models.CategoryTypeIncome, 1000)
		testutil.AssertNoError(t, err)
		testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeIncome, 5000, models.CancelledInvoiceCategory, dates.MustParse("2024-05-02"))

		progress, err := svc.GetBudgetProgress(user.ID, budget.ID, nil)
		testutil.AssertNoError(t, err)
		if progress.Spent != 0 {
			t.Errorf("expected cancelled invoice income ignored, got %d", progress.Spent)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		_, err := NewBudgetService(db).GetBudgetProgress(user.ID, missingID, nil)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestGetBudgetSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db).(*budgetService)
	svc.now = fixedClock("2024-05-20")
	user := testutil.CreateTestUser(t, db)

	testutil.CreateTestBudget(t, db, user.ID, "Comida")
	testutil.CreateTestBudget(t, db, user.ID, "Renta")
	_, err := svc.CreateBudget(user.ID, "Ocio", models.CategoryTypeExpense, 0)
	testutil.AssertNoError(t, err)

	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 4000, "Comida", dates.MustParse("2024-05-03"))
	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 10000, "Renta", dates.MustParse("2024-05-01"))
	testutil.CreateTestTransactionOn(t, db, user.ID, models.TransactionTypeExpense, 700, "Ocio", dates.MustParse("2024-05-04"))

	summary, err := svc.GetBudgetSummary(user.ID, nil)
	testutil.AssertNoError(t, err)

	if len(summary.Budgets) != 3 {
		t.Fatalf("expected 3 budgets, got %d", len(summary.Budgets))
	}
	if summary.TotalLimit != 20000 || summary.TotalSpent != 14000 {
		t.Errorf("expected totals over active budgets only, got limit=%d spent=%d", summary.TotalLimit, summary.TotalSpent)
	}
	statuses := map[string]budgets.Status{}
	for _, b := range summary.Budgets {
		statuses[b.Category] = b.Status
	}
	if statuses["Ocio"] != budgets.StatusInactive || statuses["Renta"] != budgets.StatusLimitReached || statuses["Comida"] != budgets.StatusOK {
		t.Errorf("unexpected statuses %v", statuses)
	}
}

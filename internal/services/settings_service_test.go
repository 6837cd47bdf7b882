package services

import (
	"testing"

	"gorm.io/datatypes"

	"lana/internal/models"
	"lana/internal/settings"
	"lana/internal/testutil"
)

func TestGetSettings(t *testing.T) {
	t.Run("defaults_when_missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		prefs, err := NewSettingsService(db).GetSettings(user.ID)
		testutil.AssertNoError(t, err)

		if *prefs != settings.Default() {
			t.Errorf("expected defaults, got %+v", prefs)
		}
	})

	t.Run("migrates_legacy_document", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		legacy := &models.UserSettings{
			UserID:   user.ID,
			Document: datatypes.JSON(`{"lastRoute":"/budgets","userInitial":"JD","tz":"America/Monterrey","currency":"usd"}`),
		}
		if err := db.Create(legacy).Error; err != nil {
			t.Fatalf("failed to seed settings: %v", err)
		}

		prefs, err := NewSettingsService(db).GetSettings(user.ID)
		testutil.AssertNoError(t, err)

		if prefs.LastRoute != "/budgets" || prefs.DisplayInitial != "JD" || prefs.Timezone != "America/Monterrey" {
			t.Errorf("legacy keys not migrated: %+v", prefs)
		}
		if prefs.Currency != "USD" || prefs.WeekStart != settings.DefaultWeekStart {
			t.Errorf("unexpected normalized fields: %+v", prefs)
		}

		var stored models.UserSettings
		db.Where("user_id = ?", user.ID).First(&stored)
		if stored.SchemaVersion != settings.CurrentVersion {
			t.Errorf("expected migrated document written back, got version %d", stored.SchemaVersion)
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	t.Run("stores_document", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSettingsService(db)
		user := testutil.CreateTestUser(t, db)

		prefs := settings.Default()
		prefs.Timezone = "Europe/Madrid"
		prefs.BudgetWarningPercent = 90
		_, err := svc.UpdateSettings(user.ID, prefs)
		testutil.AssertNoError(t, err)

		prefs.WeekStart = "sunday"
		_, err = svc.UpdateSettings(user.ID, prefs)
		testutil.AssertNoError(t, err)

		got, err := svc.GetSettings(user.ID)
		testutil.AssertNoError(t, err)
		if got.Timezone != "Europe/Madrid" || got.BudgetWarningPercent != 90 || got.WeekStart != "sunday" {
			t.Errorf("unexpected settings %+v", got)
		}

		var count int64
		db.Model(&models.UserSettings{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected a single settings row, got %d", count)
		}
	})

	t.Run("invalid_timezone", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		prefs := settings.Default()
		prefs.Timezone = "Mars/Olympus"
		_, err := NewSettingsService(db).UpdateSettings(user.ID, prefs)
		testutil.AssertAppError(t, err, "INVALID_SETTINGS")
	})

	t.Run("invalid_warning_percent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		prefs := settings.Default()
		prefs.BudgetWarningPercent = 150
		_, err := NewSettingsService(db).UpdateSettings(user.ID, prefs)
		testutil.AssertAppError(t, err, "INVALID_SETTINGS")
	})
}

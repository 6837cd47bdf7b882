package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lana/internal/dates"
	"lana/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:            email,
		Password:         string(hash),
		IsActive:         true,
		SubscriptionTier: models.TierFree,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestUserWithTier creates a user on an active paid subscription.
func CreateTestUserWithTier(t *testing.T, db *gorm.DB, tier models.SubscriptionTier) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	updates := map[string]any{
		"subscription_tier":   tier,
		"subscription_status": models.SubscriptionActive,
	}
	if err := db.Model(user).Updates(updates).Error; err != nil {
		t.Fatalf("failed to set test user tier: %v", err)
	}
	user.SubscriptionTier = tier
	user.SubscriptionStatus = models.SubscriptionActive
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction dated today (UTC) of the
// given type and amount in cents.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionOn(t, db, userID, txType, amount, "General", dates.Today(time.UTC))
}

// CreateTestTransactionOn creates a transaction in category on date.
func CreateTestTransactionOn(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64, category string, date dates.Date) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:   userID,
		Type:     txType,
		Amount:   amount,
		Category: category,
		Date:     date,
		Source:   models.SourceManual,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates an expense budget of 100.00 for category.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, category string) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:   userID,
		Category: category,
		Type:     models.CategoryTypeExpense,
		Limit:    10000,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestRecurringRule creates an active monthly rule.
func CreateTestRecurringRule(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64, dayOfMonth int) *models.RecurringRule {
	t.Helper()

	rule := &models.RecurringRule{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Category:    "Renta",
		Description: fmt.Sprintf("Rule %d", nextID()),
		DayOfMonth:  dayOfMonth,
		IsActive:    true,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test recurring rule: %v", err)
	}
	return rule
}

// CreateTestInvoice creates a valid stamped invoice linked to transactionID.
func CreateTestInvoice(t *testing.T, db *gorm.DB, userID string, transactionID *string) *models.Invoice {
	t.Helper()

	n := nextID()
	inv := &models.Invoice{
		UserID:            userID,
		TransactionID:     transactionID,
		ProviderID:        fmt.Sprintf("inv_%d", n),
		Status:            models.InvoiceStatusValid,
		CustomerLegalName: "CLIENTE DE PRUEBA",
		CustomerTaxID:     "XAXX010101000",
		CustomerTaxSystem: "616",
		CustomerZip:       "01000",
		ProductKey:        "80111600",
		Description:       "Servicios profesionales",
		Use:               "G03",
		PaymentForm:       "03",
		PaymentMethod:     "PUE",
		Currency:          "MXN",
		Subtotal:          100000,
		Transferred:       16000,
		Total:             116000,
		UUID:              fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test invoice: %v", err)
	}
	return inv
}

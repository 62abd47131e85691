package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pfledger/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date builds a UTC calendar day, the form every posted/as-of date takes.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestAccount creates an account of the given type.
func CreateTestAccount(t *testing.T, db *gorm.DB, accountType models.AccountType) *models.Account {
	t.Helper()

	n := nextID()
	account := &models.Account{
		Type:         accountType,
		Name:         fmt.Sprintf("Test Account %d", n),
		Institution:  fmt.Sprintf("Test Bank %d", n),
		MaskedNumber: fmt.Sprintf("****%04d", n%10000),
		Currency:     "USD",
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, name string, ctype models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, Type: ctype}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a normalized transaction with a unique
// content hash.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, amountCents int64, postedAt time.Time, description string) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		AccountID:   accountID,
		PostedAt:    models.DateOnly(postedAt),
		Description: description,
		AmountCents: amountCents,
		Currency:    "USD",
		IsIncome:    amountCents > 0,
		IsExpense:   amountCents < 0,
		Hash:        fmt.Sprintf("testhash-%d", nextID()),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}

// CreateTestRule creates a categorization rule.
func CreateTestRule(t *testing.T, db *gorm.DB, priority int, patternType models.RulePatternType, pattern, categoryID string) *models.CategoryRule {
	t.Helper()

	rule := &models.CategoryRule{
		Priority:    priority,
		PatternType: patternType,
		Pattern:     pattern,
		CategoryID:  categoryID,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test rule: %v", err)
	}
	return rule
}

// CreateTestMortgage creates a mortgage account plus terms.
func CreateTestMortgage(t *testing.T, db *gorm.DB, principalCents int64, annualRatePct float64, termMonths int, startDate time.Time) *models.Mortgage {
	t.Helper()

	account := CreateTestAccount(t, db, models.AccountTypeMortgage)
	mortgage := &models.Mortgage{
		AccountID:      account.ID,
		Lender:         fmt.Sprintf("Test Lender %d", nextID()),
		PrincipalCents: principalCents,
		AnnualRatePct:  annualRatePct,
		TermMonths:     termMonths,
		StartDate:      models.DateOnly(startDate),
		PaymentDay:     1,
	}
	if err := db.Create(mortgage).Error; err != nil {
		t.Fatalf("failed to create test mortgage: %v", err)
	}
	return mortgage
}

package database

import (
	"fmt"

	"pfledger/internal/models"

	"gorm.io/gorm"
)

// seedCategory pairs a category with the substring rules that feed it.
type seedCategory struct {
	name     string
	ctype    models.CategoryType
	keywords []string
}

// Default categories and starter rules. Rules are plain substring matches
// at evenly spaced priorities so user-defined rules can slot in between.
var seedCategories = []seedCategory{
	{name: models.UncategorizedName, ctype: models.CategoryTypeExpense},
	{name: "Groceries", ctype: models.CategoryTypeExpense, keywords: []string{"whole foods", "trader joe", "costco"}},
	{name: "Dining", ctype: models.CategoryTypeExpense, keywords: []string{"starbucks", "restaurant", "mcdonald"}},
	{name: "Transport", ctype: models.CategoryTypeExpense, keywords: []string{"uber", "lyft", "shell", "exxon"}},
	{name: "Shopping", ctype: models.CategoryTypeExpense, keywords: []string{"amazon", "target", "walmart"}},
	{name: "Utilities", ctype: models.CategoryTypeExpense},
	{name: "Mortgage", ctype: models.CategoryTypeExpense, keywords: []string{"mortgage"}},
	{name: "Transfers", ctype: models.CategoryTypeTransfer},
	{name: "Income:Salary", ctype: models.CategoryTypeIncome, keywords: []string{"payroll", "salary"}},
	{name: "Income:Dividend", ctype: models.CategoryTypeIncome, keywords: []string{"dividend", "interest"}},
}

// Seed inserts default categories and categorization rules if the
// categories table is empty. Idempotent: a populated store is untouched.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		priority := 10
		for _, sc := range seedCategories {
			category := &models.Category{Name: sc.name, Type: sc.ctype}
			if err := tx.Create(category).Error; err != nil {
				return fmt.Errorf("failed to seed category %q: %w", sc.name, err)
			}

			for _, kw := range sc.keywords {
				rule := &models.CategoryRule{
					Priority:    priority,
					PatternType: models.RulePatternSubstring,
					Pattern:     kw,
					CategoryID:  category.ID,
				}
				if sc.ctype == models.CategoryTypeIncome {
					t := true
					f := false
					rule.IsIncome = &t
					rule.IsExpense = &f
				}
				if err := tx.Create(rule).Error; err != nil {
					return fmt.Errorf("failed to seed rule %q: %w", kw, err)
				}
				priority += 10
			}
		}
		return nil
	})
}

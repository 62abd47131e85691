package models

// RulePatternType represents how a rule's pattern is matched against a
// transaction.
type RulePatternType string

const (
	RulePatternRegex     RulePatternType = "regex"
	RulePatternSubstring RulePatternType = "substring"
	RulePatternExact     RulePatternType = "exact"
	RulePatternMerchant  RulePatternType = "merchant"
)

// CategoryRule assigns a category to transactions whose description or
// merchant matches its pattern. Rules are evaluated in ascending Priority
// order (lower = higher precedence), tie-broken by ID; the first match
// wins.
type CategoryRule struct {
	Base
	Priority    int             `gorm:"not null;index" json:"priority"`
	PatternType RulePatternType `gorm:"not null" json:"pattern_type"`
	Pattern     string          `gorm:"not null" json:"pattern"`
	CategoryID  string          `gorm:"type:uuid;not null" json:"category_id"`
	// AccountType, when set, restricts the rule to transactions on
	// accounts of that type.
	AccountType *AccountType `json:"account_type,omitempty"`
	// IsIncome/IsExpense, when set, supersede the income/expense flags
	// inferred from the transaction's sign.
	IsIncome  *bool `json:"is_income,omitempty"`
	IsExpense *bool `json:"is_expense,omitempty"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

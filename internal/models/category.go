package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeExpense   CategoryType = "expense"
	CategoryTypeIncome    CategoryType = "income"
	CategoryTypeTransfer  CategoryType = "transfer"
	CategoryTypeAsset     CategoryType = "asset"
	CategoryTypeLiability CategoryType = "liability"
)

// UncategorizedName is the reserved fallback category assigned when no
// rule matches a transaction.
const UncategorizedName = "Uncategorized"

// Category represents a transaction category. Categories form a simple
// tree via ParentID; parentage implies display grouping only, no behavior.
type Category struct {
	Base
	Name     string       `gorm:"not null;uniqueIndex" json:"name"`
	ParentID *string      `gorm:"type:uuid" json:"parent_id,omitempty"`
	Type     CategoryType `gorm:"not null" json:"type"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

package models

// TransactionSplit sub-allocates a single transaction's amount across
// multiple categories. A transaction either has zero splits (single
// category via its own CategoryID) or splits summing exactly to its
// amount; the sum invariant is enforced at write time.
type TransactionSplit struct {
	Base
	TransactionID string `gorm:"type:uuid;not null;index" json:"transaction_id"`
	AmountCents   int64  `gorm:"type:bigint;not null" json:"amount_cents"`
	CategoryID    string `gorm:"type:uuid;not null" json:"category_id"`

	// Relationships
	Transaction Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
	Category    Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

package models

import "time"

// StatementStatus represents the lifecycle state of an imported statement.
type StatementStatus string

const (
	StatementStatusImported StatementStatus = "imported"
	StatementStatusParsed   StatementStatus = "parsed"
	StatementStatusFailed   StatementStatus = "failed"
)

// Statement represents one provider-issued document covering one account
// and one period. (AccountID, PeriodStart, PeriodEnd) is unique among
// non-failed statements; re-importing the same period is rejected unless
// explicitly overridden, so the invariant is enforced by the importer
// rather than a database unique index.
type Statement struct {
	Base
	AccountID   string          `gorm:"type:uuid;not null;index:idx_statements_account_period" json:"account_id"`
	PeriodStart time.Time       `gorm:"not null;index:idx_statements_account_period" json:"period_start"`
	PeriodEnd   time.Time       `gorm:"not null;index:idx_statements_account_period" json:"period_end"`
	SourcePath  string          `gorm:"not null" json:"source_path"`
	SourceHash  string          `gorm:"not null;index" json:"source_hash"`
	ImportedAt  time.Time       `gorm:"not null" json:"imported_at"`
	Status      StatementStatus `gorm:"not null;default:'imported'" json:"status"`
	// FailureReason holds the parser's human-readable reason when Status
	// is failed.
	FailureReason string `json:"failure_reason,omitempty"`

	// Relationships
	Account      Account       `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:StatementID" json:"transactions,omitempty"`
}

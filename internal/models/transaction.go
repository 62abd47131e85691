package models

import "time"

// Transaction represents a normalized ledger transaction. AmountCents is
// signed: income positive, expenses negative, regardless of the sign
// convention of the source statement. Category and transfer flags are the
// only fields mutated after creation (by the categorizer, the transfer
// reconciler, or a manual override); rows are never deleted except via
// explicit correction.
type Transaction struct {
	Base
	AccountID   string    `gorm:"type:uuid;not null;index:idx_tx_account_date" json:"account_id"`
	StatementID *string   `gorm:"type:uuid" json:"statement_id,omitempty"`
	PostedAt    time.Time `gorm:"not null;index:idx_tx_account_date" json:"posted_at"`
	Description string    `gorm:"not null" json:"description"`
	Merchant    string    `json:"merchant,omitempty"`
	AmountCents int64     `gorm:"type:bigint;not null" json:"amount_cents"`
	Currency    string    `gorm:"not null;default:'USD'" json:"currency"`

	CategoryID *string `gorm:"type:uuid;index" json:"category_id,omitempty"`
	// CategoryManual marks a durable manual override; categorization
	// passes must never reassign such a transaction.
	CategoryManual bool `gorm:"not null;default:false" json:"category_manual"`
	NeedsReview    bool `gorm:"not null;default:false" json:"needs_review"`

	IsTransfer bool `gorm:"not null;default:false" json:"is_transfer"`
	// TransferPeerID links the opposite leg of a reconciled transfer pair.
	TransferPeerID *string `gorm:"type:uuid" json:"transfer_peer_id,omitempty"`
	IsIncome       bool    `gorm:"not null;default:false" json:"is_income"`
	IsExpense      bool    `gorm:"not null;default:false" json:"is_expense"`

	// Hash is the deterministic content hash (account, date, amount,
	// description, provider txn id) used for duplicate detection.
	Hash          string `gorm:"not null;uniqueIndex" json:"hash"`
	ProviderTxnID string `json:"provider_txn_id,omitempty"`
	// RawJSON retains the parser's row verbatim for audit.
	RawJSON string `json:"raw_json,omitempty"`

	// Relationships
	Account   Account            `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Statement *Statement         `gorm:"foreignKey:StatementID" json:"statement,omitempty"`
	Category  *Category          `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Splits    []TransactionSplit `gorm:"foreignKey:TransactionID" json:"splits,omitempty"`
}

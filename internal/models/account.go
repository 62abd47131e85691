package models

import "time"

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeBank       AccountType = "bank"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeBrokerage  AccountType = "brokerage"
	AccountTypeMortgage   AccountType = "mortgage"
	AccountTypeCash       AccountType = "cash"
	AccountTypeOther      AccountType = "other"
)

// Account represents a financial account in the system. Accounts are
// created by explicit setup or provisioned dynamically on the first
// sighting of a new institution + masked-account key. They are never
// deleted; ClosedAt marks end of life.
type Account struct {
	Base
	Type        AccountType `gorm:"not null" json:"type"`
	Name        string      `gorm:"not null" json:"name"`
	Institution string      `gorm:"index:idx_accounts_institution_masked" json:"institution"`
	// MaskedNumber is the provider-masked account number (e.g. "****1234"),
	// used together with Institution as the dynamic provisioning key.
	MaskedNumber string     `gorm:"index:idx_accounts_institution_masked" json:"masked_number"`
	Currency     string     `gorm:"not null;default:'USD'" json:"currency"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`

	// Relationships
	Statements   []Statement   `gorm:"foreignKey:AccountID" json:"statements,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}

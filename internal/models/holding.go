package models

import (
	"time"

	"pfledger/internal/uuid"

	"gorm.io/gorm"
)

// Holding represents a point-in-time position snapshot reported by a
// brokerage statement, not a running ledger. Immutable time-series data:
// no Base embed, no soft deletes.
type Holding struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:uuid;not null;uniqueIndex:idx_holdings_account_symbol_asof" json:"account_id"`
	Symbol    string    `gorm:"not null;uniqueIndex:idx_holdings_account_symbol_asof" json:"symbol"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	AsOf      time.Time `gorm:"not null;uniqueIndex:idx_holdings_account_symbol_asof" json:"as_of"`
	CreatedAt time.Time `json:"created_at"`

	Account Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New()
	}
	return nil
}

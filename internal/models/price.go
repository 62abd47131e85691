package models

import (
	"time"

	"pfledger/internal/uuid"

	"gorm.io/gorm"
)

// Price represents an externally-resolved price for a symbol on a given
// date, unique per (symbol, as-of). Immutable time-series data: no Base
// embed, no soft deletes.
type Price struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Symbol     string    `gorm:"not null;uniqueIndex:idx_prices_symbol_asof" json:"symbol"`
	AsOf       time.Time `gorm:"not null;uniqueIndex:idx_prices_symbol_asof" json:"as_of"`
	PriceCents int64     `gorm:"type:bigint;not null" json:"price_cents"`
	Currency   string    `gorm:"not null;default:'USD'" json:"currency"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *Price) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}

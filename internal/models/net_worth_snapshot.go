package models

import (
	"time"

	"pfledger/internal/uuid"

	"gorm.io/gorm"
)

// NetWorthSnapshot is a derived, recomputable fact: assets minus
// liabilities at a point in time, unique per as-of date and always
// recomputed from source ledger state, never from prior snapshots.
// No Base embed, no soft deletes.
type NetWorthSnapshot struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	AsOf             time.Time `gorm:"not null;uniqueIndex" json:"as_of"`
	AssetsCents      int64     `gorm:"type:bigint;not null" json:"assets_cents"`
	LiabilitiesCents int64     `gorm:"type:bigint;not null" json:"liabilities_cents"`
	NetWorthCents    int64     `gorm:"type:bigint;not null" json:"net_worth_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (n *NetWorthSnapshot) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New()
	}
	return nil
}

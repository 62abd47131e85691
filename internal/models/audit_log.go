package models

import (
	"time"

	"pfledger/internal/uuid"

	"gorm.io/gorm"
)

// AuditLog records explicit user actions that mutate ledger state outside
// the normal batch passes: manual category overrides, override imports,
// rule promotions, and transaction corrections.
type AuditLog struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Action       string    `gorm:"not null" json:"action"`
	ResourceType string    `gorm:"not null" json:"resource_type"`
	ResourceID   string    `gorm:"type:uuid" json:"resource_id"`
	Changes      string    `json:"changes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New()
	}
	return nil
}

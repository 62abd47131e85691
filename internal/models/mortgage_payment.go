package models

import "time"

// MortgagePayment is a lender-reported payment, treated as ground truth
// for the actual ledger where present. The amortization engine derives an
// expected schedule and reconciles it against these rows; dates with no
// row are filled from the schedule.
type MortgagePayment struct {
	Base
	MortgageID          string     `gorm:"type:uuid;not null;uniqueIndex:idx_mortgage_payments_due" json:"mortgage_id"`
	DueDate             time.Time  `gorm:"not null;uniqueIndex:idx_mortgage_payments_due" json:"due_date"`
	PaidDate            *time.Time `json:"paid_date,omitempty"`
	AmountCents         int64      `gorm:"type:bigint;not null" json:"amount_cents"`
	PrincipalCents      int64      `gorm:"type:bigint;not null" json:"principal_cents"`
	InterestCents       int64      `gorm:"type:bigint;not null" json:"interest_cents"`
	EscrowCents         int64      `gorm:"type:bigint;not null;default:0" json:"escrow_cents"`
	ExtraPrincipalCents int64      `gorm:"type:bigint;not null;default:0" json:"extra_principal_cents"`

	Mortgage Mortgage `gorm:"foreignKey:MortgageID" json:"mortgage,omitempty"`
}

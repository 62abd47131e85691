package models

import "time"

// Mortgage holds the immutable terms of a fixed-rate loan tied to a
// mortgage account. The derived schedule and outstanding balance are
// computed from these terms; they are never stored on this row.
type Mortgage struct {
	Base
	AccountID      string  `gorm:"type:uuid;not null;uniqueIndex" json:"account_id"`
	Lender         string  `json:"lender"`
	PrincipalCents int64   `gorm:"type:bigint;not null" json:"principal_cents"`
	// AnnualRatePct is the nominal annual interest rate in percent
	// (e.g. 4.5 for 4.5%).
	AnnualRatePct float64   `gorm:"not null" json:"annual_rate_pct"`
	TermMonths    int       `gorm:"not null" json:"term_months"`
	StartDate     time.Time `gorm:"not null" json:"start_date"`
	// PaymentDay is the day of month each payment falls due.
	PaymentDay int `gorm:"not null;default:1" json:"payment_day"`

	// Relationships
	Account  Account           `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Payments []MortgagePayment `gorm:"foreignKey:MortgageID" json:"payments,omitempty"`
}

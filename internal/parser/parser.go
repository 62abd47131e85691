// Package parser defines the contract consumed from external statement
// parser plugins. A plugin turns provider statement bytes into a
// normalized raw record set; the engine never interprets statement file
// formats itself.
package parser

import (
	"time"

	"pfledger/internal/models"
)

// SignConvention tags how a provider reports amounts. The normalizer
// inverts inverted rows so the ledger always carries income positive and
// expenses negative; it never guesses from content.
type SignConvention string

const (
	// SignStandard means row amounts are already signed with income
	// positive and expenses negative.
	SignStandard SignConvention = "standard"
	// SignInverted means charges are reported positive and credits
	// negative, as most credit-card statements do.
	SignInverted SignConvention = "inverted"
)

// Row is one raw transaction record produced by a plugin.
type Row struct {
	PostedAt      time.Time `validate:"required"`
	Description   string    `validate:"required"`
	Merchant      string
	AmountCents   int64
	Currency      string `validate:"omitempty,iso4217"`
	ProviderTxnID string
}

// HoldingRow is a position snapshot reported on a brokerage statement.
type HoldingRow struct {
	Symbol   string  `validate:"required"`
	Quantity float64 `validate:"required"`
}

// MortgagePaymentRow is a lender-reported payment found on a mortgage
// statement.
type MortgagePaymentRow struct {
	DueDate             time.Time `validate:"required"`
	PaidDate            *time.Time
	AmountCents         int64
	PrincipalCents      int64
	InterestCents       int64
	EscrowCents         int64
	ExtraPrincipalCents int64
}

// Statement is the full parse result for one statement file.
type Statement struct {
	Institution    string
	MaskedNumber   string
	AccountType    models.AccountType `validate:"omitempty,account_type"`
	PeriodStart    time.Time          `validate:"required"`
	PeriodEnd      time.Time          `validate:"required"`
	SignConvention SignConvention     `validate:"required,sign_convention"`
	Currency       string             `validate:"omitempty,iso4217"`

	Rows             []Row
	Holdings         []HoldingRow
	MortgagePayments []MortgagePaymentRow
}

// Plugin is the interface implemented by provider parsers.
type Plugin interface {
	// Name identifies the plugin in logs and failure messages.
	Name() string
	// Parse extracts a normalized raw record set from statement bytes.
	// On failure a plugin may return partial statement metadata alongside
	// the error so the failed import can still be attributed to an
	// account.
	Parse(file []byte) (*Statement, error)
}

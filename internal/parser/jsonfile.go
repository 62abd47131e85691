package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"pfledger/internal/models"
)

// JSONFilePlugin parses statements exported as pre-normalized JSON
// documents. It is the reference plugin: deterministic, format-stable,
// and the shape every provider-specific plugin ultimately reduces to.
type JSONFilePlugin struct{}

// jsonStatement is the on-disk document shape.
type jsonStatement struct {
	Institution    string  `json:"institution"`
	MaskedNumber   string  `json:"masked_number"`
	AccountType    string  `json:"account_type"`
	PeriodStart    string  `json:"period_start"`
	PeriodEnd      string  `json:"period_end"`
	SignConvention string  `json:"sign_convention"`
	Currency       string  `json:"currency"`
	Rows           []struct {
		PostedAt      string  `json:"posted_at"`
		Description   string  `json:"description"`
		Merchant      string  `json:"merchant,omitempty"`
		AmountCents   int64   `json:"amount_cents"`
		Currency      string  `json:"currency,omitempty"`
		ProviderTxnID string  `json:"provider_txn_id,omitempty"`
	} `json:"rows"`
	Holdings []struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
	} `json:"holdings,omitempty"`
	MortgagePayments []struct {
		DueDate             string `json:"due_date"`
		PaidDate            string `json:"paid_date,omitempty"`
		AmountCents         int64  `json:"amount_cents"`
		PrincipalCents      int64  `json:"principal_cents"`
		InterestCents       int64  `json:"interest_cents"`
		EscrowCents         int64  `json:"escrow_cents,omitempty"`
		ExtraPrincipalCents int64  `json:"extra_principal_cents,omitempty"`
	} `json:"mortgage_payments,omitempty"`
}

// Name identifies the plugin.
func (p *JSONFilePlugin) Name() string { return "jsonfile" }

// Parse decodes a pre-normalized JSON statement document.
func (p *JSONFilePlugin) Parse(file []byte) (*Statement, error) {
	var doc jsonStatement
	if err := json.Unmarshal(file, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: invalid document: %w", err)
	}

	periodStart, err := parseDate(doc.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: period_start: %w", err)
	}
	periodEnd, err := parseDate(doc.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: period_end: %w", err)
	}

	stmt := &Statement{
		Institution:    doc.Institution,
		MaskedNumber:   doc.MaskedNumber,
		AccountType:    models.AccountType(doc.AccountType),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		SignConvention: SignConvention(doc.SignConvention),
		Currency:       doc.Currency,
	}
	if stmt.SignConvention == "" {
		stmt.SignConvention = SignStandard
	}

	for i, r := range doc.Rows {
		postedAt, err := parseDate(r.PostedAt)
		if err != nil {
			// Account metadata is already extracted; return it with the
			// error so the failed statement can be attributed.
			return stmt, fmt.Errorf("jsonfile: row %d: posted_at: %w", i, err)
		}
		stmt.Rows = append(stmt.Rows, Row{
			PostedAt:      postedAt,
			Description:   r.Description,
			Merchant:      r.Merchant,
			AmountCents:   r.AmountCents,
			Currency:      r.Currency,
			ProviderTxnID: r.ProviderTxnID,
		})
	}

	for _, h := range doc.Holdings {
		stmt.Holdings = append(stmt.Holdings, HoldingRow{Symbol: h.Symbol, Quantity: h.Quantity})
	}

	for i, mp := range doc.MortgagePayments {
		dueDate, err := parseDate(mp.DueDate)
		if err != nil {
			return stmt, fmt.Errorf("jsonfile: mortgage payment %d: due_date: %w", i, err)
		}
		row := MortgagePaymentRow{
			DueDate:             dueDate,
			AmountCents:         mp.AmountCents,
			PrincipalCents:      mp.PrincipalCents,
			InterestCents:       mp.InterestCents,
			EscrowCents:         mp.EscrowCents,
			ExtraPrincipalCents: mp.ExtraPrincipalCents,
		}
		if mp.PaidDate != "" {
			paid, err := parseDate(mp.PaidDate)
			if err != nil {
				return stmt, fmt.Errorf("jsonfile: mortgage payment %d: paid_date: %w", i, err)
			}
			row.PaidDate = &paid
		}
		stmt.MortgagePayments = append(stmt.MortgagePayments, row)
	}

	return stmt, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return models.DateOnly(t), nil
}

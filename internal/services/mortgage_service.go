package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/logger"
	"pfledger/internal/models"
	"pfledger/internal/parser"
)

// mortgageService computes expected principal/interest splits per payment
// via standard fixed-rate amortization, maintains the derived outstanding
// balance, and reconciles against lender-reported payments. Lender rows
// are ground truth for the actual ledger; the derived schedule fills gaps
// and projects the balance forward.
type mortgageService struct {
	db             *gorm.DB
	toleranceCents int64
}

// NewMortgageService creates a new MortgageServicer with the configured
// per-component reconciliation tolerance.
func NewMortgageService(db *gorm.DB, toleranceCents int64) MortgageServicer {
	return &mortgageService{db: db, toleranceCents: toleranceCents}
}

// CreateMortgage records immutable loan terms for a mortgage account.
func (s *mortgageService) CreateMortgage(accountID, lender string, principalCents int64, annualRatePct float64, termMonths int, startDate time.Time, paymentDay int) (*models.Mortgage, error) {
	if principalCents <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "principal must be greater than zero")
	}
	if annualRatePct < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "annual rate cannot be negative")
	}
	if termMonths <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "term must be at least one month")
	}
	if paymentDay < 1 || paymentDay > 28 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payment day must be between 1 and 28")
	}

	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	mortgage := &models.Mortgage{
		AccountID:      accountID,
		Lender:         lender,
		PrincipalCents: principalCents,
		AnnualRatePct:  annualRatePct,
		TermMonths:     termMonths,
		StartDate:      models.DateOnly(startDate),
		PaymentDay:     paymentDay,
	}
	if err := s.db.Create(mortgage).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return mortgage, nil
}

// GetMortgageByAccount returns the mortgage tied to an account.
func (s *mortgageService) GetMortgageByAccount(accountID string) (*models.Mortgage, error) {
	var mortgage models.Mortgage
	if err := s.db.Where("account_id = ?", accountID).First(&mortgage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMortgageNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &mortgage, nil
}

// monthlyRate returns the periodic rate: annual rate / 12.
func monthlyRate(annualRatePct float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRatePct).Div(decimal.NewFromInt(1200))
}

// annuityPaymentCents computes the fixed scheduled payment for a loan of
// principalCents at the given periodic rate over n periods:
// P * r * (1+r)^n / ((1+r)^n - 1), rounded to the cent.
func annuityPaymentCents(principalCents int64, rate decimal.Decimal, n int) decimal.Decimal {
	principal := decimal.NewFromInt(principalCents)
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n))).Round(0)
	}
	pow := rate.Add(decimal.NewFromInt(1)).Pow(decimal.NewFromInt(int64(n)))
	return principal.Mul(rate).Mul(pow).Div(pow.Sub(decimal.NewFromInt(1))).Round(0)
}

// ScheduleIterator produces the expected amortization schedule lazily, one
// period at a time. It is restartable from any known outstanding balance.
type ScheduleIterator struct {
	mortgage *models.Mortgage
	rate     decimal.Decimal
	payment  decimal.Decimal
	balance  decimal.Decimal
	period   int
}

// NewScheduleIterator starts the schedule at origination.
func NewScheduleIterator(m *models.Mortgage) *ScheduleIterator {
	return NewScheduleIteratorFrom(m, 0, m.PrincipalCents)
}

// NewScheduleIteratorFrom restarts the schedule after the given period
// with the given outstanding balance, for when actual statements only
// report a subset of periods.
func NewScheduleIteratorFrom(m *models.Mortgage, afterPeriod int, balanceCents int64) *ScheduleIterator {
	rate := monthlyRate(m.AnnualRatePct)
	return &ScheduleIterator{
		mortgage: m,
		rate:     rate,
		payment:  annuityPaymentCents(m.PrincipalCents, rate, m.TermMonths),
		balance:  decimal.NewFromInt(balanceCents),
		period:   afterPeriod,
	}
}

// SetBalanceCents overrides the outstanding balance, letting the caller
// apply a lender-reported figure before continuing the schedule.
func (it *ScheduleIterator) SetBalanceCents(balanceCents int64) {
	it.balance = decimal.NewFromInt(balanceCents)
}

// BalanceCents returns the current outstanding balance.
func (it *ScheduleIterator) BalanceCents() int64 {
	return it.balance.IntPart()
}

// Next returns the next expected payment, or false once the loan is paid
// off or the term is exhausted.
func (it *ScheduleIterator) Next() (ScheduledPayment, bool) {
	if it.period >= it.mortgage.TermMonths || !it.balance.IsPositive() {
		return ScheduledPayment{}, false
	}
	it.period++

	interest := it.balance.Mul(it.rate).Round(0)
	principal := it.payment.Sub(interest)
	payment := it.payment
	if principal.GreaterThan(it.balance) || it.period == it.mortgage.TermMonths {
		// Final period: pay off the remaining balance exactly.
		principal = it.balance
		payment = principal.Add(interest)
	}
	it.balance = it.balance.Sub(principal)

	return ScheduledPayment{
		Period:         it.period,
		DueDate:        dueDate(it.mortgage, it.period),
		PaymentCents:   payment.IntPart(),
		PrincipalCents: principal.IntPart(),
		InterestCents:  interest.IntPart(),
		BalanceCents:   it.balance.IntPart(),
	}, true
}

// dueDate returns the due date of the given period: period months after
// the start date, on the mortgage's payment day.
func dueDate(m *models.Mortgage, period int) time.Time {
	base := time.Date(m.StartDate.Year(), m.StartDate.Month(), m.PaymentDay, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, period, 0)
}

// Schedule returns the first `periods` expected payments (the full term if
// periods <= 0).
func (s *mortgageService) Schedule(mortgageID string, periods int) ([]ScheduledPayment, error) {
	mortgage, err := s.getMortgage(mortgageID)
	if err != nil {
		return nil, err
	}
	if periods <= 0 || periods > mortgage.TermMonths {
		periods = mortgage.TermMonths
	}

	it := NewScheduleIterator(mortgage)
	schedule := make([]ScheduledPayment, 0, periods)
	for len(schedule) < periods {
		p, ok := it.Next()
		if !ok {
			break
		}
		schedule = append(schedule, p)
	}
	return schedule, nil
}

// RecordPayment upserts a lender-reported payment keyed by due date.
func (s *mortgageService) RecordPayment(mortgageID string, row parser.MortgagePaymentRow) (*models.MortgagePayment, error) {
	if _, err := s.getMortgage(mortgageID); err != nil {
		return nil, err
	}

	payment := &models.MortgagePayment{
		MortgageID:          mortgageID,
		DueDate:             models.DateOnly(row.DueDate),
		PaidDate:            row.PaidDate,
		AmountCents:         row.AmountCents,
		PrincipalCents:      row.PrincipalCents,
		InterestCents:       row.InterestCents,
		EscrowCents:         row.EscrowCents,
		ExtraPrincipalCents: row.ExtraPrincipalCents,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mortgage_id"}, {Name: "due_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"paid_date", "amount_cents", "principal_cents", "interest_cents", "escrow_cents", "extra_principal_cents"}),
	}).Create(payment).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return payment, nil
}

// Reconcile compares the derived expected principal/interest split for
// each due date against the lender-reported row, if present. Mismatches
// beyond tolerance are reported, never fatal; reported figures still win
// for the balance walk.
func (s *mortgageService) Reconcile(mortgageID string) ([]Discrepancy, error) {
	mortgage, err := s.getMortgage(mortgageID)
	if err != nil {
		return nil, err
	}
	reported, err := s.paymentsByDueDate(mortgageID)
	if err != nil {
		return nil, err
	}

	today := models.DateOnly(time.Now())
	var discrepancies []Discrepancy

	it := NewScheduleIterator(mortgage)
	for {
		expected, ok := it.Next()
		if !ok || expected.DueDate.After(today) {
			break
		}
		row, has := reported[expected.DueDate]
		if !has {
			// Gap: the schedule's own figures already advanced the balance.
			continue
		}

		if delta := absInt64(expected.InterestCents - row.InterestCents); delta > s.toleranceCents {
			discrepancies = append(discrepancies, Discrepancy{
				DueDate:       expected.DueDate,
				Field:         "interest",
				ExpectedCents: expected.InterestCents,
				ReportedCents: row.InterestCents,
				DeltaCents:    delta,
			})
		}
		if delta := absInt64(expected.PrincipalCents - row.PrincipalCents); delta > s.toleranceCents {
			discrepancies = append(discrepancies, Discrepancy{
				DueDate:       expected.DueDate,
				Field:         "principal",
				ExpectedCents: expected.PrincipalCents,
				ReportedCents: row.PrincipalCents,
				DeltaCents:    delta,
			})
		}

		// Ground truth: rewind the expected principal and apply the
		// reported one (plus any extra principal) instead.
		balance := expected.BalanceCents + expected.PrincipalCents - row.PrincipalCents - row.ExtraPrincipalCents
		if balance < 0 {
			balance = 0
		}
		it.SetBalanceCents(balance)
	}

	if len(discrepancies) > 0 {
		logger.Get().Warnw("mortgage schedule discrepancies found",
			"mortgage_id", mortgageID,
			"count", len(discrepancies),
		)
	}
	return discrepancies, nil
}

// ProjectedBalance walks the schedule through asOf, applying
// lender-reported principal where present and scheduled principal
// elsewhere, and returns the outstanding balance for net-worth
// computation.
func (s *mortgageService) ProjectedBalance(mortgageID string, asOf time.Time) (int64, error) {
	mortgage, err := s.getMortgage(mortgageID)
	if err != nil {
		return 0, err
	}
	reported, err := s.paymentsByDueDate(mortgageID)
	if err != nil {
		return 0, err
	}

	asOf = models.DateOnly(asOf)
	it := NewScheduleIterator(mortgage)
	balance := mortgage.PrincipalCents
	for {
		expected, ok := it.Next()
		if !ok || expected.DueDate.After(asOf) {
			break
		}
		if row, has := reported[expected.DueDate]; has {
			balance = expected.BalanceCents + expected.PrincipalCents - row.PrincipalCents - row.ExtraPrincipalCents
			if balance < 0 {
				balance = 0
			}
			it.SetBalanceCents(balance)
		} else {
			balance = expected.BalanceCents
		}
	}
	return balance, nil
}

func (s *mortgageService) getMortgage(mortgageID string) (*models.Mortgage, error) {
	var mortgage models.Mortgage
	if err := s.db.Where("id = ?", mortgageID).First(&mortgage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMortgageNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &mortgage, nil
}

func (s *mortgageService) paymentsByDueDate(mortgageID string) (map[time.Time]models.MortgagePayment, error) {
	var payments []models.MortgagePayment
	if err := s.db.Where("mortgage_id = ?", mortgageID).Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byDue := make(map[time.Time]models.MortgagePayment, len(payments))
	for _, p := range payments {
		byDue[models.DateOnly(p.DueDate)] = p
	}
	return byDue, nil
}

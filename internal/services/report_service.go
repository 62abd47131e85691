package services

import (
	"time"

	"github.com/Rhymond/go-money"
	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/models"
)

// reportService is the read-only query surface other subsystems consume:
// monthly/YTD category totals, net-worth time series, and mortgage status.
// It never writes report artifacts.
type reportService struct {
	db           *gorm.DB
	aggregation  AggregationServicer
	mortgage     MortgageServicer
	baseCurrency string
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, aggregation AggregationServicer, mortgage MortgageServicer, baseCurrency string) ReportServicer {
	return &reportService{db: db, aggregation: aggregation, mortgage: mortgage, baseCurrency: baseCurrency}
}

// MonthlyReport returns the per-category totals for one month with
// display formatting in the base currency.
func (s *reportService) MonthlyReport(year int, month time.Month) (*MonthlyReport, error) {
	totals, err := s.aggregation.MonthlyAggregate(year, month)
	if err != nil {
		return nil, err
	}
	return s.buildReport(year, month, totals), nil
}

// YTDReport returns the year-to-date totals through the given month.
func (s *reportService) YTDReport(year int, through time.Month) (*MonthlyReport, error) {
	totals, err := s.aggregation.YTDAggregate(year, through)
	if err != nil {
		return nil, err
	}
	return s.buildReport(year, through, totals), nil
}

func (s *reportService) buildReport(year int, month time.Month, totals []CategoryTotal) *MonthlyReport {
	report := &MonthlyReport{
		Year:      year,
		Month:     month,
		Totals:    totals,
		Formatted: make(map[string]string, len(totals)),
	}
	for _, t := range totals {
		report.Formatted[t.CategoryName] = money.New(t.TotalCents, s.baseCurrency).Display()
		if t.TotalCents > 0 {
			report.IncomeCents += t.TotalCents
		} else {
			report.ExpenseCents += t.TotalCents
		}
	}
	report.NetCents = report.IncomeCents + report.ExpenseCents
	return report
}

// NetWorthSeries returns snapshots in [from, to], oldest first.
func (s *reportService) NetWorthSeries(from, to time.Time) ([]models.NetWorthSnapshot, error) {
	var snapshots []models.NetWorthSnapshot
	if err := s.db.Where("as_of >= ? AND as_of <= ?", models.DateOnly(from), models.DateOnly(to)).
		Order("as_of ASC").
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snapshots, nil
}

// MortgageStatus returns the current state of one mortgage: projected
// balance, next due date, and reconciliation discrepancy count.
func (s *reportService) MortgageStatus(mortgageID string) (*MortgageStatus, error) {
	var mortgage models.Mortgage
	if err := s.db.Where("id = ?", mortgageID).First(&mortgage).Error; err != nil {
		return nil, apperrors.ErrMortgageNotFound
	}

	today := models.DateOnly(time.Now())
	balance, err := s.mortgage.ProjectedBalance(mortgageID, today)
	if err != nil {
		return nil, err
	}
	discrepancies, err := s.mortgage.Reconcile(mortgageID)
	if err != nil {
		return nil, err
	}

	var reported int64
	if err := s.db.Model(&models.MortgagePayment{}).Where("mortgage_id = ?", mortgageID).Count(&reported).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &MortgageStatus{
		MortgageID:       mortgage.ID,
		Lender:           mortgage.Lender,
		BalanceCents:     balance,
		BalanceFormatted: money.New(balance, s.baseCurrency).Display(),
		NextDueDate:      nextDueDate(&mortgage, today),
		PaymentsReported: int(reported),
		Discrepancies:    len(discrepancies),
	}, nil
}

// nextDueDate returns the first scheduled due date after today.
func nextDueDate(m *models.Mortgage, today time.Time) time.Time {
	for period := 1; period <= m.TermMonths; period++ {
		due := dueDate(m, period)
		if due.After(today) {
			return due
		}
	}
	return dueDate(m, m.TermMonths)
}

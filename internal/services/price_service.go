package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/models"
)

// priceService records externally-resolved prices. The engine never
// fetches prices itself; any feed is an injected input that lands here.
type priceService struct {
	db *gorm.DB
}

// NewPriceService creates a new PriceServicer.
func NewPriceService(db *gorm.DB) PriceServicer {
	return &priceService{db: db}
}

// RecordPrice upserts a price keyed by (symbol, as-of date).
func (s *priceService) RecordPrice(symbol string, asOf time.Time, priceCents int64, currency, source string) (*models.Price, error) {
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}
	if priceCents < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price cannot be negative")
	}
	if currency == "" {
		currency = "USD"
	}

	price := &models.Price{
		Symbol:     symbol,
		AsOf:       models.DateOnly(asOf),
		PriceCents: priceCents,
		Currency:   currency,
		Source:     source,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "as_of"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_cents", "currency", "source"}),
	}).Create(price).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return price, nil
}

// LatestPriceAsOf returns the most recent price for a symbol at or before
// the given date.
func (s *priceService) LatestPriceAsOf(symbol string, asOf time.Time) (*models.Price, error) {
	var price models.Price
	err := s.db.Where("symbol = ? AND as_of <= ?", symbol, models.DateOnly(asOf)).
		Order("as_of DESC").
		First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPriceNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &price, nil
}

package services

import (
	"errors"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/logger"
	"pfledger/internal/models"
)

// aggregationService computes monthly/YTD rollups and net-worth snapshots
// from source ledger state. Every pass is a pure function of the current
// ledger, safe to cancel and rerun; snapshots are never derived from prior
// snapshots.
type aggregationService struct {
	db       *gorm.DB
	mortgage MortgageServicer
	prices   PriceServicer
}

// NewAggregationService creates a new AggregationServicer.
func NewAggregationService(db *gorm.DB, mortgage MortgageServicer, prices PriceServicer) AggregationServicer {
	return &aggregationService{db: db, mortgage: mortgage, prices: prices}
}

// MonthlyAggregate sums transaction (and split) amounts grouped by
// category within the month, excluding transfers.
func (s *aggregationService) MonthlyAggregate(year int, month time.Month) ([]CategoryTotal, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.aggregateRange(from, from.AddDate(0, 1, 0))
}

// YTDAggregate sums January through the end of the given month.
func (s *aggregationService) YTDAggregate(year int, through time.Month) ([]CategoryTotal, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, through, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return s.aggregateRange(from, to)
}

// aggregateRange totals amounts per category for posted dates in
// [from, to). Where a transaction is split, each split's amount counts
// toward the split's category instead of the transaction's.
func (s *aggregationService) aggregateRange(from, to time.Time) ([]CategoryTotal, error) {
	var transactions []models.Transaction
	if err := s.db.Preload("Splits").
		Where("is_transfer = ? AND posted_at >= ? AND posted_at < ?", false, from, to).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := make(map[string]int64)
	for i := range transactions {
		txn := &transactions[i]
		if len(txn.Splits) > 0 {
			for _, split := range txn.Splits {
				totals[split.CategoryID] += split.AmountCents
			}
			continue
		}
		categoryID := ""
		if txn.CategoryID != nil {
			categoryID = *txn.CategoryID
		}
		totals[categoryID] += txn.AmountCents
	}

	names, err := s.categoryNames(totals)
	if err != nil {
		return nil, err
	}

	out := make([]CategoryTotal, 0, len(totals))
	for id, total := range totals {
		name := names[id]
		if name == "" {
			name = models.UncategorizedName
		}
		out = append(out, CategoryTotal{CategoryID: id, CategoryName: name, TotalCents: total})
	}
	// Deterministic output order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *aggregationService) categoryNames(totals map[string]int64) (map[string]string, error) {
	ids := make([]string, 0, len(totals))
	for id := range totals {
		if id != "" {
			ids = append(ids, id)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var categories []models.Category
	if err := s.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// ComputeNetWorthSnapshot computes assets, liabilities, and net worth as
// of a date and upserts the snapshot keyed by that date. The computation
// runs twice; any difference means the pass is non-deterministic and it
// halts with SnapshotRecomputeMismatch rather than persist.
func (s *aggregationService) ComputeNetWorthSnapshot(asOf time.Time) (*models.NetWorthSnapshot, error) {
	asOf = models.DateOnly(asOf)

	first, err := s.computeSnapshot(asOf)
	if err != nil {
		return nil, err
	}
	second, err := s.computeSnapshot(asOf)
	if err != nil {
		return nil, err
	}
	if first.AssetsCents != second.AssetsCents ||
		first.LiabilitiesCents != second.LiabilitiesCents ||
		first.NetWorthCents != second.NetWorthCents {
		return nil, apperrors.ErrSnapshotRecomputeMismatch
	}

	// Upsert keyed by as-of date.
	var existing models.NetWorthSnapshot
	err = s.db.Where("as_of = ?", asOf).First(&existing).Error
	switch {
	case err == nil:
		if err := s.db.Model(&existing).Updates(map[string]any{
			"assets_cents":      first.AssetsCents,
			"liabilities_cents": first.LiabilitiesCents,
			"net_worth_cents":   first.NetWorthCents,
		}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		existing.AssetsCents = first.AssetsCents
		existing.LiabilitiesCents = first.LiabilitiesCents
		existing.NetWorthCents = first.NetWorthCents
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(first).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return first, nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// computeSnapshot derives the snapshot from source ledger state: cash-like
// account balances plus holdings at latest price, minus projected mortgage
// balances and other liability balances.
func (s *aggregationService) computeSnapshot(asOf time.Time) (*models.NetWorthSnapshot, error) {
	var accounts []models.Account
	if err := s.db.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets, liabilities int64
	for i := range accounts {
		account := &accounts[i]
		switch account.Type {
		case models.AccountTypeMortgage:
			mortgage, err := s.mortgage.GetMortgageByAccount(account.ID)
			if err != nil {
				if errors.Is(err, apperrors.ErrMortgageNotFound) {
					logger.Get().Warnw("mortgage account has no mortgage terms; excluded from net worth",
						"account_id", account.ID)
					continue
				}
				return nil, err
			}
			balance, err := s.mortgage.ProjectedBalance(mortgage.ID, asOf)
			if err != nil {
				return nil, err
			}
			liabilities += balance
		case models.AccountTypeBrokerage:
			value, err := s.holdingsValue(account.ID, asOf)
			if err != nil {
				return nil, err
			}
			cash, err := s.transactionBalance(account.ID, asOf)
			if err != nil {
				return nil, err
			}
			assets += value + cash
		default:
			balance, err := s.transactionBalance(account.ID, asOf)
			if err != nil {
				return nil, err
			}
			if balance >= 0 {
				assets += balance
			} else {
				liabilities += -balance
			}
		}
	}

	return &models.NetWorthSnapshot{
		AsOf:             asOf,
		AssetsCents:      assets,
		LiabilitiesCents: liabilities,
		NetWorthCents:    assets - liabilities,
	}, nil
}

// transactionBalance is the signed sum of an account's transactions
// posted at or before asOf. Transfers are included: they move money
// between the user's accounts and belong in balances even though they are
// excluded from income/expense totals.
func (s *aggregationService) transactionBalance(accountID string, asOf time.Time) (int64, error) {
	var balance int64
	if err := s.db.Model(&models.Transaction{}).
		Where("account_id = ? AND posted_at <= ?", accountID, asOf).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&balance).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return balance, nil
}

// holdingsValue values the latest holding snapshot per symbol at or before
// asOf using the latest price at or before asOf. Symbols with no price
// are skipped with a warning rather than failing the pass.
func (s *aggregationService) holdingsValue(accountID string, asOf time.Time) (int64, error) {
	var holdings []models.Holding
	if err := s.db.Where("account_id = ? AND as_of <= ?", accountID, asOf).
		Order("symbol ASC, as_of ASC").
		Find(&holdings).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Later as-of rows overwrite earlier ones per symbol.
	latest := make(map[string]models.Holding)
	for _, h := range holdings {
		latest[h.Symbol] = h
	}

	symbols := make([]string, 0, len(latest))
	for sym := range latest {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var total int64
	for _, sym := range symbols {
		h := latest[sym]
		price, err := s.prices.LatestPriceAsOf(sym, asOf)
		if err != nil {
			if errors.Is(err, apperrors.ErrPriceNotFound) {
				logger.Get().Warnw("no price for holding; excluded from net worth",
					"account_id", accountID, "symbol", sym)
				continue
			}
			return 0, err
		}
		total += int64(math.Round(h.Quantity * float64(price.PriceCents)))
	}
	return total, nil
}

package services

import (
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/logger"
	"pfledger/internal/models"
)

// transferService pairs offsetting transactions across accounts and marks
// them as transfers. Credit-card payments and brokerage cash sweeps are
// ordinary instances of the same window/magnitude heuristic, not separate
// code paths.
type transferService struct {
	db             *gorm.DB
	windowDays     int
	toleranceCents int64
}

// NewTransferService creates a new TransferServicer with the configured
// date window and amount tolerance.
func NewTransferService(db *gorm.DB, windowDays int, toleranceCents int64) TransferServicer {
	return &transferService{db: db, windowDays: windowDays, toleranceCents: toleranceCents}
}

// Reconcile runs one pairing pass. Already-paired legs are left exactly as
// they are, so re-running over a reconciled ledger is a no-op: it neither
// unmarks pairs nor matches a paired leg to a third transaction.
func (s *transferService) Reconcile() (*ReconcileReport, error) {
	var existingMarked int64
	if err := s.db.Model(&models.Transaction{}).
		Where("is_transfer = ? AND transfer_peer_id IS NOT NULL", true).
		Count(&existingMarked).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var candidates []models.Transaction
	if err := s.db.Where("is_transfer = ? AND transfer_peer_id IS NULL", false).
		Order("posted_at ASC, id ASC").
		Find(&candidates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &ReconcileReport{
		Examined:      len(candidates),
		ExistingPairs: int(existingMarked / 2),
	}

	pairs := s.pair(candidates)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range pairs {
			if err := tx.Model(&models.Transaction{}).Where("id = ?", p[0].ID).Updates(map[string]any{
				"is_transfer":      true,
				"transfer_peer_id": p[1].ID,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := tx.Model(&models.Transaction{}).Where("id = ?", p[1].ID).Updates(map[string]any{
				"is_transfer":      true,
				"transfer_peer_id": p[0].ID,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			report.NewPairs++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("transfer reconciliation pass complete",
		"examined", report.Examined,
		"new_pairs", report.NewPairs,
		"existing_pairs", report.ExistingPairs,
	)
	return report, nil
}

// pair computes the deterministic pairing over unmatched candidates.
// Candidates are walked in (posted date, id) order; for each unpaired
// transaction the best counterpart is the one with the smallest date
// delta, then smallest amount delta, then lowest id. A transaction joins
// at most one pair; in a transfer with more than two legs the leftover
// legs simply stay unmatched.
func (s *transferService) pair(candidates []models.Transaction) [][2]*models.Transaction {
	paired := make(map[string]bool, len(candidates))
	var pairs [][2]*models.Transaction

	for i := range candidates {
		a := &candidates[i]
		if paired[a.ID] {
			continue
		}

		var best *models.Transaction
		var bestDate, bestAmount int64
		for j := range candidates {
			b := &candidates[j]
			if i == j || paired[b.ID] {
				continue
			}
			if !s.offsetting(a, b) {
				continue
			}
			dateDelta := absInt64(int64(models.DateOnly(a.PostedAt).Sub(models.DateOnly(b.PostedAt)) / (24 * time.Hour)))
			amountDelta := absInt64(absInt64(a.AmountCents) - absInt64(b.AmountCents))
			if best == nil ||
				dateDelta < bestDate ||
				(dateDelta == bestDate && amountDelta < bestAmount) ||
				(dateDelta == bestDate && amountDelta == bestAmount && b.ID < best.ID) {
				best = b
				bestDate = dateDelta
				bestAmount = amountDelta
			}
		}
		if best == nil {
			continue
		}

		paired[a.ID] = true
		paired[best.ID] = true
		pairs = append(pairs, [2]*models.Transaction{a, best})
	}

	// Stable output order for logging and tests.
	sort.Slice(pairs, func(x, y int) bool { return pairs[x][0].ID < pairs[y][0].ID })
	return pairs
}

// offsetting reports whether two transactions are a plausible transfer:
// distinct accounts, opposite signs, amount difference within tolerance,
// posted dates within the window.
func (s *transferService) offsetting(a, b *models.Transaction) bool {
	if a.AccountID == b.AccountID {
		return false
	}
	if a.AmountCents == 0 || b.AmountCents == 0 {
		return false
	}
	if (a.AmountCents > 0) == (b.AmountCents > 0) {
		return false
	}
	if absInt64(absInt64(a.AmountCents)-absInt64(b.AmountCents)) > s.toleranceCents {
		return false
	}
	dateDelta := models.DateOnly(a.PostedAt).Sub(models.DateOnly(b.PostedAt))
	if dateDelta < 0 {
		dateDelta = -dateDelta
	}
	return dateDelta <= time.Duration(s.windowDays)*24*time.Hour
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

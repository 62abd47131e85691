package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/models"
	"pfledger/internal/pagination"
)

// transactionService provides transaction queries, split management, and
// explicit corrections. Imports create transactions; nothing here does.
type transactionService struct {
	db    *gorm.DB
	audit AuditServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, audit AuditServicer) TransactionServicer {
	return &transactionService{db: db, audit: audit}
}

// ListTransactions retrieves a paginated, filtered list of transactions.
func (s *transactionService) ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{})
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("posted_at DESC, id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.FromDate != nil {
		q = q.Where("posted_at >= ?", models.DateOnly(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("posted_at <= ?", models.DateOnly(*f.ToDate))
	}
	if f.IsTransfer != nil {
		q = q.Where("is_transfer = ?", *f.IsTransfer)
	}
	if f.NeedsReview != nil {
		q = q.Where("needs_review = ?", *f.NeedsReview)
	}
	return q
}

// GetTransactionByID retrieves a transaction with its splits.
func (s *transactionService) GetTransactionByID(id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Splits").Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// SetSplits replaces a transaction's splits. The splits must sum exactly
// to the transaction amount; a mismatch is rejected at write time. An
// empty slice removes all splits (single category via the transaction's
// own CategoryID again).
func (s *transactionService) SetSplits(transactionID string, splits []SplitInput) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}

	if len(splits) > 0 {
		var sum int64
		for _, sp := range splits {
			sum += sp.AmountCents
		}
		if sum != transaction.AmountCents {
			return nil, apperrors.ErrSplitSumMismatch
		}
		for _, sp := range splits {
			var count int64
			if err := s.db.Model(&models.Category{}).Where("id = ?", sp.CategoryID).Count(&count).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count == 0 {
				return nil, apperrors.ErrCategoryNotFound
			}
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("transaction_id = ?", transactionID).Delete(&models.TransactionSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, sp := range splits {
			split := &models.TransactionSplit{
				TransactionID: transactionID,
				AmountCents:   sp.AmountCents,
				CategoryID:    sp.CategoryID,
			}
			if err := tx.Create(split).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransactionByID(transactionID)
}

// CorrectTransaction removes a transaction via explicit correction (soft
// delete). The content hash stays on the row, so re-importing identical
// content is still rejected as a duplicate.
func (s *transactionService) CorrectTransaction(transactionID, reason string) error {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transaction_id = ?", transactionID).Delete(&models.TransactionSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Unlink the transfer peer, if any, so it can be re-reconciled.
		if transaction.TransferPeerID != nil {
			if err := tx.Model(&models.Transaction{}).Where("id = ?", *transaction.TransferPeerID).Updates(map[string]any{
				"is_transfer":      false,
				"transfer_peer_id": nil,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if err := tx.Delete(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log("transaction_corrected", "transaction", transactionID, map[string]any{
		"reason": reason,
	})
	return nil
}

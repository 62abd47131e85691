package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/models"
	"pfledger/internal/parser"
)

// normalizerService converts raw parser rows into the canonical
// transaction shape: signed amount (income positive), calendar-day posted
// date, deterministic content hash, raw payload retained for audit.
type normalizerService struct{}

// NewNormalizerService creates a new NormalizerServicer.
func NewNormalizerService() NormalizerServicer {
	return &normalizerService{}
}

// Normalize creates a canonical transaction from a raw row inside the
// caller's database transaction. The sign convention comes from the
// parser's statement metadata, never from guessing. Returns
// ErrDuplicateTransaction when an identical transaction already exists.
func (s *normalizerService) Normalize(tx *gorm.DB, row parser.Row, stmt *parser.Statement, account *models.Account, statement *models.Statement) (*models.Transaction, error) {
	if row.Description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction row has no description")
	}
	if row.PostedAt.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction row has no posted date")
	}

	amount := row.AmountCents
	if stmt.SignConvention == parser.SignInverted {
		amount = -amount
	}

	currency := row.Currency
	if currency == "" {
		currency = stmt.Currency
	}
	if currency == "" {
		currency = account.Currency
	}

	postedAt := models.DateOnly(row.PostedAt)
	hash := s.ContentHash(account.ID, postedAt, amount, row.Description, row.ProviderTxnID)

	// Unscoped: a corrected (soft-deleted) transaction still blocks
	// re-insertion of identical content.
	var count int64
	if err := tx.Unscoped().Model(&models.Transaction{}).Where("hash = ?", hash).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateTransaction
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	transaction := &models.Transaction{
		AccountID:     account.ID,
		StatementID:   &statement.ID,
		PostedAt:      postedAt,
		Description:   row.Description,
		Merchant:      row.Merchant,
		AmountCents:   amount,
		Currency:      currency,
		IsIncome:      amount > 0,
		IsExpense:     amount < 0,
		Hash:          hash,
		ProviderTxnID: row.ProviderTxnID,
		RawJSON:       string(raw),
	}
	if err := tx.Create(transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateTransaction
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transaction, nil
}

// ContentHash computes the deterministic duplicate-detection hash from
// account id, posted date, signed amount, description, and, where
// available, the provider's transaction id.
func (s *normalizerService) ContentHash(accountID string, postedAt time.Time, amountCents int64, description, providerTxnID string) string {
	payload := fmt.Sprintf("%s|%s|%d|%s|%s",
		accountID,
		postedAt.Format("2006-01-02"),
		amountCents,
		description,
		providerTxnID,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

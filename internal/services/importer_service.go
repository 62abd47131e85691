package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/logger"
	"pfledger/internal/models"
	"pfledger/internal/parser"
	"pfledger/internal/validator"
)

// importerService deduplicates and registers statements, resolves or
// provisions the owning account, and drives normalization. Each import is
// one atomic unit: account provisioning, the statement row, and all
// resulting transaction inserts commit or roll back together.
type importerService struct {
	db         *gorm.DB
	normalizer NormalizerServicer
	audit      AuditServicer
}

// NewImporterService creates a new ImporterServicer.
func NewImporterService(db *gorm.DB, normalizer NormalizerServicer, audit AuditServicer) ImporterServicer {
	return &importerService{db: db, normalizer: normalizer, audit: audit}
}

// Import registers one statement file. It fails with DuplicateStatement if
// the file's content hash or its (account, period) was already imported,
// unless opts.Override is set. On parser failure the statement is
// persisted with status failed and no transactions are created.
func (s *importerService) Import(fileBytes []byte, sourcePath string, plugin parser.Plugin, opts ImportOptions) (*StatementResult, error) {
	result := &StatementResult{SourcePath: sourcePath}

	fileHash := contentHash(fileBytes)
	if !opts.Override {
		var count int64
		if err := s.db.Model(&models.Statement{}).Where("source_hash = ?", fileHash).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			result.Status = models.StatementStatusFailed
			result.Err = apperrors.ErrDuplicateStatement
			return result, apperrors.ErrDuplicateStatement
		}
	} else {
		s.audit.Log("statement_override_import", "statement", "", map[string]any{
			"source_path": sourcePath,
			"source_hash": fileHash,
		})
	}

	parsed, parseErr := plugin.Parse(fileBytes)
	if parseErr != nil {
		return s.recordFailure(result, parsed, sourcePath, fileHash, opts, parseErr.Error())
	}
	if err := validator.Struct(parsed); err != nil {
		return s.recordFailure(result, parsed, sourcePath, fileHash, opts, "invalid parse result: "+err.Error())
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.resolveAccount(tx, parsed, opts.AccountHint)
		if err != nil {
			return err
		}
		result.AccountID = account.ID

		periodStart := models.DateOnly(parsed.PeriodStart)
		periodEnd := models.DateOnly(parsed.PeriodEnd)
		if !opts.Override {
			var count int64
			if err := tx.Model(&models.Statement{}).
				Where("account_id = ? AND period_start = ? AND period_end = ? AND status <> ?",
					account.ID, periodStart, periodEnd, models.StatementStatusFailed).
				Count(&count).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				return apperrors.WithMessage(apperrors.ErrDuplicateStatement, "A statement for this account and period has already been imported")
			}
		}

		statement := &models.Statement{
			AccountID:   account.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			SourcePath:  sourcePath,
			SourceHash:  fileHash,
			ImportedAt:  time.Now(),
			Status:      models.StatementStatusImported,
		}
		if err := tx.Create(statement).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.StatementID = statement.ID

		// All-or-nothing: a malformed row fails the whole statement.
		// Duplicate rows are skipped, which keeps override re-imports
		// from double-inserting transactions.
		for _, row := range parsed.Rows {
			_, err := s.normalizer.Normalize(tx, row, parsed, account, statement)
			if err != nil {
				if errors.Is(err, apperrors.ErrDuplicateTransaction) {
					result.TransactionsDuplicate++
					continue
				}
				return err
			}
			result.TransactionsNew++
		}

		if err := s.recordHoldings(tx, account, periodEnd, parsed.Holdings, result); err != nil {
			return err
		}
		if err := s.recordMortgagePayments(tx, account, parsed.MortgagePayments, result); err != nil {
			return err
		}

		statement.Status = models.StatementStatusParsed
		if err := tx.Model(statement).Update("status", models.StatementStatusParsed).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateStatement) || errors.Is(err, apperrors.ErrAccountResolutionAmbiguous) || errors.Is(err, apperrors.ErrAccountNotFound) {
			result.Status = models.StatementStatusFailed
			result.StatementID = ""
			result.TransactionsNew = 0
			result.TransactionsDuplicate = 0
			result.Err = err
			return result, err
		}
		// Row-level failure: everything above was rolled back. Re-record
		// the statement as failed so the batch outcome is durable.
		result.TransactionsNew = 0
		result.TransactionsDuplicate = 0
		result.HoldingsRecorded = 0
		result.MortgageRowsRecorded = 0
		return s.recordFailure(result, parsed, sourcePath, fileHash, opts, err.Error())
	}

	result.Status = models.StatementStatusParsed
	logger.Get().Infow("statement imported",
		"statement_id", result.StatementID,
		"account_id", result.AccountID,
		"transactions_new", result.TransactionsNew,
		"transactions_duplicate", result.TransactionsDuplicate,
	)
	return result, nil
}

// ImportBatch imports many files; per-file failures are recorded and the
// batch continues.
func (s *importerService) ImportBatch(files []FileImport, plugin parser.Plugin) *BatchResult {
	batch := &BatchResult{}
	for _, f := range files {
		res, err := s.Import(f.Bytes, f.Path, plugin, f.Options)
		if res == nil {
			res = &StatementResult{SourcePath: f.Path, Status: models.StatementStatusFailed, Err: err}
		}
		batch.Results = append(batch.Results, *res)
		if err != nil {
			batch.Failed++
			logger.Get().Warnw("statement import failed", "source_path", f.Path, "error", err)
			continue
		}
		batch.Succeeded++
	}
	return batch
}

// recordFailure persists a failed statement (attributed via parsed
// metadata or the account hint) in its own transaction. When the owning
// account cannot be determined, the failure is only reported back.
func (s *importerService) recordFailure(result *StatementResult, parsed *parser.Statement, sourcePath, fileHash string, opts ImportOptions, reason string) (*StatementResult, error) {
	result.Status = models.StatementStatusFailed
	result.StatementID = ""
	appErr := apperrors.WithMessage(apperrors.ErrParseFailure, reason)
	result.Err = appErr

	if parsed == nil && opts.AccountHint == "" {
		return result, appErr
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.resolveAccount(tx, parsed, opts.AccountHint)
		if err != nil {
			return err
		}
		result.AccountID = account.ID

		statement := &models.Statement{
			AccountID:     account.ID,
			PeriodStart:   failurePeriod(parsed).start,
			PeriodEnd:     failurePeriod(parsed).end,
			SourcePath:    sourcePath,
			SourceHash:    fileHash,
			ImportedAt:    time.Now(),
			Status:        models.StatementStatusFailed,
			FailureReason: reason,
		}
		if err := tx.Create(statement).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.StatementID = statement.ID
		return nil
	})
	if err != nil {
		logger.Get().Warnw("could not record failed statement", "source_path", sourcePath, "error", err)
	}
	return result, appErr
}

type period struct{ start, end time.Time }

func failurePeriod(parsed *parser.Statement) period {
	if parsed != nil && !parsed.PeriodStart.IsZero() && !parsed.PeriodEnd.IsZero() {
		return period{models.DateOnly(parsed.PeriodStart), models.DateOnly(parsed.PeriodEnd)}
	}
	today := models.DateOnly(time.Now())
	return period{today, today}
}

// resolveAccount implements dynamic account provisioning: a pure
// resolve-or-create keyed on (institution, masked account number), with an
// explicit hint taking precedence. Provisioning happens inside the
// caller's transaction so a failed import leaves no orphan account.
func (s *importerService) resolveAccount(tx *gorm.DB, parsed *parser.Statement, hint string) (*models.Account, error) {
	if hint != "" {
		var account models.Account
		if err := tx.Where("id = ?", hint).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrAccountNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return &account, nil
	}

	if parsed == nil || parsed.Institution == "" {
		return nil, apperrors.WithMessage(apperrors.ErrAccountResolutionAmbiguous, "Statement carries no institution; an explicit account hint is required")
	}

	var matches []models.Account
	q := tx.Where("institution = ?", parsed.Institution)
	if parsed.MaskedNumber != "" {
		q = q.Where("masked_number = ?", parsed.MaskedNumber)
	}
	if err := q.Find(&matches).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	switch len(matches) {
	case 1:
		return &matches[0], nil
	case 0:
		return s.provisionAccount(tx, parsed)
	default:
		return nil, apperrors.ErrAccountResolutionAmbiguous
	}
}

func (s *importerService) provisionAccount(tx *gorm.DB, parsed *parser.Statement) (*models.Account, error) {
	accountType := parsed.AccountType
	if accountType == "" {
		accountType = models.AccountTypeOther
	}
	currency := parsed.Currency
	if currency == "" {
		currency = "USD"
	}
	name := parsed.Institution
	if parsed.MaskedNumber != "" {
		name += " " + parsed.MaskedNumber
	}
	opened := models.DateOnly(time.Now())

	account := &models.Account{
		Type:         accountType,
		Name:         name,
		Institution:  parsed.Institution,
		MaskedNumber: parsed.MaskedNumber,
		Currency:     currency,
		OpenedAt:     &opened,
	}
	if err := tx.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	logger.Get().Infow("provisioned account",
		"account_id", account.ID,
		"institution", account.Institution,
		"masked_number", account.MaskedNumber,
		"type", account.Type,
	)
	return account, nil
}

func (s *importerService) recordHoldings(tx *gorm.DB, account *models.Account, asOf time.Time, rows []parser.HoldingRow, result *StatementResult) error {
	for _, h := range rows {
		holding := &models.Holding{
			AccountID: account.ID,
			Symbol:    h.Symbol,
			Quantity:  h.Quantity,
			AsOf:      asOf,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "symbol"}, {Name: "as_of"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).Create(holding).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.HoldingsRecorded++
	}
	return nil
}

func (s *importerService) recordMortgagePayments(tx *gorm.DB, account *models.Account, rows []parser.MortgagePaymentRow, result *StatementResult) error {
	if len(rows) == 0 {
		return nil
	}

	var mortgage models.Mortgage
	if err := tx.Where("account_id = ?", account.ID).First(&mortgage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Get().Warnw("statement reports mortgage payments but no mortgage is configured",
				"account_id", account.ID)
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, row := range rows {
		payment := &models.MortgagePayment{
			MortgageID:          mortgage.ID,
			DueDate:             models.DateOnly(row.DueDate),
			PaidDate:            row.PaidDate,
			AmountCents:         row.AmountCents,
			PrincipalCents:      row.PrincipalCents,
			InterestCents:       row.InterestCents,
			EscrowCents:         row.EscrowCents,
			ExtraPrincipalCents: row.ExtraPrincipalCents,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mortgage_id"}, {Name: "due_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"paid_date", "amount_cents", "principal_cents", "interest_cents", "escrow_cents", "extra_principal_cents"}),
		}).Create(payment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.MortgageRowsRecorded++
	}
	return nil
}

// contentHash returns the hex SHA-256 of the file bytes. Hashing the same
// bytes always yields the same hash, which is the statement-level
// idempotency key.
func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	apperrors "pfledger/internal/errors"
	"pfledger/internal/logger"
	"pfledger/internal/models"
	"pfledger/internal/validator"
)

// categorizerService assigns categories via an ordered, deterministic
// rule set. Rules are evaluated in ascending priority, tie-broken by rule
// id; the first match wins. The pass is idempotent and never touches a
// transaction carrying a manual override.
type categorizerService struct {
	db    *gorm.DB
	audit AuditServicer
}

// NewCategorizerService creates a new CategorizerServicer.
func NewCategorizerService(db *gorm.DB, audit AuditServicer) CategorizerServicer {
	return &categorizerService{db: db, audit: audit}
}

// compiledRule pairs a rule with its pre-compiled regex (regex rules only).
type compiledRule struct {
	rule models.CategoryRule
	re   *regexp.Regexp
}

// ruleSnapshot is the rule/category state read once at pass start, so
// ordering stays stable even if rules are edited while a pass runs;
// concurrent edits apply only to the next pass.
type ruleSnapshot struct {
	rules           []compiledRule
	uncategorizedID string
}

func (s *categorizerService) loadSnapshot() (*ruleSnapshot, error) {
	var rules []models.CategoryRule
	if err := s.db.Order("priority ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	snapshot := &ruleSnapshot{}
	for _, r := range rules {
		cr := compiledRule{rule: r}
		if r.PatternType == models.RulePatternRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				logger.Get().Warnw("skipping rule with invalid regex", "rule_id", r.ID, "pattern", r.Pattern, "error", err)
				continue
			}
			cr.re = re
		}
		snapshot.rules = append(snapshot.rules, cr)
	}

	var uncategorized models.Category
	if err := s.db.Where("name = ?", models.UncategorizedName).First(&uncategorized).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			uncategorized = models.Category{Name: models.UncategorizedName, Type: models.CategoryTypeExpense}
			if err := s.db.Create(&uncategorized).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		} else {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	snapshot.uncategorizedID = uncategorized.ID

	return snapshot, nil
}

// match reports whether a single rule matches a transaction. One dispatch
// function for every pattern variant keeps ordering and tie-breaking
// auditable.
func match(cr compiledRule, txn *models.Transaction, accountType models.AccountType) bool {
	if cr.rule.AccountType != nil && *cr.rule.AccountType != accountType {
		return false
	}
	switch cr.rule.PatternType {
	case models.RulePatternRegex:
		return cr.re.MatchString(txn.Description)
	case models.RulePatternSubstring:
		return strings.Contains(strings.ToLower(txn.Description), strings.ToLower(cr.rule.Pattern))
	case models.RulePatternExact:
		return strings.EqualFold(txn.Description, cr.rule.Pattern)
	case models.RulePatternMerchant:
		return txn.Merchant != "" && strings.EqualFold(txn.Merchant, cr.rule.Pattern)
	default:
		return false
	}
}

// CategorizeAll runs one categorization pass over every transaction
// without a manual override. Re-running against unchanged rules and
// transactions reproduces identical assignments.
func (s *categorizerService) CategorizeAll() (*CategorizationReport, error) {
	snapshot, err := s.loadSnapshot()
	if err != nil {
		return nil, err
	}

	var manualCount int64
	if err := s.db.Model(&models.Transaction{}).Where("category_manual = ?", true).Count(&manualCount).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := s.db.Preload("Account").
		Where("category_manual = ?", false).
		Order("posted_at ASC, id ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &CategorizationReport{SkippedManual: int(manualCount)}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range transactions {
			txn := &transactions[i]
			report.Evaluated++

			categoryID, isIncome, isExpense, needsReview := s.assign(snapshot, txn)
			if needsReview {
				report.Uncategorized++
			} else {
				report.Matched++
			}

			changed := txn.CategoryID == nil || *txn.CategoryID != categoryID ||
				txn.IsIncome != isIncome || txn.IsExpense != isExpense ||
				txn.NeedsReview != needsReview
			if !changed {
				continue
			}
			report.Changed++

			if err := tx.Model(txn).Updates(map[string]any{
				"category_id":  categoryID,
				"is_income":    isIncome,
				"is_expense":   isExpense,
				"needs_review": needsReview,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// assign evaluates the snapshot against one transaction and returns the
// resulting category id, income/expense flags, and review marker.
func (s *categorizerService) assign(snapshot *ruleSnapshot, txn *models.Transaction) (categoryID string, isIncome, isExpense, needsReview bool) {
	isIncome = txn.AmountCents > 0
	isExpense = txn.AmountCents < 0

	for _, cr := range snapshot.rules {
		if !match(cr, txn, txn.Account.Type) {
			continue
		}
		if cr.rule.IsIncome != nil {
			isIncome = *cr.rule.IsIncome
		}
		if cr.rule.IsExpense != nil {
			isExpense = *cr.rule.IsExpense
		}
		return cr.rule.CategoryID, isIncome, isExpense, false
	}
	return snapshot.uncategorizedID, isIncome, isExpense, true
}

// OverrideCategory durably assigns a category by hand. Subsequent
// categorization passes never reassign the transaction.
func (s *categorizerService) OverrideCategory(transactionID, categoryID string) error {
	var txn models.Transaction
	if err := s.db.Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTransactionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Model(&txn).Updates(map[string]any{
		"category_id":     categoryID,
		"category_manual": true,
		"needs_review":    false,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log("category_override", "transaction", transactionID, map[string]any{
		"category_id":   categoryID,
		"category_name": category.Name,
	})
	return nil
}

// PromoteOverride turns a manual override into a persistent rule. This is
// an explicit user action, never automatic.
func (s *categorizerService) PromoteOverride(transactionID string, priority int, patternType models.RulePatternType) (*models.CategoryRule, error) {
	var txn models.Transaction
	if err := s.db.Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !txn.CategoryManual || txn.CategoryID == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction has no manual override to promote")
	}

	pattern := txn.Description
	if patternType == models.RulePatternMerchant {
		if txn.Merchant == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction has no merchant to build a merchant rule from")
		}
		pattern = txn.Merchant
	}

	rule := &models.CategoryRule{
		Priority:    priority,
		PatternType: patternType,
		Pattern:     pattern,
		CategoryID:  *txn.CategoryID,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log("rule_promoted", "category_rule", rule.ID, map[string]any{
		"transaction_id": transactionID,
		"pattern":        pattern,
		"pattern_type":   string(patternType),
		"priority":       priority,
	})
	return rule, nil
}

// ExportRules returns every rule as an ordered document; importing it
// back reproduces priority order exactly.
func (s *categorizerService) ExportRules() ([]RuleExport, error) {
	var rules []models.CategoryRule
	if err := s.db.Preload("Category").Order("priority ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := make([]RuleExport, 0, len(rules))
	for _, r := range rules {
		out = append(out, RuleExport{
			Priority:    r.Priority,
			PatternType: r.PatternType,
			Pattern:     r.Pattern,
			Category:    r.Category.Name,
			AccountType: r.AccountType,
			IsIncome:    r.IsIncome,
			IsExpense:   r.IsExpense,
		})
	}
	return out, nil
}

// ImportRules loads an ordered rule document. With replace set, existing
// rules are dropped first; otherwise imported rules are appended. Unknown
// category names are created as expense categories.
func (s *categorizerService) ImportRules(rules []RuleExport, replace bool) (int, error) {
	for i, r := range rules {
		if err := validator.Struct(r); err != nil {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("invalid rule at index %d: %v", i, err))
		}
		if r.PatternType == models.RulePatternRegex {
			if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
				return 0, apperrors.WithMessage(apperrors.ErrInvalidRulePattern, fmt.Sprintf("invalid regex at index %d: %v", i, err))
			}
		}
	}

	imported := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Where("1 = 1").Delete(&models.CategoryRule{}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		for _, r := range rules {
			category, err := getOrCreateCategory(tx, r.Category, models.CategoryTypeExpense)
			if err != nil {
				return err
			}
			rule := &models.CategoryRule{
				Priority:    r.Priority,
				PatternType: r.PatternType,
				Pattern:     r.Pattern,
				CategoryID:  category.ID,
				AccountType: r.AccountType,
				IsIncome:    r.IsIncome,
				IsExpense:   r.IsExpense,
			}
			if err := tx.Create(rule).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

func getOrCreateCategory(tx *gorm.DB, name string, ctype models.CategoryType) (*models.Category, error) {
	var category models.Category
	err := tx.Where("name = ?", name).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	category = models.Category{Name: name, Type: ctype}
	if err := tx.Create(&category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

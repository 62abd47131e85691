// Package errors provides custom error types for the ledger engine.
// All service-layer errors should use AppError so callers can distinguish
// rejected writes, duplicates, and internal faults with errors.Is/As.
package errors

// AppError represents a structured application error with a stable error
// code, a human-readable message, and an optional wrapped internal error.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code, so sentinel comparisons survive
// Wrap/WithMessage copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:     sentinel.Code,
		Message:  sentinel.Message,
		Internal: internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:     sentinel.Code,
		Message:  message,
		Internal: sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input"}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found"}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred"}
)

// Import errors.
var (
	ErrDuplicateStatement         = &AppError{Code: "DUPLICATE_STATEMENT", Message: "Statement has already been imported"}
	ErrParseFailure               = &AppError{Code: "PARSE_FAILURE", Message: "Statement could not be parsed"}
	ErrAccountResolutionAmbiguous = &AppError{Code: "ACCOUNT_RESOLUTION_AMBIGUOUS", Message: "More than one account matches; an explicit account hint is required"}
	ErrAccountNotFound            = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found"}
	ErrStatementNotFound          = &AppError{Code: "STATEMENT_NOT_FOUND", Message: "Statement not found"}
)

// Transaction errors.
var (
	ErrDuplicateTransaction = &AppError{Code: "DUPLICATE_TRANSACTION", Message: "Transaction with identical content already exists"}
	ErrTransactionNotFound  = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found"}
	ErrSplitSumMismatch     = &AppError{Code: "SPLIT_SUM_MISMATCH", Message: "Split amounts do not sum to the transaction amount"}
)

// Category and rule errors.
var (
	ErrCategoryNotFound   = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found"}
	ErrDuplicateCategory  = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists"}
	ErrRuleNotFound       = &AppError{Code: "RULE_NOT_FOUND", Message: "Category rule not found"}
	ErrInvalidRulePattern = &AppError{Code: "INVALID_RULE_PATTERN", Message: "Rule pattern is not valid for its pattern type"}
)

// Mortgage errors.
var (
	ErrMortgageNotFound = &AppError{Code: "MORTGAGE_NOT_FOUND", Message: "Mortgage not found"}
)

// Aggregation errors. SnapshotRecomputeMismatch indicates the snapshot
// computation is non-deterministic, which is a bug; the aggregation pass
// must halt rather than persist the result.
var (
	ErrSnapshotRecomputeMismatch = &AppError{Code: "SNAPSHOT_RECOMPUTE_MISMATCH", Message: "Net worth snapshot recomputation produced a different result"}
	ErrPriceNotFound             = &AppError{Code: "PRICE_NOT_FOUND", Message: "No price available at or before the requested date"}
)

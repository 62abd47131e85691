package services

import (
	"time"

	"gorm.io/gorm"

	"pfledger/internal/models"
	"pfledger/internal/pagination"
	"pfledger/internal/parser"
)

// ImportOptions controls a single statement import.
type ImportOptions struct {
	// AccountHint, when set, attributes the statement to this account ID
	// instead of resolving by institution + masked account number.
	AccountHint string
	// Override allows importing a file whose content hash or period was
	// already seen. Duplicate transactions within it are still skipped.
	Override bool
}

// StatementResult describes the outcome of importing one statement file.
type StatementResult struct {
	StatementID     string                 `json:"statement_id,omitempty"`
	AccountID       string                 `json:"account_id,omitempty"`
	Status          models.StatementStatus `json:"status"`
	TransactionsNew int                    `json:"transactions_new"`
	// TransactionsDuplicate counts rows skipped because an identical
	// transaction already exists in the ledger.
	TransactionsDuplicate int    `json:"transactions_duplicate"`
	HoldingsRecorded      int    `json:"holdings_recorded"`
	MortgageRowsRecorded  int    `json:"mortgage_rows_recorded"`
	SourcePath            string `json:"source_path"`
	Err                   error  `json:"-"`
}

// FileImport is one unit of a batch import.
type FileImport struct {
	Path    string
	Bytes   []byte
	Options ImportOptions
}

// BatchResult aggregates per-file outcomes; statement-level failures never
// abort the batch.
type BatchResult struct {
	Results   []StatementResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// ImporterServicer defines the contract for statement import.
type ImporterServicer interface {
	Import(fileBytes []byte, sourcePath string, plugin parser.Plugin, opts ImportOptions) (*StatementResult, error)
	ImportBatch(files []FileImport, plugin parser.Plugin) *BatchResult
}

// NormalizerServicer converts raw parser rows into canonical transactions.
// Normalize runs inside the importer's database transaction; it returns
// ErrDuplicateTransaction when the row's content hash already exists.
type NormalizerServicer interface {
	Normalize(tx *gorm.DB, row parser.Row, stmt *parser.Statement, account *models.Account, statement *models.Statement) (*models.Transaction, error)
	ContentHash(accountID string, postedAt time.Time, amountCents int64, description, providerTxnID string) string
}

// CategorizationReport summarizes one categorization pass.
type CategorizationReport struct {
	Evaluated     int `json:"evaluated"`
	Matched       int `json:"matched"`
	Uncategorized int `json:"uncategorized"`
	Changed       int `json:"changed"`
	SkippedManual int `json:"skipped_manual"`
}

// RuleExport is the wire shape for rule import/export. The document is an
// ordered list; round-tripping preserves priority order exactly.
type RuleExport struct {
	Priority    int                    `json:"priority" validate:"gte=0"`
	PatternType models.RulePatternType `json:"pattern_type" validate:"required,pattern_type"`
	Pattern     string                 `json:"pattern" validate:"required"`
	Category    string                 `json:"category" validate:"required"`
	AccountType *models.AccountType    `json:"account_type,omitempty" validate:"omitempty,account_type"`
	IsIncome    *bool                  `json:"is_income,omitempty"`
	IsExpense   *bool                  `json:"is_expense,omitempty"`
}

// CategorizerServicer defines the contract for the ordered-rule
// categorization engine.
type CategorizerServicer interface {
	CategorizeAll() (*CategorizationReport, error)
	OverrideCategory(transactionID, categoryID string) error
	PromoteOverride(transactionID string, priority int, patternType models.RulePatternType) (*models.CategoryRule, error)
	ExportRules() ([]RuleExport, error)
	ImportRules(rules []RuleExport, replace bool) (int, error)
}

// ReconcileReport summarizes one transfer reconciliation pass.
type ReconcileReport struct {
	Examined      int `json:"examined"`
	NewPairs      int `json:"new_pairs"`
	ExistingPairs int `json:"existing_pairs"`
}

// TransferServicer defines the contract for transfer reconciliation.
type TransferServicer interface {
	Reconcile() (*ReconcileReport, error)
}

// ScheduledPayment is one period of a mortgage's derived amortization
// schedule.
type ScheduledPayment struct {
	Period         int       `json:"period"`
	DueDate        time.Time `json:"due_date"`
	PaymentCents   int64     `json:"payment_cents"`
	PrincipalCents int64     `json:"principal_cents"`
	InterestCents  int64     `json:"interest_cents"`
	// BalanceCents is the outstanding balance after this payment.
	BalanceCents int64 `json:"balance_cents"`
}

// Discrepancy reports a mismatch between the derived schedule and a
// lender-reported payment beyond the configured tolerance. Non-fatal.
type Discrepancy struct {
	DueDate       time.Time `json:"due_date"`
	Field         string    `json:"field"`
	ExpectedCents int64     `json:"expected_cents"`
	ReportedCents int64     `json:"reported_cents"`
	DeltaCents    int64     `json:"delta_cents"`
}

// MortgageServicer defines the contract for the amortization engine.
type MortgageServicer interface {
	CreateMortgage(accountID, lender string, principalCents int64, annualRatePct float64, termMonths int, startDate time.Time, paymentDay int) (*models.Mortgage, error)
	GetMortgageByAccount(accountID string) (*models.Mortgage, error)
	Schedule(mortgageID string, periods int) ([]ScheduledPayment, error)
	RecordPayment(mortgageID string, payment parser.MortgagePaymentRow) (*models.MortgagePayment, error)
	Reconcile(mortgageID string) ([]Discrepancy, error)
	ProjectedBalance(mortgageID string, asOf time.Time) (int64, error)
}

// CategoryTotal is a per-category aggregate over a date range.
type CategoryTotal struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	TotalCents   int64  `json:"total_cents"`
}

// AggregationServicer defines the contract for rollups and net-worth
// snapshots.
type AggregationServicer interface {
	MonthlyAggregate(year int, month time.Month) ([]CategoryTotal, error)
	YTDAggregate(year int, through time.Month) ([]CategoryTotal, error)
	ComputeNetWorthSnapshot(asOf time.Time) (*models.NetWorthSnapshot, error)
}

// PriceServicer records and looks up externally-resolved prices.
type PriceServicer interface {
	RecordPrice(symbol string, asOf time.Time, priceCents int64, currency, source string) (*models.Price, error)
	LatestPriceAsOf(symbol string, asOf time.Time) (*models.Price, error)
}

// SplitInput is one requested sub-allocation of a transaction.
type SplitInput struct {
	AmountCents int64  `json:"amount_cents"`
	CategoryID  string `json:"category_id" validate:"required"`
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	AccountID   *string
	CategoryID  *string
	FromDate    *time.Time
	ToDate      *time.Time
	IsTransfer  *bool
	NeedsReview *bool
}

// TransactionServicer defines the contract for transaction queries, split
// management, and explicit corrections.
type TransactionServicer interface {
	ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(id string) (*models.Transaction, error)
	SetSplits(transactionID string, splits []SplitInput) (*models.Transaction, error)
	CorrectTransaction(transactionID, reason string) error
}

// MonthlyReport is the read-only reporting view of one month.
type MonthlyReport struct {
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	Totals []CategoryTotal `json:"totals"`
	// Formatted holds display strings per category name, in the base
	// currency.
	Formatted    map[string]string `json:"formatted"`
	IncomeCents  int64             `json:"income_cents"`
	ExpenseCents int64             `json:"expense_cents"`
	NetCents     int64             `json:"net_cents"`
}

// MortgageStatus is the read-only reporting view of one mortgage.
type MortgageStatus struct {
	MortgageID       string    `json:"mortgage_id"`
	Lender           string    `json:"lender"`
	BalanceCents     int64     `json:"balance_cents"`
	BalanceFormatted string    `json:"balance_formatted"`
	NextDueDate      time.Time `json:"next_due_date"`
	PaymentsReported int       `json:"payments_reported"`
	Discrepancies    int       `json:"discrepancies"`
}

// ReportServicer is the read-only query surface other subsystems consume.
// It never writes report artifacts.
type ReportServicer interface {
	MonthlyReport(year int, month time.Month) (*MonthlyReport, error)
	YTDReport(year int, through time.Month) (*MonthlyReport, error)
	NetWorthSeries(from, to time.Time) ([]models.NetWorthSnapshot, error)
	MortgageStatus(mortgageID string) (*MortgageStatus, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(action, resourceType, resourceID string, changes map[string]any)
}

package services

import (
	"testing"
	"time"

	"pfledger/internal/models"
	"pfledger/internal/parser"
	"pfledger/internal/testutil"
)

// TestFullPipeline drives a statement through the whole engine: import,
// categorize, transfer reconciliation, aggregation, and a net-worth
// snapshot.
func TestFullPipeline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	audit := NewAuditService(db)
	importer := NewImporterService(db, NewNormalizerService(), audit)
	categorizer := NewCategorizerService(db, audit)
	transfers := NewTransferService(db, 3, 0)
	prices := NewPriceService(db)
	mortgages := NewMortgageService(db, 100)
	aggregation := NewAggregationService(db, mortgages, prices)

	dining := testutil.CreateTestCategory(t, db, "Dining", models.CategoryTypeExpense)
	salary := testutil.CreateTestCategory(t, db, "Income:Salary", models.CategoryTypeIncome)
	isIncome := true
	isExpense := false
	salaryRule := testutil.CreateTestRule(t, db, 20, models.RulePatternSubstring, "payroll", salary.ID)
	testutil.AssertNoError(t, db.Model(salaryRule).Updates(map[string]any{
		"is_income": isIncome, "is_expense": isExpense,
	}).Error)
	testutil.CreateTestRule(t, db, 10, models.RulePatternSubstring, "starbucks", dining.ID)

	plugin := &parser.JSONFilePlugin{}

	// Step 1: import a bank and a savings statement with an offsetting
	// transfer between them.
	bankDoc := `{
  "institution": "First National",
  "masked_number": "****1111",
  "account_type": "bank",
  "period_start": "2024-03-01",
  "period_end": "2024-03-31",
  "sign_convention": "standard",
  "rows": [
    {"posted_at": "2024-03-01", "description": "PAYROLL ACME CORP", "amount_cents": 250000},
    {"posted_at": "2024-03-05", "description": "STARBUCKS #1234", "amount_cents": -550},
    {"posted_at": "2024-03-10", "description": "ONLINE TRANSFER TO SAVINGS", "amount_cents": -50000}
  ]
}`
	savingsDoc := `{
  "institution": "First National",
  "masked_number": "****2222",
  "account_type": "bank",
  "period_start": "2024-03-01",
  "period_end": "2024-03-31",
  "sign_convention": "standard",
  "rows": [
    {"posted_at": "2024-03-11", "description": "TRANSFER FROM CHECKING", "amount_cents": 50000}
  ]
}`
	batch := importer.ImportBatch([]FileImport{
		{Path: "bank.json", Bytes: []byte(bankDoc)},
		{Path: "savings.json", Bytes: []byte(savingsDoc)},
	}, plugin)
	if batch.Failed != 0 {
		t.Fatalf("expected clean import, %d failed", batch.Failed)
	}

	// Step 2: categorize. Payroll and Starbucks match rules; the transfer
	// legs fall to Uncategorized for now.
	catReport, err := categorizer.CategorizeAll()
	testutil.AssertNoError(t, err)
	if catReport.Matched != 2 {
		t.Errorf("expected 2 matched, got %d", catReport.Matched)
	}

	// Step 3: pair the transfer legs.
	xferReport, err := transfers.Reconcile()
	testutil.AssertNoError(t, err)
	if xferReport.NewPairs != 1 {
		t.Fatalf("expected 1 transfer pair, got %d", xferReport.NewPairs)
	}

	// Step 4: monthly totals exclude the paired legs.
	totals, err := aggregation.MonthlyAggregate(2024, time.March)
	testutil.AssertNoError(t, err)
	byName := map[string]int64{}
	for _, ct := range totals {
		byName[ct.CategoryName] = ct.TotalCents
	}
	if byName["Income:Salary"] != 250000 {
		t.Errorf("expected salary 250000, got %d", byName["Income:Salary"])
	}
	if byName["Dining"] != -550 {
		t.Errorf("expected dining -550, got %d", byName["Dining"])
	}
	if _, ok := byName[models.UncategorizedName]; ok {
		t.Error("paired transfer legs must not appear in totals")
	}

	// Step 5: net worth counts both accounts' balances, transfers included.
	snapshot, err := aggregation.ComputeNetWorthSnapshot(testutil.Date(2024, time.March, 31))
	testutil.AssertNoError(t, err)
	expectedAssets := int64(250000 - 550 - 50000 + 50000)
	if snapshot.AssetsCents != expectedAssets {
		t.Errorf("expected assets %d, got %d", expectedAssets, snapshot.AssetsCents)
	}
	if snapshot.LiabilitiesCents != 0 {
		t.Errorf("expected no liabilities, got %d", snapshot.LiabilitiesCents)
	}

	// Step 6: the whole pipeline is idempotent end to end.
	_, err = importer.Import([]byte(bankDoc), "bank.json", plugin, ImportOptions{})
	testutil.AssertAppError(t, err, "DUPLICATE_STATEMENT")
	rerun, err := categorizer.CategorizeAll()
	testutil.AssertNoError(t, err)
	if rerun.Changed != 0 {
		t.Errorf("expected no categorization changes on rerun, got %d", rerun.Changed)
	}
	again, err := aggregation.ComputeNetWorthSnapshot(testutil.Date(2024, time.March, 31))
	testutil.AssertNoError(t, err)
	if again.NetWorthCents != snapshot.NetWorthCents {
		t.Errorf("expected identical snapshot on rerun, got %d then %d",
			snapshot.NetWorthCents, again.NetWorthCents)
	}
}

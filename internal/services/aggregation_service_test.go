package services

import (
	"testing"
	"time"

	"pfledger/internal/models"
	"pfledger/internal/testutil"
)

func TestMonthlyAggregate(t *testing.T) {
	t.Run("sums_by_category_excluding_transfers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)
		account := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		dining := testutil.CreateTestCategory(t, db, "Dining", models.CategoryTypeExpense)
		salary := testutil.CreateTestCategory(t, db, "Income:Salary", models.CategoryTypeIncome)

		t1 := testutil.CreateTestTransaction(t, db, account.ID, -550, testutil.Date(2024, time.March, 5), "STARBUCKS")
		t2 := testutil.CreateTestTransaction(t, db, account.ID, -1200, testutil.Date(2024, time.March, 8), "RESTAURANT")
		t3 := testutil.CreateTestTransaction(t, db, account.ID, 250000, testutil.Date(2024, time.March, 1), "PAYROLL")
		testutil.AssertNoError(t, db.Model(t1).Update("category_id", dining.ID).Error)
		testutil.AssertNoError(t, db.Model(t2).Update("category_id", dining.ID).Error)
		testutil.AssertNoError(t, db.Model(t3).Update("category_id", salary.ID).Error)

		// A transfer leg and an out-of-month transaction must not count.
		transfer := testutil.CreateTestTransaction(t, db, account.ID, -50000, testutil.Date(2024, time.March, 10), "TRANSFER OUT")
		testutil.AssertNoError(t, db.Model(transfer).Update("is_transfer", true).Error)
		testutil.CreateTestTransaction(t, db, account.ID, -999, testutil.Date(2024, time.April, 2), "APRIL SPEND")

		totals, err := svc.MonthlyAggregate(2024, time.March)
		testutil.AssertNoError(t, err)
		if len(totals) != 2 {
			t.Fatalf("expected 2 category totals, got %d: %+v", len(totals), totals)
		}
		byName := map[string]int64{}
		for _, ct := range totals {
			byName[ct.CategoryName] = ct.TotalCents
		}
		if byName["Dining"] != -1750 {
			t.Errorf("expected Dining -1750, got %d", byName["Dining"])
		}
		if byName["Income:Salary"] != 250000 {
			t.Errorf("expected Income:Salary 250000, got %d", byName["Income:Salary"])
		}
	})

	t.Run("splits_count_toward_their_categories", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)
		txSvc := NewTransactionService(db, NewAuditService(db))
		account := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		groceries := testutil.CreateTestCategory(t, db, "Groceries", models.CategoryTypeExpense)
		household := testutil.CreateTestCategory(t, db, "Household", models.CategoryTypeExpense)

		txn := testutil.CreateTestTransaction(t, db, account.ID, -10000, testutil.Date(2024, time.March, 5), "COSTCO")
		_, err := txSvc.SetSplits(txn.ID, []SplitInput{
			{AmountCents: -6000, CategoryID: groceries.ID},
			{AmountCents: -4000, CategoryID: household.ID},
		})
		testutil.AssertNoError(t, err)

		totals, err := svc.MonthlyAggregate(2024, time.March)
		testutil.AssertNoError(t, err)
		byName := map[string]int64{}
		for _, ct := range totals {
			byName[ct.CategoryName] = ct.TotalCents
		}
		if byName["Groceries"] != -6000 {
			t.Errorf("expected Groceries -6000, got %d", byName["Groceries"])
		}
		if byName["Household"] != -4000 {
			t.Errorf("expected Household -4000, got %d", byName["Household"])
		}
	})

	t.Run("uncategorized_bucket_for_nil_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)
		account := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		testutil.CreateTestTransaction(t, db, account.ID, -999, testutil.Date(2024, time.March, 5), "MYSTERY")

		totals, err := svc.MonthlyAggregate(2024, time.March)
		testutil.AssertNoError(t, err)
		if len(totals) != 1 || totals[0].CategoryName != models.UncategorizedName {
			t.Errorf("expected one %s bucket, got %+v", models.UncategorizedName, totals)
		}
	})
}

func TestYTDAggregate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	prices := NewPriceService(db)
	mortgages := NewMortgageService(db, 100)
	svc := NewAggregationService(db, mortgages, prices)
	account := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
	dining := testutil.CreateTestCategory(t, db, "Dining", models.CategoryTypeExpense)

	jan := testutil.CreateTestTransaction(t, db, account.ID, -1000, testutil.Date(2024, time.January, 15), "DINNER JAN")
	mar := testutil.CreateTestTransaction(t, db, account.ID, -2000, testutil.Date(2024, time.March, 15), "DINNER MAR")
	may := testutil.CreateTestTransaction(t, db, account.ID, -4000, testutil.Date(2024, time.May, 15), "DINNER MAY")
	for _, txn := range []*models.Transaction{jan, mar, may} {
		testutil.AssertNoError(t, db.Model(txn).Update("category_id", dining.ID).Error)
	}

	totals, err := svc.YTDAggregate(2024, time.March)
	testutil.AssertNoError(t, err)
	if len(totals) != 1 {
		t.Fatalf("expected 1 total, got %d", len(totals))
	}
	if totals[0].TotalCents != -3000 {
		t.Errorf("expected YTD through March -3000, got %d", totals[0].TotalCents)
	}
}

func TestComputeNetWorthSnapshot(t *testing.T) {
	t.Run("assets_and_liabilities_from_balances", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)

		bank := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		card := testutil.CreateTestAccount(t, db, models.AccountTypeCreditCard)
		testutil.CreateTestTransaction(t, db, bank.ID, 500000, testutil.Date(2024, time.March, 1), "PAYROLL")
		testutil.CreateTestTransaction(t, db, bank.ID, -100000, testutil.Date(2024, time.March, 5), "RENT")
		testutil.CreateTestTransaction(t, db, card.ID, -20000, testutil.Date(2024, time.March, 7), "SHOPPING")

		snapshot, err := svc.ComputeNetWorthSnapshot(testutil.Date(2024, time.March, 31))
		testutil.AssertNoError(t, err)
		if snapshot.AssetsCents != 400000 {
			t.Errorf("expected assets 400000, got %d", snapshot.AssetsCents)
		}
		if snapshot.LiabilitiesCents != 20000 {
			t.Errorf("expected liabilities 20000, got %d", snapshot.LiabilitiesCents)
		}
		if snapshot.NetWorthCents != 380000 {
			t.Errorf("expected net worth 380000, got %d", snapshot.NetWorthCents)
		}
	})

	t.Run("brokerage_valued_at_latest_price", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)

		brokerage := testutil.CreateTestAccount(t, db, models.AccountTypeBrokerage)
		holding := &models.Holding{
			AccountID: brokerage.ID, Symbol: "VTI", Quantity: 10,
			AsOf: testutil.Date(2024, time.March, 31),
		}
		testutil.AssertNoError(t, db.Create(holding).Error)

		_, err := prices.RecordPrice("VTI", testutil.Date(2024, time.March, 15), 25000, "USD", "manual")
		testutil.AssertNoError(t, err)
		// A later price outside the as-of range must not be used.
		_, err = prices.RecordPrice("VTI", testutil.Date(2024, time.May, 1), 30000, "USD", "manual")
		testutil.AssertNoError(t, err)

		snapshot, err := svc.ComputeNetWorthSnapshot(testutil.Date(2024, time.March, 31))
		testutil.AssertNoError(t, err)
		if snapshot.AssetsCents != 250000 {
			t.Errorf("expected assets 250000 (10 x 25000), got %d", snapshot.AssetsCents)
		}
	})

	t.Run("mortgage_balance_is_a_liability", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)

		testutil.CreateTestMortgage(t, db, 30000000, 4.5, 360, testutil.Date(2024, time.January, 1))

		snapshot, err := svc.ComputeNetWorthSnapshot(testutil.Date(2024, time.January, 15))
		testutil.AssertNoError(t, err)
		if snapshot.LiabilitiesCents != 30000000 {
			t.Errorf("expected mortgage principal as liability, got %d", snapshot.LiabilitiesCents)
		}
		if snapshot.NetWorthCents != -30000000 {
			t.Errorf("expected net worth -30000000, got %d", snapshot.NetWorthCents)
		}
	})

	t.Run("upsert_by_as_of_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		prices := NewPriceService(db)
		mortgages := NewMortgageService(db, 100)
		svc := NewAggregationService(db, mortgages, prices)
		bank := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		testutil.CreateTestTransaction(t, db, bank.ID, 100000, testutil.Date(2024, time.March, 1), "DEPOSIT")

		asOf := testutil.Date(2024, time.March, 31)
		first, err := svc.ComputeNetWorthSnapshot(asOf)
		testutil.AssertNoError(t, err)

		// New ledger data, same as-of date: the snapshot row is replaced,
		// not duplicated.
		testutil.CreateTestTransaction(t, db, bank.ID, 50000, testutil.Date(2024, time.March, 20), "DEPOSIT 2")
		second, err := svc.ComputeNetWorthSnapshot(asOf)
		testutil.AssertNoError(t, err)
		if second.ID != first.ID {
			t.Errorf("expected same snapshot row, got %s and %s", first.ID, second.ID)
		}
		if second.AssetsCents != 150000 {
			t.Errorf("expected recomputed assets 150000, got %d", second.AssetsCents)
		}

		var count int64
		testutil.AssertNoError(t, db.Model(&models.NetWorthSnapshot{}).Count(&count).Error)
		if count != 1 {
			t.Errorf("expected 1 snapshot row, got %d", count)
		}
	})
}

func TestPriceService(t *testing.T) {
	t.Run("upsert_by_symbol_and_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceService(db)

		asOf := testutil.Date(2024, time.March, 15)
		_, err := svc.RecordPrice("VTI", asOf, 25000, "USD", "manual")
		testutil.AssertNoError(t, err)
		_, err = svc.RecordPrice("VTI", asOf, 25100, "USD", "manual")
		testutil.AssertNoError(t, err)

		var count int64
		testutil.AssertNoError(t, db.Model(&models.Price{}).Count(&count).Error)
		if count != 1 {
			t.Errorf("expected 1 price row, got %d", count)
		}

		price, err := svc.LatestPriceAsOf("VTI", asOf)
		testutil.AssertNoError(t, err)
		if price.PriceCents != 25100 {
			t.Errorf("expected updated price 25100, got %d", price.PriceCents)
		}
	})

	t.Run("latest_at_or_before", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceService(db)

		_, err := svc.RecordPrice("VTI", testutil.Date(2024, time.March, 1), 24000, "USD", "manual")
		testutil.AssertNoError(t, err)
		_, err = svc.RecordPrice("VTI", testutil.Date(2024, time.March, 10), 25000, "USD", "manual")
		testutil.AssertNoError(t, err)

		price, err := svc.LatestPriceAsOf("VTI", testutil.Date(2024, time.March, 5))
		testutil.AssertNoError(t, err)
		if price.PriceCents != 24000 {
			t.Errorf("expected price 24000, got %d", price.PriceCents)
		}
	})

	t.Run("missing_price", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceService(db)

		_, err := svc.LatestPriceAsOf("NOPE", testutil.Date(2024, time.March, 5))
		testutil.AssertAppError(t, err, "PRICE_NOT_FOUND")
	})
}

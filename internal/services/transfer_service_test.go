package services

import (
	"testing"
	"time"

	"pfledger/internal/models"
	"pfledger/internal/testutil"
)

func TestTransferReconcile(t *testing.T) {
	t.Run("offsetting_pair_within_window", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		savings := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		// -$500 out of checking, +$500 into savings two days later.
		out := testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 1), "TRANSFER TO SAVINGS")
		in := testutil.CreateTestTransaction(t, db, savings.ID, 50000, testutil.Date(2024, time.March, 3), "TRANSFER FROM CHECKING")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 1 {
			t.Fatalf("expected 1 new pair, got %d", report.NewPairs)
		}

		var gotOut, gotIn models.Transaction
		testutil.AssertNoError(t, db.First(&gotOut, "id = ?", out.ID).Error)
		testutil.AssertNoError(t, db.First(&gotIn, "id = ?", in.ID).Error)
		if !gotOut.IsTransfer || !gotIn.IsTransfer {
			t.Error("expected both legs marked as transfers")
		}
		if gotOut.TransferPeerID == nil || *gotOut.TransferPeerID != in.ID {
			t.Errorf("expected out leg peer %s, got %v", in.ID, gotOut.TransferPeerID)
		}
		if gotIn.TransferPeerID == nil || *gotIn.TransferPeerID != out.ID {
			t.Errorf("expected in leg peer %s, got %v", out.ID, gotIn.TransferPeerID)
		}
	})

	t.Run("outside_window_not_paired", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		savings := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 1), "TRANSFER OUT")
		testutil.CreateTestTransaction(t, db, savings.ID, 50000, testutil.Date(2024, time.March, 10), "TRANSFER IN")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 0 {
			t.Errorf("expected no pairs, got %d", report.NewPairs)
		}
	})

	t.Run("same_account_not_paired", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 1), "DEBIT")
		testutil.CreateTestTransaction(t, db, checking.ID, 50000, testutil.Date(2024, time.March, 1), "CREDIT")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 0 {
			t.Errorf("expected no pairs, got %d", report.NewPairs)
		}
	})

	t.Run("same_sign_not_paired", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		a := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		b := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		testutil.CreateTestTransaction(t, db, a.ID, -50000, testutil.Date(2024, time.March, 1), "PAYMENT A")
		testutil.CreateTestTransaction(t, db, b.ID, -50000, testutil.Date(2024, time.March, 1), "PAYMENT B")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 0 {
			t.Errorf("expected no pairs, got %d", report.NewPairs)
		}
	})

	t.Run("tolerance_allows_small_difference", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 100)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		savings := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 1), "TRANSFER OUT")
		testutil.CreateTestTransaction(t, db, savings.ID, 49950, testutil.Date(2024, time.March, 1), "TRANSFER IN LESS FEE")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 1 {
			t.Errorf("expected 1 pair within tolerance, got %d", report.NewPairs)
		}
	})

	t.Run("rerun_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		savings := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		out := testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 1), "TRANSFER OUT")
		testutil.CreateTestTransaction(t, db, savings.ID, 50000, testutil.Date(2024, time.March, 2), "TRANSFER IN")

		first, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if first.NewPairs != 1 {
			t.Fatalf("expected 1 new pair, got %d", first.NewPairs)
		}

		second, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if second.NewPairs != 0 {
			t.Errorf("expected 0 new pairs on rerun, got %d", second.NewPairs)
		}
		if second.ExistingPairs != 1 {
			t.Errorf("expected 1 existing pair, got %d", second.ExistingPairs)
		}

		var gotOut models.Transaction
		testutil.AssertNoError(t, db.First(&gotOut, "id = ?", out.ID).Error)
		if gotOut.TransferPeerID == nil {
			t.Error("rerun must not unmark an existing pair")
		}
	})

	t.Run("closest_date_wins", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		checking := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		savings := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		out := testutil.CreateTestTransaction(t, db, checking.ID, -50000, testutil.Date(2024, time.March, 5), "TRANSFER OUT")
		far := testutil.CreateTestTransaction(t, db, savings.ID, 50000, testutil.Date(2024, time.March, 8), "DEPOSIT FAR")
		near := testutil.CreateTestTransaction(t, db, savings.ID, 50000, testutil.Date(2024, time.March, 5), "DEPOSIT NEAR")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 1 {
			t.Fatalf("expected 1 pair, got %d", report.NewPairs)
		}

		var gotOut, gotFar models.Transaction
		testutil.AssertNoError(t, db.First(&gotOut, "id = ?", out.ID).Error)
		testutil.AssertNoError(t, db.First(&gotFar, "id = ?", far.ID).Error)
		if gotOut.TransferPeerID == nil || *gotOut.TransferPeerID != near.ID {
			t.Errorf("expected pairing with same-day deposit, got %v", gotOut.TransferPeerID)
		}
		if gotFar.IsTransfer {
			t.Error("leftover leg must stay unmatched")
		}
	})

	t.Run("third_leg_stays_unmatched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewTransferService(db, 3, 0)
		a := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		b := testutil.CreateTestAccount(t, db, models.AccountTypeBank)
		c := testutil.CreateTestAccount(t, db, models.AccountTypeBank)

		testutil.CreateTestTransaction(t, db, a.ID, -50000, testutil.Date(2024, time.March, 1), "OUT A")
		testutil.CreateTestTransaction(t, db, b.ID, 50000, testutil.Date(2024, time.March, 1), "IN B")
		testutil.CreateTestTransaction(t, db, c.ID, 50000, testutil.Date(2024, time.March, 1), "IN C")

		report, err := svc.Reconcile()
		testutil.AssertNoError(t, err)
		if report.NewPairs != 1 {
			t.Errorf("expected exactly 1 pair from 3 legs, got %d", report.NewPairs)
		}

		var unmatched int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).
			Where("is_transfer = ?", false).Count(&unmatched).Error)
		if unmatched != 1 {
			t.Errorf("expected 1 unmatched leg, got %d", unmatched)
		}
	})
}

package service

import (
	"context"
	"sync"
	"testing"

	"inspection_system/internal/domain"
	"inspection_system/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testBank = domain.BankDetails{AccountNumber: "0123456789", BankCode: "058"}

func (f *fixture) requestWithdrawal(t *testing.T, userID uint, amount string) *domain.WithdrawalRequest {
	t.Helper()
	req, err := f.withdrawals.Create(t.Context(), userID, decimal.RequireFromString(amount), testBank)
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalPending, req.Status)
	return req
}

func TestCreateWithdrawalChecksAvailableBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "8000")

	_, err := f.withdrawals.Create(t.Context(), f.dealer.ID, decimal.NewFromInt(10000), testBank)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "8000.00", appErr.Details["available_balance"])
	require.EqualValues(t, 0, f.count(t, &domain.WithdrawalRequest{}, "user_id = ?", f.dealer.ID))

	req := f.requestWithdrawal(t, f.dealer.ID, "5000")
	require.Equal(t, "TEST ACCOUNT 6789", req.BankAccountName)

	// Nothing is reserved until approval
	requireAmount(t, "8000", f.wallet(t, f.dealer.ID).AvailableBalance)
}

func TestCreateWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "1000")

	tests := map[string]struct {
		amount decimal.Decimal
		bank   domain.BankDetails
	}{
		"zero amount":       {decimal.Zero, testBank},
		"negative amount":   {decimal.NewFromInt(-5), testBank},
		"fractional cents":  {decimal.RequireFromString("10.005"), testBank},
		"unresolvable bank": {decimal.NewFromInt(100), domain.BankDetails{AccountNumber: "123", BankCode: "058"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.withdrawals.Create(t.Context(), f.dealer.ID, tc.amount, tc.bank)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestWithdrawalApproveAndProcess(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "20000")
	req := f.requestWithdrawal(t, f.dealer.ID, "5000")

	approved, err := f.withdrawals.Approve(t.Context(), req.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalApproved, approved.Status)
	require.NotNil(t, approved.HoldTransactionID)

	w := f.wallet(t, f.dealer.ID)
	requireAmount(t, "20000", w.LedgerBalance)
	requireAmount(t, "15000", w.AvailableBalance)
	requireAmount(t, "5000", w.HeldBalance())

	_, err = f.withdrawals.Approve(t.Context(), req.ID, f.admin.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	processed, err := f.withdrawals.Process(t.Context(), req.ID, f.admin.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalCompleted, processed.Status)
	require.NotNil(t, processed.PayoutReference)
	require.Contains(t, *processed.PayoutReference, "WDR-")

	w = f.wallet(t, f.dealer.ID)
	requireAmount(t, "15000", w.LedgerBalance)
	requireAmount(t, "15000", w.AvailableBalance)
	require.True(t, w.Consistent())

	var held domain.Transaction
	require.NoError(t, f.db.First(&held, *approved.HoldTransactionID).Error)
	require.Equal(t, domain.TxCompleted, held.Status)
	require.Equal(t, domain.TxWithdraw, held.Type)
	require.Equal(t, *processed.PayoutReference, *held.ExternalReference)

	_, err = f.withdrawals.Reject(t.Context(), req.ID, f.admin.ID, "too late")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProcessRequiresApproval(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "1000")
	req := f.requestWithdrawal(t, f.dealer.ID, "500")

	_, err := f.withdrawals.Process(t.Context(), req.ID, f.admin.ID, "TRF-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.withdrawals.Approve(t.Context(), 9999, f.admin.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectReleasesHold(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.inspector.ID, "3000")
	req := f.requestWithdrawal(t, f.inspector.ID, "2500")

	_, err := f.withdrawals.Reject(t.Context(), req.ID, f.admin.ID, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	approved, err := f.withdrawals.Approve(t.Context(), req.ID, f.admin.ID)
	require.NoError(t, err)
	requireAmount(t, "500", f.wallet(t, f.inspector.ID).AvailableBalance)

	rejected, err := f.withdrawals.Reject(t.Context(), req.ID, f.admin.ID, "account name mismatch")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalRejected, rejected.Status)
	require.Equal(t, "account name mismatch", *rejected.RejectionReason)

	w := f.wallet(t, f.inspector.ID)
	requireAmount(t, "3000", w.LedgerBalance)
	requireAmount(t, "3000", w.AvailableBalance)

	var held domain.Transaction
	require.NoError(t, f.db.First(&held, *approved.HoldTransactionID).Error)
	require.Equal(t, domain.TxReversed, held.Status)
}

func TestBalanceDroppedSinceRequest(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "10000")
	first := f.requestWithdrawal(t, f.dealer.ID, "7000")
	second := f.requestWithdrawal(t, f.dealer.ID, "7000")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.withdrawals.Approve(context.Background(), id, f.admin.ID)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)
		requireCode(t, err, "balance_dropped_since_request")
	}
	require.Equal(t, 1, failed)

	w := f.wallet(t, f.dealer.ID)
	requireAmount(t, "10000", w.LedgerBalance)
	requireAmount(t, "3000", w.AvailableBalance)
	require.EqualValues(t, 1, f.count(t, &domain.WithdrawalRequest{}, "status = ?", domain.WithdrawalPending))
}

func TestFailedPayoutIsCreditedBackOnce(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "9000")
	req := f.requestWithdrawal(t, f.dealer.ID, "4000")
	_, err := f.withdrawals.Approve(t.Context(), req.ID, f.admin.ID)
	require.NoError(t, err)
	_, err = f.withdrawals.Process(t.Context(), req.ID, f.admin.ID, "TRF-777")
	require.NoError(t, err)
	requireAmount(t, "5000", f.wallet(t, f.dealer.ID).LedgerBalance)

	require.Equal(t, WebhookProcessed, f.deliver(t, gateway.EventTransferSuccess, "TRF-777"))
	requireAmount(t, "5000", f.wallet(t, f.dealer.ID).LedgerBalance)

	require.Equal(t, WebhookProcessed, f.deliver(t, gateway.EventTransferFailed, "TRF-777"))
	require.Equal(t, WebhookProcessed, f.deliver(t, gateway.EventTransferReversed, "TRF-777"))

	w := f.wallet(t, f.dealer.ID)
	requireAmount(t, "9000", w.LedgerBalance)
	requireAmount(t, "9000", w.AvailableBalance)
	require.EqualValues(t, 1, f.count(t, &domain.Transaction{}, "external_reference = ?", "reversal:TRF-777"))

	require.NoError(t, f.withdrawals.HandleTransferEvent(t.Context(), gateway.EventTransferFailed, "TRF-UNKNOWN"))
}

func TestListWithdrawals(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.dealer.ID, "9000")
	f.fund(t, f.inspector.ID, "9000")
	a := f.requestWithdrawal(t, f.dealer.ID, "100")
	b := f.requestWithdrawal(t, f.inspector.ID, "200")
	f.requestWithdrawal(t, f.dealer.ID, "300")
	_, err := f.withdrawals.Reject(t.Context(), b.ID, f.admin.ID, "duplicate")
	require.NoError(t, err)

	pending, total, err := f.withdrawals.List(t.Context(), WithdrawalFilter{Status: domain.WithdrawalPending, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, a.ID, pending[0].ID)

	mine, total, err := f.withdrawals.List(t.Context(), WithdrawalFilter{UserID: f.inspector.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, domain.WithdrawalRejected, mine[0].Status)

	got, err := f.withdrawals.Get(t.Context(), a.ID)
	require.NoError(t, err)
	requireAmount(t, "100", got.Amount)
}

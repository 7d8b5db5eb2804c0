package domain_test

import (
	"errors"
	"testing"
	"time"

	"inspection_system/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func paidInspection(status domain.InspectionStatus) *domain.VehicleInspection {
	txID := uint(7)
	return &domain.VehicleInspection{
		ID:                   1,
		CustomerID:           10,
		DealerID:             20,
		InspectorID:          30,
		Status:               status,
		InspectionFee:        decimal.NewFromInt(50000),
		PaymentStatus:        domain.PaymentPaid,
		PaymentTransactionID: &txID,
	}
}

func TestTransitionsFollowTheLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insp := paidInspection(domain.InspectionDraft)

	for _, next := range []domain.InspectionStatus{
		domain.InspectionInProgress,
		domain.InspectionCompleted,
		domain.InspectionSigned,
		domain.InspectionArchived,
	} {
		require.NoError(t, insp.TransitionTo(next, now))
		require.Equal(t, next, insp.Status)
	}
	require.Equal(t, now, *insp.StartedAt)
	require.Equal(t, now, *insp.CompletedAt)
	require.Equal(t, now, *insp.SignedAt)
	require.Equal(t, now, *insp.ArchivedAt)
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	tests := map[string]struct {
		from domain.InspectionStatus
		to   domain.InspectionStatus
	}{
		"draft to completed":      {domain.InspectionDraft, domain.InspectionCompleted},
		"draft to signed":         {domain.InspectionDraft, domain.InspectionSigned},
		"in_progress to signed":   {domain.InspectionInProgress, domain.InspectionSigned},
		"completed back to draft": {domain.InspectionCompleted, domain.InspectionDraft},
		"archived is terminal":    {domain.InspectionArchived, domain.InspectionDraft},
		"signed to in_progress":   {domain.InspectionSigned, domain.InspectionInProgress},
		"completed to archived":   {domain.InspectionCompleted, domain.InspectionArchived},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			insp := paidInspection(tc.from)
			err := insp.TransitionTo(tc.to, time.Now())
			require.ErrorIs(t, err, domain.ErrInvalidTransition)
			require.Equal(t, tc.from, insp.Status)
		})
	}
}

func TestUnpaidInspectionCannotLeavePendingPaymentExceptToExpire(t *testing.T) {
	insp := &domain.VehicleInspection{ID: 3, Status: domain.InspectionPendingPayment, PaymentStatus: domain.PaymentUnpaid}

	err := insp.TransitionTo(domain.InspectionDraft, time.Now())
	require.ErrorIs(t, err, domain.ErrPaymentRequired)
	require.Equal(t, domain.InspectionPendingPayment, insp.Status)

	require.NoError(t, insp.TransitionTo(domain.InspectionExpired, time.Now()))
	require.NotNil(t, insp.ExpiredAt)
}

func TestExpiredInspectionRevivedByPayment(t *testing.T) {
	insp := paidInspection(domain.InspectionExpired)
	require.NoError(t, insp.TransitionTo(domain.InspectionDraft, time.Now()))
	require.Equal(t, domain.InspectionDraft, insp.Status)
}

func TestRequirePaid(t *testing.T) {
	require.NoError(t, paidInspection(domain.InspectionDraft).RequirePaid())

	unpaid := &domain.VehicleInspection{
		ID:            4,
		Status:        domain.InspectionPendingPayment,
		PaymentStatus: domain.PaymentUnpaid,
		InspectionFee: decimal.NewFromInt(25000),
	}
	err := unpaid.RequirePaid()
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, domain.KindPaymentRequired, appErr.Kind)
	require.Equal(t, "25000.00", appErr.Details["inspection_fee"])

	// Paid flag without a linked transaction is not enough
	half := paidInspection(domain.InspectionDraft)
	half.PaymentTransactionID = nil
	require.ErrorIs(t, half.RequirePaid(), domain.ErrPaymentRequired)
}

func TestRequiredSignatories(t *testing.T) {
	three := []domain.SignatoryRole{domain.SignatoryInspector, domain.SignatoryCustomer, domain.SignatoryDealer}
	two := []domain.SignatoryRole{domain.SignatoryInspector, domain.SignatoryCustomer}

	require.Equal(t, three, domain.InspectionComprehensive.RequiredSignatories())
	require.Equal(t, three, domain.InspectionPrePurchase.RequiredSignatories())
	require.Equal(t, two, domain.InspectionBasic.RequiredSignatories())
	require.Equal(t, two, domain.InspectionStandard.RequiredSignatories())
}

func TestSignerFor(t *testing.T) {
	insp := paidInspection(domain.InspectionCompleted)
	require.Equal(t, uint(30), insp.SignerFor(domain.SignatoryInspector))
	require.Equal(t, uint(10), insp.SignerFor(domain.SignatoryCustomer))
	require.Equal(t, uint(20), insp.SignerFor(domain.SignatoryDealer))
	require.Zero(t, insp.SignerFor("notary"))
}

func TestFeePolicyQuote(t *testing.T) {
	fees := domain.DefaultFeePolicy()

	fee, err := fees.Quote(domain.InspectionStandard)
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.NewFromInt(50000)))

	_, err = fees.Quote("deluxe")
	require.ErrorIs(t, err, domain.ErrValidation)

	delete(fees, domain.InspectionBasic)
	_, err = fees.Quote(domain.InspectionBasic)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestWalletConsistency(t *testing.T) {
	w := domain.NewWallet(1, "NGN")
	require.True(t, w.Consistent())

	w.LedgerBalance = decimal.NewFromInt(100)
	w.AvailableBalance = decimal.NewFromInt(40)
	require.True(t, w.Consistent())
	require.True(t, w.HeldBalance().Equal(decimal.NewFromInt(60)))

	w.AvailableBalance = decimal.NewFromInt(101)
	require.False(t, w.Consistent())

	w.AvailableBalance = decimal.NewFromInt(-1)
	require.False(t, w.Consistent())
}

func TestAppErrorMatchesByKind(t *testing.T) {
	err := domain.NewError(domain.KindInsufficientBalance, "short by %d", 5).
		WithCode("balance_dropped_since_request").
		WithDetail("available_balance", "10.00")

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.NotErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, "balance_dropped_since_request: short by 5", err.Error())

	cause := errors.New("boom")
	wrapped := domain.NewError(domain.KindGatewayUnavailable, "gateway down").Wrap(cause)
	require.ErrorIs(t, wrapped, cause)
	require.ErrorIs(t, wrapped, domain.ErrGatewayUnavailable)
}

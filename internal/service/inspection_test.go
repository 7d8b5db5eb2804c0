package service

import (
	"testing"
	"time"

	"inspection_system/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	f := newFixture(t)

	q, err := f.inspections.Quote(domain.InspectionComprehensive)
	require.NoError(t, err)
	requireAmount(t, "75000", q.Fee)
	require.Equal(t, "NGN", q.Currency)
	require.Len(t, q.Signatories, 3)

	_, err = f.inspections.Quote("engine_only")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateInspection(t *testing.T) {
	f := newFixture(t)
	insp := f.createInspection(t, domain.InspectionPrePurchase)
	require.Equal(t, domain.InspectionPendingPayment, insp.Status)
	require.Equal(t, domain.PaymentUnpaid, insp.PaymentStatus)
	requireAmount(t, "60000", insp.InspectionFee)
	require.Equal(t, "JTDBR32E530012345", insp.VIN)

	tests := map[string]CreateInspectionInput{
		"dealer is not a dealer": {Type: domain.InspectionBasic, DealerID: f.customer.ID, InspectorID: f.inspector.ID},
		"unknown inspector":      {Type: domain.InspectionBasic, DealerID: f.dealer.ID, InspectorID: 9999},
		"missing parties":        {Type: domain.InspectionBasic},
		"unknown type":           {Type: "mystery", DealerID: f.dealer.ID, InspectorID: f.inspector.ID},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.inspections.Create(t.Context(), f.customer.ID, in)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestInspectionWorkflow(t *testing.T) {
	f := newFixture(t)
	insp := f.paidInspection(t, domain.InspectionStandard)
	ctx := t.Context()

	_, err := f.inspections.Start(ctx, insp.ID, f.dealer.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.inspections.AddPhoto(ctx, insp.ID, f.inspector.ID, "https://cdn.example.com/a.jpg", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.inspections.Complete(ctx, insp.ID, f.inspector.ID, CompleteInput{Findings: "ok", ConditionRating: 7})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	started, err := f.inspections.Start(ctx, insp.ID, f.inspector.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InspectionInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	photo, err := f.inspections.AddPhoto(ctx, insp.ID, f.inspector.ID, " https://cdn.example.com/a.jpg ", "rear")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.jpg", photo.URL)

	_, err = f.inspections.Complete(ctx, insp.ID, f.inspector.ID, CompleteInput{Findings: "ok", ConditionRating: 11})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.inspections.Complete(ctx, insp.ID, f.inspector.ID, CompleteInput{ConditionRating: 5})
	require.ErrorIs(t, err, domain.ErrValidation)

	done, err := f.inspections.Complete(ctx, insp.ID, f.inspector.ID, CompleteInput{Findings: "brake pads worn", ConditionRating: 6})
	require.NoError(t, err)
	require.Equal(t, domain.InspectionCompleted, done.Status)

	got, err := f.inspections.Get(ctx, insp.ID, f.customer.ID, domain.RoleCustomer)
	require.NoError(t, err)
	require.Len(t, got.Photos, 1)
	require.Equal(t, "brake pads worn", got.Findings)
}

func TestInspectionVisibility(t *testing.T) {
	f := newFixture(t)
	insp := f.createInspection(t, domain.InspectionBasic)
	f.createInspection(t, domain.InspectionStandard)
	stranger := createUser(t, f.db, "mallory", domain.RoleCustomer)
	ctx := t.Context()

	_, err := f.inspections.Get(ctx, insp.ID, stranger.ID, domain.RoleCustomer)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.inspections.Get(ctx, insp.ID, f.admin.ID, domain.RoleAdmin)
	require.NoError(t, err)

	rows, total, err := f.inspections.List(ctx, f.dealer.ID, domain.RoleDealer, "", 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Greater(t, rows[0].ID, rows[1].ID)

	_, total, err = f.inspections.List(ctx, stranger.ID, domain.RoleCustomer, "", 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)

	_, total, err = f.inspections.List(ctx, f.admin.ID, domain.RoleAdmin, string(domain.InspectionPendingPayment), 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestSweepExpiresUnpaidAndArchivesSigned(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	unpaid := f.createInspection(t, domain.InspectionBasic)
	paid := f.paidInspection(t, domain.InspectionBasic)

	expired, err := f.inspections.ExpireStale(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Zero(t, expired)

	f.clock.Advance(49 * time.Hour)
	expired, err = f.inspections.ExpireStale(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	require.Equal(t, domain.InspectionExpired, f.reload(t, unpaid.ID).Status)
	require.Equal(t, domain.InspectionDraft, f.reload(t, paid.ID).Status)

	signed := f.completedInspection(t, domain.InspectionBasic)
	doc, err := f.signatures.GenerateDocument(ctx, signed.ID, f.inspector.ID, domain.RoleInspector)
	require.NoError(t, err)
	f.sign(t, doc.ID, domain.SignatoryInspector, f.inspector.ID)
	f.sign(t, doc.ID, domain.SignatoryCustomer, f.customer.ID)

	archived, err := f.inspections.ArchiveSigned(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, archived)

	f.clock.Advance(31 * 24 * time.Hour)
	archived, err = f.inspections.ArchiveSigned(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, archived)

	got := f.reload(t, signed.ID)
	require.Equal(t, domain.InspectionArchived, got.Status)
	require.NotNil(t, got.ArchivedAt)
}

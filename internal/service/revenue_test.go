package service

import (
	"testing"
	"time"

	"inspection_system/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSeededSettingsAreActive(t *testing.T) {
	f := newFixture(t)
	settings, err := f.revenue.ActiveSettings(t.Context())
	require.NoError(t, err)
	requireAmount(t, "60", settings.DealerPercentage)
	requireAmount(t, "40", settings.PlatformPercentage)
}

func TestActivateSettingsKeepsSingleActiveRow(t *testing.T) {
	f := newFixture(t)
	before := f.paidInspection(t, domain.InspectionStandard)

	created, err := f.revenue.CreateSettings(t.Context(), decimal.NewFromInt(70), decimal.NewFromInt(30), false, f.admin.ID)
	require.NoError(t, err)
	require.False(t, created.IsActive)

	active, err := f.revenue.ActiveSettings(t.Context())
	require.NoError(t, err)
	require.NotEqual(t, created.ID, active.ID)

	activated, err := f.revenue.ActivateSettings(t.Context(), created.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.EqualValues(t, 1, f.count(t, &domain.InspectionRevenueSettings{}, "is_active = ?", true))

	// Activating the active row again is a no-op
	_, err = f.revenue.ActivateSettings(t.Context(), created.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, f.count(t, &domain.InspectionRevenueSettings{}, "is_active = ?", true))

	after := f.paidInspection(t, domain.InspectionStandard)
	split, err := f.revenue.SplitForInspection(t.Context(), after.ID)
	require.NoError(t, err)
	requireAmount(t, "35000", split.DealerShare)
	requireAmount(t, "15000", split.PlatformShare)
	require.Equal(t, created.ID, split.SettingsID)

	// Earlier splits keep the percentages they were made with
	old, err := f.revenue.SplitForInspection(t.Context(), before.ID)
	require.NoError(t, err)
	requireAmount(t, "60", old.DealerPercentage)
	requireAmount(t, "30000", old.DealerShare)

	requireAmount(t, "65000", f.wallet(t, f.dealer.ID).LedgerBalance)
}

func TestCreateSettingsValidation(t *testing.T) {
	f := newFixture(t)
	tests := map[string][2]string{
		"sum above 100":   {"70", "40"},
		"sum below 100":   {"50", "49.99"},
		"negative":        {"-10", "110"},
		"too many places": {"33.333", "66.667"},
	}
	for name, pct := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.revenue.CreateSettings(t.Context(),
				decimal.RequireFromString(pct[0]), decimal.RequireFromString(pct[1]), true, f.admin.ID)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	require.EqualValues(t, 1, f.count(t, &domain.InspectionRevenueSettings{}, "1 = 1"))
}

func TestCreateActiveSettingsReplacesCurrent(t *testing.T) {
	f := newFixture(t)
	created, err := f.revenue.CreateSettings(t.Context(), decimal.RequireFromString("33.33"), decimal.RequireFromString("66.67"), true, f.admin.ID)
	require.NoError(t, err)
	require.True(t, created.IsActive)

	rows, err := f.revenue.ListSettings(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, created.ID, rows[0].ID)
	require.False(t, rows[1].IsActive)
	require.NotNil(t, rows[1].DeactivatedAt)

	insp := f.paidInspection(t, domain.InspectionBasic)
	split, err := f.revenue.SplitForInspection(t.Context(), insp.ID)
	require.NoError(t, err)
	requireAmount(t, "8332.5", split.DealerShare)
	requireAmount(t, "16667.5", split.PlatformShare)
}

func TestActivateUnknownSettings(t *testing.T) {
	f := newFixture(t)
	_, err := f.revenue.ActivateSettings(t.Context(), 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListSplitsByDealer(t *testing.T) {
	f := newFixture(t)
	f.paidInspection(t, domain.InspectionBasic)
	f.paidInspection(t, domain.InspectionStandard)

	splits, total, err := f.revenue.ListSplits(t.Context(), f.dealer.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	requireAmount(t, "50000", splits[0].TotalFee)

	other := createUser(t, f.db, "otto", domain.RoleDealer)
	splits, total, err = f.revenue.ListSplits(t.Context(), other.ID, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, splits)
}

func TestSupersededSettingsCannotBeReactivated(t *testing.T) {
	f := newFixture(t)
	seeded, err := f.revenue.ActiveSettings(t.Context())
	require.NoError(t, err)

	_, err = f.revenue.CreateSettings(t.Context(), decimal.NewFromInt(70), decimal.NewFromInt(30), true, f.admin.ID)
	require.NoError(t, err)

	var before domain.InspectionRevenueSettings
	require.NoError(t, f.db.First(&before, seeded.ID).Error)
	require.NotNil(t, before.DeactivatedAt)

	f.clock.Advance(time.Hour)
	_, err = f.revenue.ActivateSettings(t.Context(), seeded.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	requireCode(t, err, "settings_superseded")

	var after domain.InspectionRevenueSettings
	require.NoError(t, f.db.First(&after, seeded.ID).Error)
	require.False(t, after.IsActive)
	require.NotNil(t, after.DeactivatedAt)
	require.True(t, before.DeactivatedAt.Equal(*after.DeactivatedAt))
	require.True(t, before.ActivatedAt.Equal(*after.ActivatedAt))

	active, err := f.revenue.ActiveSettings(t.Context())
	require.NoError(t, err)
	requireAmount(t, "70", active.DealerPercentage)
}

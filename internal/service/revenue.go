package service

import (
	"context" // Request scoping
	"errors"  // Error inspection
	"time"    // Timestamps

	"inspection_system/internal/domain" // Models and errors
	"inspection_system/internal/utils"  // Cache

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Revenue manages split settings and applies the split to paid inspections
type Revenue struct {
	db       *gorm.DB     // Database handle
	cache    *utils.Cache // Wallet cache invalidation
	currency string       // Dealer wallet currency when provisioning
	now      Clock        // Time source
}

// NewRevenue returns a revenue split service
func NewRevenue(db *gorm.DB, cache *utils.Cache, currency string) *Revenue {
	return &Revenue{db: db, cache: cache, currency: currency, now: time.Now}
}

// SplitFee divides fee per settings; the remainder of any rounding goes to the platform
func SplitFee(fee decimal.Decimal, settings domain.InspectionRevenueSettings) (dealer, platform decimal.Decimal, err error) {
	return settings.Split(fee)
}

// ActiveSettings returns the settings row currently applied
func (r *Revenue) ActiveSettings(ctx context.Context) (*domain.InspectionRevenueSettings, error) {
	return activeSettings(r.db.WithContext(ctx))
}

// ListSettings returns every settings version, newest first
func (r *Revenue) ListSettings(ctx context.Context) ([]domain.InspectionRevenueSettings, error) {
	var rows []domain.InspectionRevenueSettings
	err := r.db.WithContext(ctx).Order("id desc").Find(&rows).Error
	return rows, err
}

// CreateSettings stores a new settings version, optionally activating it
func (r *Revenue) CreateSettings(ctx context.Context, dealerPct, platformPct decimal.Decimal, activate bool, adminID uint) (*domain.InspectionRevenueSettings, error) {
	settings := domain.InspectionRevenueSettings{
		DealerPercentage:   dealerPct,
		PlatformPercentage: platformPct,
		CreatedBy:          adminID,
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&settings).Error; err != nil {
			return mapDBError(err, "revenue settings")
		}
		if activate {
			return activateSettings(tx, &settings, r.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"settings_id": settings.ID,
		"dealer_pct":  dealerPct.String(),
		"active":      settings.IsActive,
		"admin_id":    adminID,
	}).Info("Revenue settings created")
	return &settings, nil
}

// ActivateSettings makes id the single active row, deactivating the previous
// one. A superseded row stays frozen.
func (r *Revenue) ActivateSettings(ctx context.Context, id uint) (*domain.InspectionRevenueSettings, error) {
	var settings domain.InspectionRevenueSettings
	err := retryOnConflict(ctx, "revenue settings", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := findLocked(tx, &settings, id, "revenue settings"); err != nil {
				return err
			}
			if settings.IsActive {
				return nil
			}
			if settings.DeactivatedAt != nil {
				return domain.NewError(domain.KindInvalidTransition, "revenue settings %d were superseded; create a new version", id).
					WithCode("settings_superseded")
			}
			return activateSettings(tx, &settings, r.now())
		})
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("settings_id", id).Info("Revenue settings activated")
	return &settings, nil
}

// ListSplits returns recorded splits, newest first, optionally for one dealer
func (r *Revenue) ListSplits(ctx context.Context, dealerID uint, page, pageSize int) ([]domain.InspectionRevenueSplit, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.InspectionRevenueSplit{})
	if dealerID != 0 {
		query = query.Where("dealer_id = ?", dealerID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.InspectionRevenueSplit
	err := query.Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	return rows, total, err
}

// SplitForInspection returns the split of one inspection
func (r *Revenue) SplitForInspection(ctx context.Context, inspectionID uint) (*domain.InspectionRevenueSplit, error) {
	var split domain.InspectionRevenueSplit
	if err := r.db.WithContext(ctx).Where("inspection_id = ?", inspectionID).First(&split).Error; err != nil {
		return nil, mapDBError(err, "revenue split")
	}
	return &split, nil
}

// applySplit splits the fee of a paid inspection and credits the dealer. It
// must run inside the transaction that marked the inspection paid; an existing
// split is returned unchanged, so it takes effect at most once.
func (r *Revenue) applySplit(tx *gorm.DB, insp *domain.VehicleInspection) (*domain.InspectionRevenueSplit, bool, error) {
	if !insp.IsPaid() {
		return nil, false, domain.NewError(domain.KindPaymentRequired, "inspection %d has not been paid", insp.ID)
	}
	var existing domain.InspectionRevenueSplit
	err := forUpdate(tx).Where("inspection_id = ?", insp.ID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	settings, err := activeSettings(tx)
	if err != nil {
		return nil, false, err
	}
	dealerShare, platformShare, err := settings.Split(insp.InspectionFee)
	if err != nil {
		return nil, false, err
	}
	split := domain.InspectionRevenueSplit{
		InspectionID:       insp.ID,
		SettingsID:         settings.ID,
		DealerID:           insp.DealerID,
		TotalFee:           insp.InspectionFee,
		DealerShare:        dealerShare,
		PlatformShare:      platformShare,
		DealerPercentage:   settings.DealerPercentage,
		PlatformPercentage: settings.PlatformPercentage,
	}
	if err := tx.Create(&split).Error; err != nil {
		return nil, false, mapDBError(err, "revenue split")
	}

	if dealerShare.IsPositive() {
		if _, err := provisionWallet(tx, insp.DealerID, r.currency); err != nil {
			return nil, false, err
		}
		wallet, err := lockWalletByUser(tx, insp.DealerID)
		if err != nil {
			return nil, false, err
		}
		creditTx, err := credit(tx, wallet, dealerShare, entry{
			Type:         domain.TxTransferIn,
			Sender:       "platform:inspection-revenue",
			Recipient:    walletRef(insp.DealerID),
			Reference:    domain.StringPtr("split:" + uintString(insp.ID)),
			InspectionID: &insp.ID,
			Description:  "inspection revenue share",
		}, r.now())
		if err != nil {
			return nil, false, err
		}
		split.CreditTransactionID = &creditTx.ID
	}
	split.DealerCredited = true
	if err := tx.Model(&split).Updates(map[string]any{
		"dealer_credited":       true,
		"credit_transaction_id": split.CreditTransactionID,
	}).Error; err != nil {
		return nil, false, err
	}
	logrus.WithFields(logrus.Fields{
		"inspection_id":  insp.ID,
		"dealer_id":      insp.DealerID,
		"total_fee":      insp.InspectionFee.StringFixed(2),
		"dealer_share":   dealerShare.StringFixed(2),
		"platform_share": platformShare.StringFixed(2),
		"settings_id":    settings.ID,
	}).Info("Revenue split applied")
	return &split, true, nil
}

// activeSettings reads the single active settings row
func activeSettings(db *gorm.DB) (*domain.InspectionRevenueSettings, error) {
	var settings domain.InspectionRevenueSettings
	if err := db.Where("is_active = ?", true).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewError(domain.KindIntegrityViolation, "no active revenue settings").
				WithCode("revenue_settings_missing")
		}
		return nil, err
	}
	return &settings, nil
}

// activateSettings deactivates the current row then activates target
func activateSettings(tx *gorm.DB, target *domain.InspectionRevenueSettings, now time.Time) error {
	var current []domain.InspectionRevenueSettings
	if err := forUpdate(tx).Where("is_active = ?", true).Find(&current).Error; err != nil {
		return err
	}
	for i := range current {
		if current[i].ID == target.ID {
			continue
		}
		if err := tx.Model(&current[i]).Updates(map[string]any{
			"is_active":      false,
			"active_marker":  nil,
			"deactivated_at": now,
		}).Error; err != nil {
			return err
		}
	}
	var marker uint8 = 1
	target.IsActive = true
	target.ActiveMarker = &marker
	target.ActivatedAt = &now
	if err := tx.Model(target).Updates(map[string]any{
		"is_active":     true,
		"active_marker": marker,
		"activated_at":  now,
	}).Error; err != nil {
		return mapDBError(err, "active revenue settings")
	}
	return nil
}

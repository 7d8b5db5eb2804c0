package service

import (
	"context" // Request scoping
	"strings" // Input trimming
	"time"    // Timestamps

	"inspection_system/internal/domain" // Models and errors

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Inspections drives the inspection state machine
type Inspections struct {
	db       *gorm.DB         // Database handle
	fees     domain.FeePolicy // Fee per type
	currency string           // Fee currency
	now      Clock            // Time source
}

// NewInspections returns the inspection service
func NewInspections(db *gorm.DB, fees domain.FeePolicy, currency string) *Inspections {
	return &Inspections{db: db, fees: fees, currency: currency, now: time.Now}
}

// Quote is the fee for an inspection type
type Quote struct {
	Type        domain.InspectionType  `json:"type"`
	Fee         decimal.Decimal        `json:"fee"`
	Currency    string                 `json:"currency"`
	Signatories []domain.SignatoryRole `json:"signatories"`
}

// CreateInspectionInput is what a customer supplies to book an inspection
type CreateInspectionInput struct {
	Type         domain.InspectionType
	DealerID     uint
	InspectorID  uint
	VehicleMake  string
	VehicleModel string
	VehicleYear  int
	VIN          string
}

// CompleteInput is the inspection data submitted to finish the work
type CompleteInput struct {
	Findings        string
	ConditionRating int
}

// Quote prices an inspection type under the fee policy
func (s *Inspections) Quote(t domain.InspectionType) (*Quote, error) {
	fee, err := s.fees.Quote(t)
	if err != nil {
		return nil, err
	}
	return &Quote{Type: t, Fee: fee, Currency: s.currency, Signatories: t.RequiredSignatories()}, nil
}

// Create books an inspection in pending_payment with its fee fixed
func (s *Inspections) Create(ctx context.Context, customerID uint, in CreateInspectionInput) (*domain.VehicleInspection, error) {
	quote, err := s.Quote(in.Type)
	if err != nil {
		return nil, err
	}
	if in.DealerID == 0 || in.InspectorID == 0 {
		return nil, domain.ValidationError("dealer_id and inspector_id are required")
	}
	db := s.db.WithContext(ctx)
	if err := requireRole(db, in.DealerID, domain.RoleDealer); err != nil {
		return nil, err
	}
	if err := requireRole(db, in.InspectorID, domain.RoleInspector); err != nil {
		return nil, err
	}
	insp := domain.VehicleInspection{
		CustomerID:    customerID,
		DealerID:      in.DealerID,
		InspectorID:   in.InspectorID,
		Type:          in.Type,
		VehicleMake:   strings.TrimSpace(in.VehicleMake),
		VehicleModel:  strings.TrimSpace(in.VehicleModel),
		VehicleYear:   in.VehicleYear,
		VIN:           strings.ToUpper(strings.TrimSpace(in.VIN)),
		Status:        domain.InspectionPendingPayment,
		InspectionFee: quote.Fee,
		Currency:      quote.Currency,
		PaymentStatus: domain.PaymentUnpaid,
	}
	if err := db.Create(&insp).Error; err != nil {
		return nil, mapDBError(err, "inspection")
	}
	logrus.WithFields(logrus.Fields{
		"inspection_id": insp.ID,
		"customer_id":   customerID,
		"type":          insp.Type,
		"fee":           insp.InspectionFee.StringFixed(2),
	}).Info("Inspection created")
	return &insp, nil
}

// Get loads an inspection visible to the viewer
func (s *Inspections) Get(ctx context.Context, id, viewerID uint, viewerRole domain.Role) (*domain.VehicleInspection, error) {
	var insp domain.VehicleInspection
	if err := s.db.WithContext(ctx).Preload("Photos").First(&insp, id).Error; err != nil {
		return nil, mapDBError(err, "inspection")
	}
	if err := canView(&insp, viewerID, viewerRole); err != nil {
		return nil, err
	}
	return &insp, nil
}

// List returns inspections the viewer takes part in, newest first
func (s *Inspections) List(ctx context.Context, viewerID uint, viewerRole domain.Role, status string, page, pageSize int) ([]domain.VehicleInspection, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.VehicleInspection{})
	switch viewerRole {
	case domain.RoleCustomer:
		query = query.Where("customer_id = ?", viewerID)
	case domain.RoleDealer:
		query = query.Where("dealer_id = ?", viewerID)
	case domain.RoleInspector:
		query = query.Where("inspector_id = ?", viewerID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.VehicleInspection
	err := query.Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	return rows, total, err
}

// Start moves a paid draft inspection to in_progress
func (s *Inspections) Start(ctx context.Context, id, inspectorID uint) (*domain.VehicleInspection, error) {
	return s.mutate(ctx, id, inspectorID, func(tx *gorm.DB, insp *domain.VehicleInspection) error {
		if err := insp.TransitionTo(domain.InspectionInProgress, s.now()); err != nil {
			return err
		}
		return tx.Model(insp).Updates(map[string]any{"status": insp.Status, "started_at": insp.StartedAt}).Error
	})
}

// AddPhoto attaches evidence to an inspection in progress
func (s *Inspections) AddPhoto(ctx context.Context, id, inspectorID uint, url, caption string) (*domain.InspectionPhoto, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, domain.ValidationError("photo url is required")
	}
	var photo domain.InspectionPhoto
	_, err := s.mutate(ctx, id, inspectorID, func(tx *gorm.DB, insp *domain.VehicleInspection) error {
		if insp.Status != domain.InspectionInProgress {
			return domain.NewError(domain.KindInvalidTransition, "photos can only be added while the inspection is in progress").
				WithDetail("status", insp.Status)
		}
		photo = domain.InspectionPhoto{InspectionID: insp.ID, URL: url, Caption: strings.TrimSpace(caption), UploadedBy: inspectorID}
		return tx.Create(&photo).Error
	})
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

// Complete records the findings and moves the inspection to completed
func (s *Inspections) Complete(ctx context.Context, id, inspectorID uint, in CompleteInput) (*domain.VehicleInspection, error) {
	findings := strings.TrimSpace(in.Findings)
	return s.mutate(ctx, id, inspectorID, func(tx *gorm.DB, insp *domain.VehicleInspection) error {
		if findings == "" {
			return domain.ValidationError("findings are required to complete an inspection")
		}
		if in.ConditionRating < 1 || in.ConditionRating > 10 {
			return domain.ValidationError("condition_rating must be between 1 and 10")
		}
		if err := insp.TransitionTo(domain.InspectionCompleted, s.now()); err != nil {
			return err
		}
		insp.Findings = findings
		insp.ConditionRating = in.ConditionRating
		return tx.Model(insp).Updates(map[string]any{
			"status":           insp.Status,
			"completed_at":     insp.CompletedAt,
			"findings":         insp.Findings,
			"condition_rating": insp.ConditionRating,
		}).Error
	})
}

// ExpireStale marks unpaid inspections older than cutoff as expired
func (s *Inspections) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.sweep(ctx, domain.InspectionPendingPayment, domain.InspectionExpired, "created_at", olderThan)
}

// ArchiveSigned archives signed inspections past the retention window
func (s *Inspections) ArchiveSigned(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.sweep(ctx, domain.InspectionSigned, domain.InspectionArchived, "signed_at", olderThan)
}

// sweep moves every row in from older than the cutoff to next, one row lock at a time
func (s *Inspections) sweep(ctx context.Context, from, next domain.InspectionStatus, column string, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&domain.VehicleInspection{}).
		Where("status = ? AND "+column+" < ?", from, cutoff).
		Limit(500).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var insp domain.VehicleInspection
			if err := findLocked(tx, &insp, id, "inspection"); err != nil {
				return err
			}
			if insp.Status != from {
				return nil // Moved on concurrently, e.g. paid just now
			}
			// An unpaid inspection only ever leaves pending_payment through a verified payment or expiry
			if next == domain.InspectionExpired && insp.PaymentStatus == domain.PaymentPaid {
				return nil
			}
			if err := insp.TransitionTo(next, s.now()); err != nil {
				return err
			}
			moved++
			return tx.Model(&insp).Updates(map[string]any{
				"status":      insp.Status,
				"expired_at":  insp.ExpiredAt,
				"archived_at": insp.ArchivedAt,
			}).Error
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{"inspection_id": id, "to": next, "error": err.Error()}).Error("Inspection sweep failed")
		}
	}
	return moved, nil
}

// mutate locks an inspection assigned to the inspector, checks the payment gate, and runs fn
func (s *Inspections) mutate(ctx context.Context, id, inspectorID uint, fn func(tx *gorm.DB, insp *domain.VehicleInspection) error) (*domain.VehicleInspection, error) {
	var insp domain.VehicleInspection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findLocked(tx, &insp, id, "inspection"); err != nil {
			return err
		}
		if insp.InspectorID != inspectorID {
			return domain.NewError(domain.KindForbidden, "only the assigned inspector can work on this inspection")
		}
		if err := insp.RequirePaid(); err != nil {
			return err
		}
		return fn(tx, &insp)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"inspection_id": insp.ID, "status": insp.Status}).Info("Inspection updated")
	return &insp, nil
}

// canView allows parties of the inspection and admins
func canView(insp *domain.VehicleInspection, viewerID uint, role domain.Role) error {
	if role == domain.RoleAdmin || insp.CustomerID == viewerID || insp.DealerID == viewerID || insp.InspectorID == viewerID {
		return nil
	}
	return domain.NewError(domain.KindForbidden, "not a party to this inspection")
}

// requireRole checks a referenced user exists with the expected role
func requireRole(db *gorm.DB, userID uint, role domain.Role) error {
	var user domain.User
	if err := db.Select("id", "role").First(&user, userID).Error; err != nil {
		return domain.ValidationError("%s %d does not exist", role, userID)
	}
	if user.Role != role {
		return domain.ValidationError("user %d is not a %s", userID, role)
	}
	return nil
}

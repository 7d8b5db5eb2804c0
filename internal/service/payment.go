package service

import (
	"context" // Request scoping
	"errors"  // Error inspection
	"time"    // Timestamps

	"inspection_system/internal/domain"  // Models and errors
	"inspection_system/internal/gateway" // Payment processor
	"inspection_system/internal/utils"   // Cache and references

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// PaymentMethod is how a customer pays an inspection fee
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodBank   PaymentMethod = "bank"
	MethodWallet PaymentMethod = "wallet"
)

// ConfirmSource names the path that confirmed a payment
type ConfirmSource string

const (
	SourceWebhook ConfirmSource = "webhook"
	SourceVerify  ConfirmSource = "verify"
	SourceWallet  ConfirmSource = "wallet"
)

// Payments collects inspection fees and reconciles gateway confirmations
type Payments struct {
	db             *gorm.DB        // Database handle
	gw             gateway.Gateway // Payment processor
	revenue        *Revenue        // Split engine
	cache          *utils.Cache    // Wallet cache invalidation
	walletPayments bool            // Wallet-funded fees enabled
	now            Clock           // Time source
}

// NewPayments returns the payment service
func NewPayments(db *gorm.DB, gw gateway.Gateway, revenue *Revenue, cache *utils.Cache, walletPayments bool) *Payments {
	return &Payments{db: db, gw: gw, revenue: revenue, cache: cache, walletPayments: walletPayments, now: time.Now}
}

// PayInput is a customer's request to pay an inspection fee
type PayInput struct {
	InspectionID uint
	CustomerID   uint
	Amount       decimal.Decimal
	Method       PaymentMethod
}

// PaymentInitiation is the result of pay: a gateway checkout, or a synchronous confirmation
type PaymentInitiation struct {
	Reference    string               `json:"reference"`
	RedirectURL  string               `json:"redirect_url,omitempty"`
	Status       string               `json:"status"`
	Confirmation *PaymentConfirmation `json:"confirmation,omitempty"`
}

// PaymentConfirmation is the outcome of confirming a reference
type PaymentConfirmation struct {
	InspectionID     uint                           `json:"inspection_id"`
	TransactionID    uint                           `json:"transaction_id"`
	Reference        string                         `json:"reference"`
	Amount           decimal.Decimal                `json:"amount"`
	InspectionStatus domain.InspectionStatus        `json:"inspection_status"`
	PaymentStatus    domain.PaymentStatus           `json:"payment_status"`
	PaidAt           *time.Time                     `json:"paid_at,omitempty"`
	AlreadyProcessed bool                           `json:"already_processed"`
	Split            *domain.InspectionRevenueSplit `json:"split,omitempty"`
}

// Pay validates the caller and amount, then starts a gateway checkout or, for
// the wallet method, debits the customer's wallet and confirms at once
func (p *Payments) Pay(ctx context.Context, in PayInput) (*PaymentInitiation, error) {
	switch in.Method {
	case "", MethodCard, MethodBank:
	case MethodWallet:
		if !p.walletPayments {
			return nil, domain.ValidationError("wallet payments are not enabled")
		}
		return p.payFromWallet(ctx, in)
	default:
		return nil, domain.ValidationError("unknown payment method %q", in.Method)
	}

	var insp domain.VehicleInspection
	if err := p.db.WithContext(ctx).First(&insp, in.InspectionID).Error; err != nil {
		return nil, mapDBError(err, "inspection")
	}
	if err := checkPayable(&insp, in.CustomerID, in.Amount); err != nil {
		return nil, err
	}
	var customer domain.User
	if err := p.db.WithContext(ctx).Select("id", "email", "username").First(&customer, in.CustomerID).Error; err != nil {
		return nil, mapDBError(err, "customer")
	}
	email := customer.Email
	if email == "" {
		email = customer.Username + "@customers.invalid"
	}

	reference := utils.PaymentReference(insp.ID)
	resp, err := p.gw.Initialize(ctx, gateway.InitializeRequest{
		Reference: reference,
		Email:     email,
		Amount:    insp.InspectionFee,
		Currency:  insp.Currency,
		Metadata: map[string]string{
			"inspection_id": uintString(insp.ID),
			"customer_id":   uintString(in.CustomerID),
		},
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"inspection_id": insp.ID, "reference": reference, "error": err.Error()}).
			Error("Payment initiation failed")
		return nil, err
	}

	pending := domain.Transaction{
		Type:                domain.TxPayment,
		Amount:              insp.InspectionFee,
		Currency:            insp.Currency,
		Status:              domain.TxPending,
		Sender:              "customer:" + uintString(in.CustomerID),
		Recipient:           "platform",
		ExternalReference:   &resp.Reference,
		RelatedInspectionID: &insp.ID,
		Description:         "inspection fee via " + string(methodOrCard(in.Method)),
	}
	if err := p.db.WithContext(ctx).Create(&pending).Error; err != nil {
		return nil, mapDBError(err, "payment transaction")
	}
	logrus.WithFields(logrus.Fields{
		"inspection_id": insp.ID,
		"reference":     resp.Reference,
		"amount":        insp.InspectionFee.StringFixed(2),
	}).Info("Payment initiated")
	return &PaymentInitiation{Reference: resp.Reference, RedirectURL: resp.RedirectURL, Status: string(domain.TxPending)}, nil
}

// payFromWallet is the synchronous path: debit, mark paid, split, all in one unit
func (p *Payments) payFromWallet(ctx context.Context, in PayInput) (*PaymentInitiation, error) {
	reference := utils.WalletPaymentReference(in.InspectionID)
	var conf *PaymentConfirmation
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var insp domain.VehicleInspection
		if err := findLocked(tx, &insp, in.InspectionID, "inspection"); err != nil {
			return err
		}
		if err := checkPayable(&insp, in.CustomerID, in.Amount); err != nil {
			return err
		}
		wallet, err := lockWalletByUser(tx, in.CustomerID)
		if err != nil {
			return err
		}
		payTx, err := debit(tx, wallet, insp.InspectionFee, entry{
			Type:         domain.TxPayment,
			Sender:       walletRef(in.CustomerID),
			Recipient:    "platform",
			Reference:    &reference,
			InspectionID: &insp.ID,
			Description:  "inspection fee via wallet",
		}, p.now())
		if err != nil {
			return err
		}
		conf, err = p.settle(tx, &insp, payTx)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.afterSettle(ctx, conf, SourceWallet, in.CustomerID)
	return &PaymentInitiation{Reference: reference, Status: string(domain.TxCompleted), Confirmation: conf}, nil
}

// ConfirmPayment is the single idempotent confirmation used by both the
// webhook and the verify endpoint. The gateway is asked first; then, under a
// row lock on the inspection, the payment transaction is fetched or created by
// reference. A completed transaction means another path already won.
func (p *Payments) ConfirmPayment(ctx context.Context, reference string, source ConfirmSource) (*PaymentConfirmation, error) {
	return p.confirm(ctx, reference, source, 0)
}

// VerifyPaymentInput is a caller asking to confirm the payment of one inspection
type VerifyPaymentInput struct {
	InspectionID uint
	Reference    string
	CallerID     uint
	CallerRole   domain.Role
}

// VerifyPayment confirms a reference on behalf of the inspection's customer
// or an admin. The reference must pay for InspectionID; a reference bound to
// another inspection is refused before the gateway is asked.
func (p *Payments) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*PaymentConfirmation, error) {
	if in.Reference == "" {
		return nil, domain.ValidationError("reference is required")
	}
	var insp domain.VehicleInspection
	if err := p.db.WithContext(ctx).Select("id", "customer_id").First(&insp, in.InspectionID).Error; err != nil {
		return nil, mapDBError(err, "inspection")
	}
	if in.CallerRole != domain.RoleAdmin && insp.CustomerID != in.CallerID {
		return nil, domain.NewError(domain.KindForbidden, "only the customer of record can verify this payment")
	}
	var payTx domain.Transaction
	err := p.db.WithContext(ctx).Select("id", "related_inspection_id").
		Where("external_reference = ?", in.Reference).First(&payTx).Error
	switch {
	case err == nil && payTx.RelatedInspectionID != nil:
		if err := checkReferenceOwner(in.Reference, *payTx.RelatedInspectionID, in.InspectionID); err != nil {
			return nil, err
		}
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return p.confirm(ctx, in.Reference, SourceVerify, in.InspectionID)
}

// confirm runs the confirmation; a non-zero expected id refuses references
// that pay for any other inspection before anything is written
func (p *Payments) confirm(ctx context.Context, reference string, source ConfirmSource, expected uint) (*PaymentConfirmation, error) {
	if reference == "" {
		return nil, domain.ValidationError("reference is required")
	}
	if conf, ok := p.alreadyConfirmed(ctx, reference); ok {
		if expected != 0 {
			if err := checkReferenceOwner(reference, conf.InspectionID, expected); err != nil {
				return nil, err
			}
		}
		logrus.WithFields(logrus.Fields{"reference": reference, "source": source}).Info("Payment already processed")
		return conf, nil
	}
	verification, err := p.gw.Verify(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		p.markFailed(ctx, reference, "verification rejected")
		return nil, domain.NewError(domain.KindPaymentRequired, "payment could not be verified").
			WithCode("payment_verification_failed").Wrap(err)
	}
	if verification.Status == gateway.StatusPending {
		// Still in flight at the gateway; the row stays pending for a later confirmation
		return nil, domain.NewError(domain.KindPaymentRequired, "payment is still pending at the gateway").
			WithCode("payment_pending").
			WithDetail("gateway_status", verification.Status)
	}
	if !verification.Succeeded() {
		p.markFailed(ctx, reference, "gateway status "+string(verification.Status))
		return nil, domain.NewError(domain.KindPaymentRequired, "payment was not successful").
			WithCode("payment_verification_failed").
			WithDetail("gateway_status", verification.Status)
	}

	inspectionID, err := p.inspectionFor(ctx, reference, verification)
	if err != nil {
		return nil, err
	}
	if expected != 0 {
		if err := checkReferenceOwner(reference, inspectionID, expected); err != nil {
			return nil, err
		}
	}

	var conf *PaymentConfirmation
	var mismatch error
	err = retryOnConflict(ctx, "payment "+reference, func() error {
		conf, mismatch = nil, nil
		return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var insp domain.VehicleInspection
			if err := findLocked(tx, &insp, inspectionID, "inspection"); err != nil {
				return err
			}
			payTx, err := getOrCreatePayment(tx, reference, &insp, verification)
			if err != nil {
				return err
			}
			if payTx.RelatedInspectionID != nil && *payTx.RelatedInspectionID != insp.ID {
				return domain.NewError(domain.KindIntegrityViolation, "reference %s belongs to another inspection", reference)
			}
			if payTx.Status == domain.TxCompleted {
				conf, err = p.existing(tx, &insp, payTx)
				return err
			}
			if insp.PaymentStatus == domain.PaymentPaid {
				// A second successful charge for an already paid inspection
				logrus.WithFields(logrus.Fields{
					"inspection_id": insp.ID,
					"reference":     reference,
					"paid_with":     insp.PaymentTransactionID,
				}).Warn("Duplicate charge for paid inspection, refund required")
				if !payTx.IsFinal() {
					if err := tx.Model(payTx).Updates(map[string]any{
						"status":      domain.TxFailed,
						"description": "duplicate charge; refund required",
					}).Error; err != nil {
						return err
					}
				}
				var original domain.Transaction
				if err := tx.First(&original, *insp.PaymentTransactionID).Error; err != nil {
					return err
				}
				conf, err = p.existing(tx, &insp, &original)
				return err
			}
			if !verification.Amount.Equal(insp.InspectionFee) || (verification.Currency != "" && verification.Currency != insp.Currency) {
				mismatch = domain.NewError(domain.KindPaymentRequired, "paid amount does not match the inspection fee").
					WithCode("payment_amount_mismatch").
					WithDetail("expected", insp.InspectionFee.StringFixed(2)).
					WithDetail("received", verification.Amount.StringFixed(2)).
					WithDetail("currency", verification.Currency)
				if !payTx.IsFinal() {
					if err := tx.Model(payTx).Updates(map[string]any{
						"status":      domain.TxFailed,
						"description": "amount mismatch",
					}).Error; err != nil {
						return err
					}
				}
				return tx.Model(&insp).Update("payment_status", domain.PaymentFailed).Error
			}
			if payTx.IsFinal() {
				// A failed or reversed entry is history; it is never completed afterwards
				return domain.NewError(domain.KindInvalidTransition, "payment %s was already closed as %s", reference, payTx.Status).
					WithCode("payment_already_final").
					WithDetail("transaction_status", payTx.Status)
			}
			conf, err = p.settle(tx, &insp, payTx)
			return err
		})
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"reference":     reference,
			"inspection_id": inspectionID,
			"source":        source,
			"error":         err.Error(),
		}).Error("Payment confirmation failed")
		return nil, err
	}
	if mismatch != nil {
		logrus.WithFields(logrus.Fields{"reference": reference, "inspection_id": inspectionID, "source": source}).
			Warn("Payment amount mismatch")
		return nil, mismatch
	}
	if !conf.AlreadyProcessed {
		var insp domain.VehicleInspection
		if err := p.db.WithContext(ctx).Select("id", "customer_id").First(&insp, inspectionID).Error; err == nil {
			p.afterSettle(ctx, conf, source, insp.CustomerID)
		}
	} else {
		logrus.WithFields(logrus.Fields{"reference": reference, "source": source}).Info("Payment already processed")
	}
	return conf, nil
}

// settle completes the payment transaction, marks the inspection paid and
// moves it to draft, then applies the revenue split; tx must hold the inspection lock
func (p *Payments) settle(tx *gorm.DB, insp *domain.VehicleInspection, payTx *domain.Transaction) (*PaymentConfirmation, error) {
	now := p.now()
	if payTx.Status != domain.TxCompleted {
		payTx.Status = domain.TxCompleted
		payTx.CompletedAt = &now
		payTx.RelatedInspectionID = &insp.ID
		if err := tx.Model(payTx).Updates(map[string]any{
			"status":                domain.TxCompleted,
			"completed_at":          now,
			"related_inspection_id": insp.ID,
		}).Error; err != nil {
			return nil, err
		}
	}
	if insp.PaymentTransactionID != nil && *insp.PaymentTransactionID != payTx.ID {
		return nil, domain.NewError(domain.KindIntegrityViolation, "inspection %d already has a payment transaction", insp.ID)
	}
	insp.PaymentStatus = domain.PaymentPaid
	insp.PaymentTransactionID = &payTx.ID
	insp.PaidAt = &now
	if err := insp.TransitionTo(domain.InspectionDraft, now); err != nil {
		return nil, err
	}
	if err := tx.Model(insp).Updates(map[string]any{
		"status":                 insp.Status,
		"payment_status":         insp.PaymentStatus,
		"payment_transaction_id": payTx.ID,
		"paid_at":                now,
	}).Error; err != nil {
		return nil, mapDBError(err, "inspection payment")
	}
	split, _, err := p.revenue.applySplit(tx, insp)
	if err != nil {
		return nil, err
	}
	return confirmation(insp, payTx, split, false), nil
}

// existing builds the confirmation of a payment processed earlier
func (p *Payments) existing(tx *gorm.DB, insp *domain.VehicleInspection, payTx *domain.Transaction) (*PaymentConfirmation, error) {
	var split domain.InspectionRevenueSplit
	var splitPtr *domain.InspectionRevenueSplit
	err := tx.Where("inspection_id = ?", insp.ID).First(&split).Error
	switch {
	case err == nil:
		splitPtr = &split
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return confirmation(insp, payTx, splitPtr, true), nil
}

// alreadyConfirmed returns the stored result when reference was completed earlier
func (p *Payments) alreadyConfirmed(ctx context.Context, reference string) (*PaymentConfirmation, bool) {
	var payTx domain.Transaction
	db := p.db.WithContext(ctx)
	if err := db.Where("external_reference = ? AND status = ? AND type = ?", reference, domain.TxCompleted, domain.TxPayment).
		First(&payTx).Error; err != nil || payTx.RelatedInspectionID == nil {
		return nil, false
	}
	var insp domain.VehicleInspection
	if err := db.First(&insp, *payTx.RelatedInspectionID).Error; err != nil {
		return nil, false
	}
	conf, err := p.existing(db, &insp, &payTx)
	if err != nil {
		return nil, false
	}
	return conf, true
}

// afterSettle logs the confirmation and drops cached wallet views
func (p *Payments) afterSettle(ctx context.Context, conf *PaymentConfirmation, source ConfirmSource, customerID uint) {
	fields := logrus.Fields{
		"inspection_id":  conf.InspectionID,
		"reference":      conf.Reference,
		"transaction_id": conf.TransactionID,
		"amount":         conf.Amount.StringFixed(2),
		"source":         source,
	}
	users := []uint{customerID}
	if conf.Split != nil {
		fields["dealer_share"] = conf.Split.DealerShare.StringFixed(2)
		users = append(users, conf.Split.DealerID)
	}
	logrus.WithFields(fields).Info("Payment confirmed")
	p.cache.InvalidateWallet(ctx, users...)
}

// inspectionFor finds the inspection a reference pays for
func (p *Payments) inspectionFor(ctx context.Context, reference string, v *gateway.Verification) (uint, error) {
	var payTx domain.Transaction
	err := p.db.WithContext(ctx).Where("external_reference = ?", reference).First(&payTx).Error
	if err == nil && payTx.RelatedInspectionID != nil {
		return *payTx.RelatedInspectionID, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if id, ok := v.InspectionID(); ok {
		return id, nil
	}
	return 0, domain.ValidationError("reference %s is not linked to an inspection", reference).WithCode("unknown_reference")
}

// markFailed records a failed verification on a still-pending payment transaction
func (p *Payments) markFailed(ctx context.Context, reference, reason string) {
	res := p.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("external_reference = ? AND status = ?", reference, domain.TxPending).
		Updates(map[string]any{"status": domain.TxFailed, "description": truncate("payment failed: "+reason, 255)})
	if res.Error != nil {
		logrus.WithFields(logrus.Fields{"reference": reference, "error": res.Error.Error()}).Error("Could not mark payment failed")
		return
	}
	if res.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{"reference": reference, "reason": reason}).Warn("Payment failed")
	}
}

// getOrCreatePayment locks the payment transaction for reference, creating it
// when the gateway confirmed a charge we never recorded (e.g. webhook first)
func getOrCreatePayment(tx *gorm.DB, reference string, insp *domain.VehicleInspection, v *gateway.Verification) (*domain.Transaction, error) {
	var payTx domain.Transaction
	err := forUpdate(tx).Where("external_reference = ?", reference).First(&payTx).Error
	if err == nil {
		return &payTx, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	payTx = domain.Transaction{
		Type:                domain.TxPayment,
		Amount:              v.Amount,
		Currency:            v.Currency,
		Status:              domain.TxPending,
		Sender:              "customer:" + uintString(insp.CustomerID),
		Recipient:           "platform",
		ExternalReference:   &reference,
		RelatedInspectionID: &insp.ID,
		Description:         "inspection fee",
	}
	if payTx.Currency == "" {
		payTx.Currency = insp.Currency
	}
	if err := tx.Create(&payTx).Error; err != nil {
		return nil, mapDBError(err, "payment transaction")
	}
	return &payTx, nil
}

// checkReferenceOwner refuses a reference that pays for another inspection
func checkReferenceOwner(reference string, owner, expected uint) error {
	if owner == expected {
		return nil
	}
	return domain.NewError(domain.KindIntegrityViolation, "reference %s does not pay for inspection %d", reference, expected).
		WithCode("reference_mismatch")
}

// checkPayable enforces the preconditions of pay
func checkPayable(insp *domain.VehicleInspection, customerID uint, amount decimal.Decimal) error {
	if insp.CustomerID != customerID {
		return domain.NewError(domain.KindForbidden, "only the customer of record can pay for this inspection")
	}
	if insp.PaymentStatus == domain.PaymentPaid {
		return domain.NewError(domain.KindAlreadyProcessed, "inspection %d is already paid", insp.ID).
			WithDetail("payment_transaction_id", insp.PaymentTransactionID).
			WithDetail("status", insp.Status)
	}
	if insp.Status != domain.InspectionPendingPayment {
		return domain.NewError(domain.KindInvalidTransition, "inspection %d is %s and cannot be paid", insp.ID, insp.Status)
	}
	if !amount.Equal(insp.InspectionFee) {
		return domain.ValidationError("amount must equal the inspection fee").
			WithDetail("inspection_fee", insp.InspectionFee.StringFixed(2)).
			WithDetail("amount", amount.StringFixed(2))
	}
	return nil
}

func confirmation(insp *domain.VehicleInspection, payTx *domain.Transaction, split *domain.InspectionRevenueSplit, already bool) *PaymentConfirmation {
	ref := ""
	if payTx.ExternalReference != nil {
		ref = *payTx.ExternalReference
	}
	return &PaymentConfirmation{
		InspectionID:     insp.ID,
		TransactionID:    payTx.ID,
		Reference:        ref,
		Amount:           payTx.Amount,
		InspectionStatus: insp.Status,
		PaymentStatus:    insp.PaymentStatus,
		PaidAt:           insp.PaidAt,
		AlreadyProcessed: already,
		Split:            split,
	}
}

func methodOrCard(m PaymentMethod) PaymentMethod {
	if m == "" {
		return MethodCard
	}
	return m
}

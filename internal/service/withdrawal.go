package service

import (
	"context" // Request scoping
	"errors"  // Error inspection
	"strings" // Input trimming
	"time"    // Timestamps

	"inspection_system/internal/domain"  // Models and errors
	"inspection_system/internal/gateway" // Account resolution
	"inspection_system/internal/utils"   // Cache and references

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Withdrawals runs the request/approve/process payout pipeline
type Withdrawals struct {
	db    *gorm.DB        // Database handle
	gw    gateway.Gateway // Bank account resolution
	cache *utils.Cache    // Wallet cache invalidation
	now   Clock           // Time source
}

// NewWithdrawals returns the withdrawal service
func NewWithdrawals(db *gorm.DB, gw gateway.Gateway, cache *utils.Cache) *Withdrawals {
	return &Withdrawals{db: db, gw: gw, cache: cache, now: time.Now}
}

// WithdrawalFilter narrows an admin listing
type WithdrawalFilter struct {
	Status   domain.WithdrawalStatus
	UserID   uint
	Page     int
	PageSize int
}

// Create files a payout request. Nothing is reserved until approval, but the
// amount must fit the available balance at request time.
func (s *Withdrawals) Create(ctx context.Context, userID uint, amount decimal.Decimal, bank domain.BankDetails) (*domain.WithdrawalRequest, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	var wallet domain.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, mapDBError(err, "wallet")
	}
	if wallet.RetiredAt != nil {
		return nil, domain.ValidationError("wallet is retired")
	}
	if wallet.AvailableBalance.LessThan(amount) {
		return nil, insufficient(&wallet, amount)
	}
	account, err := s.gw.ResolveAccount(ctx, strings.TrimSpace(bank.AccountNumber), strings.TrimSpace(bank.BankCode))
	if err != nil {
		return nil, err
	}
	req := domain.WithdrawalRequest{
		WalletID:          wallet.ID,
		UserID:            userID,
		Amount:            amount,
		Currency:          wallet.Currency,
		Status:            domain.WithdrawalPending,
		BankAccountName:   truncate(account.AccountName, 120),
		BankAccountNumber: account.AccountNumber,
		BankCode:          account.BankCode,
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, mapDBError(err, "withdrawal request")
	}
	logrus.WithFields(logrus.Fields{
		"withdrawal_id": req.ID,
		"user_id":       userID,
		"amount":        amount.StringFixed(2),
	}).Info("Withdrawal requested")
	return &req, nil
}

// Approve re-checks the balance under lock and places a hold for the amount
func (s *Withdrawals) Approve(ctx context.Context, id, adminID uint) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findLocked(tx, &req, id, "withdrawal request"); err != nil {
			return err
		}
		if req.Status != domain.WithdrawalPending {
			return invalidWithdrawal(&req, "approved")
		}
		wallet, err := lockWalletByUser(tx, req.UserID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance.LessThan(req.Amount) {
			return insufficient(wallet, req.Amount).
				WithCode("balance_dropped_since_request").
				WithDetail("withdrawal_id", req.ID)
		}
		now := s.now()
		held, err := hold(tx, wallet, req.Amount, entry{
			Type:        domain.TxWithdraw,
			Sender:      walletRef(req.UserID),
			Recipient:   "bank:" + req.BankCode + ":" + req.BankAccountNumber,
			Description: "withdrawal hold",
		}, now)
		if err != nil {
			return err
		}
		req.Status = domain.WithdrawalApproved
		req.HoldTransactionID = &held.ID
		req.ApprovedBy = &adminID
		req.ApprovedAt = &now
		return tx.Model(&req).Updates(map[string]any{
			"status":              req.Status,
			"hold_transaction_id": held.ID,
			"approved_by":         adminID,
			"approved_at":         now,
		}).Error
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"withdrawal_id": id, "admin_id": adminID, "error": err.Error()}).Warn("Withdrawal approval failed")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"withdrawal_id": id, "admin_id": adminID, "amount": req.Amount.StringFixed(2)}).Info("Withdrawal approved")
	s.cache.InvalidateWallet(ctx, req.UserID)
	return &req, nil
}

// Process settles the hold of an approved request once the payout is sent
func (s *Withdrawals) Process(ctx context.Context, id, adminID uint, payoutReference string) (*domain.WithdrawalRequest, error) {
	payoutReference = strings.TrimSpace(payoutReference)
	if payoutReference == "" {
		payoutReference = utils.PayoutReference(id)
	}
	var req domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findLocked(tx, &req, id, "withdrawal request"); err != nil {
			return err
		}
		if req.Status != domain.WithdrawalApproved {
			return invalidWithdrawal(&req, "processed")
		}
		if req.HoldTransactionID == nil {
			return domain.NewError(domain.KindIntegrityViolation, "approved withdrawal %d has no hold", req.ID)
		}
		wallet, err := lockWalletByUser(tx, req.UserID)
		if err != nil {
			return err
		}
		var held domain.Transaction
		if err := findLocked(tx, &held, *req.HoldTransactionID, "hold transaction"); err != nil {
			return err
		}
		now := s.now()
		if err := settleHold(tx, wallet, &held, payoutReference, now); err != nil {
			return mapDBError(err, "payout reference")
		}
		req.Status = domain.WithdrawalCompleted
		req.PayoutReference = &payoutReference
		req.ProcessedBy = &adminID
		req.ProcessedAt = &now
		return tx.Model(&req).Updates(map[string]any{
			"status":           req.Status,
			"payout_reference": payoutReference,
			"processed_by":     adminID,
			"processed_at":     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"withdrawal_id":    id,
		"admin_id":         adminID,
		"payout_reference": payoutReference,
	}).Info("Withdrawal processed")
	s.cache.InvalidateWallet(ctx, req.UserID)
	return &req, nil
}

// Reject closes a pending or approved request and releases any hold
func (s *Withdrawals) Reject(ctx context.Context, id, adminID uint, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError("a rejection reason is required")
	}
	var req domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findLocked(tx, &req, id, "withdrawal request"); err != nil {
			return err
		}
		if req.Status != domain.WithdrawalPending && req.Status != domain.WithdrawalApproved {
			return invalidWithdrawal(&req, "rejected")
		}
		if req.HoldTransactionID != nil {
			wallet, err := lockWalletByUser(tx, req.UserID)
			if err != nil {
				return err
			}
			var held domain.Transaction
			if err := findLocked(tx, &held, *req.HoldTransactionID, "hold transaction"); err != nil {
				return err
			}
			if err := releaseHold(tx, wallet, &held, reason); err != nil {
				return err
			}
		}
		now := s.now()
		req.Status = domain.WithdrawalRejected
		req.RejectionReason = &reason
		req.RejectedAt = &now
		return tx.Model(&req).Updates(map[string]any{
			"status":           req.Status,
			"rejection_reason": reason,
			"rejected_at":      now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"withdrawal_id": id, "admin_id": adminID, "reason": reason}).Info("Withdrawal rejected")
	s.cache.InvalidateWallet(ctx, req.UserID)
	return &req, nil
}

// Get returns one request
func (s *Withdrawals) Get(ctx context.Context, id uint) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, mapDBError(err, "withdrawal request")
	}
	return &req, nil
}

// List returns requests for the admin queue, oldest pending first
func (s *Withdrawals) List(ctx context.Context, f WithdrawalFilter) ([]domain.WithdrawalRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.WithdrawalRequest{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.WithdrawalRequest
	err := query.Order("created_at asc, id asc").Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).Find(&rows).Error
	return rows, total, err
}

// HandleTransferEvent reconciles a payout notification. A failed or reversed
// transfer credits the amount back once, keyed by the payout reference.
func (s *Withdrawals) HandleTransferEvent(ctx context.Context, event, reference string) error {
	if reference == "" {
		return domain.ValidationError("transfer event without reference")
	}
	var req domain.WithdrawalRequest
	if err := s.db.WithContext(ctx).Where("payout_reference = ?", reference).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{"event": event, "reference": reference}).Warn("Transfer event for unknown payout")
			return nil
		}
		return err
	}
	switch event {
	case gateway.EventTransferSuccess:
		logrus.WithFields(logrus.Fields{"withdrawal_id": req.ID, "reference": reference}).Info("Payout confirmed by gateway")
		return nil
	case gateway.EventTransferFailed, gateway.EventTransferReversed:
	default:
		return nil
	}
	reversal := "reversal:" + reference
	credited := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Transaction{}).Where("external_reference = ?", reversal).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		wallet, err := lockWalletByUser(tx, req.UserID)
		if err != nil {
			return err
		}
		_, err = credit(tx, wallet, req.Amount, entry{
			Type:        domain.TxDeposit,
			Sender:      "gateway:" + event,
			Recipient:   walletRef(req.UserID),
			Reference:   &reversal,
			Description: "payout " + strings.TrimPrefix(event, "transfer.") + ", funds returned",
		}, s.now())
		credited = err == nil
		return err
	})
	if err != nil {
		if isConflict(err) {
			return nil // Another delivery of the same event won the insert
		}
		return err
	}
	if credited {
		logrus.WithFields(logrus.Fields{
			"withdrawal_id": req.ID,
			"reference":     reference,
			"event":         event,
			"amount":        req.Amount.StringFixed(2),
		}).Warn("Payout returned, wallet credited")
		s.cache.InvalidateWallet(ctx, req.UserID)
	}
	return nil
}

// invalidWithdrawal reports an action not allowed from the current status
func invalidWithdrawal(req *domain.WithdrawalRequest, action string) error {
	return domain.NewError(domain.KindInvalidTransition, "withdrawal %d is %s and cannot be %s", req.ID, req.Status, action).
		WithDetail("status", req.Status)
}

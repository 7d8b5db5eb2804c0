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

// Ledger owns wallets and their append-only transactions
type Ledger struct {
	db       *gorm.DB     // Database handle
	cache    *utils.Cache // Read cache, may be nil
	currency string       // Wallet currency
	now      Clock        // Time source
}

// NewLedger returns a ledger service
func NewLedger(db *gorm.DB, cache *utils.Cache, currency string) *Ledger {
	return &Ledger{db: db, cache: cache, currency: currency, now: time.Now}
}

// Page is a paginated list of transactions
type Page struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// entry describes a ledger movement before it is written
type entry struct {
	Type         domain.TransactionType
	Sender       string
	Recipient    string
	Reference    *string
	InspectionID *uint
	Description  string
}

// Provision creates the wallet of a user if it does not exist yet
func (l *Ledger) Provision(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := provisionWallet(tx, userID, l.currency)
		if err != nil {
			return err
		}
		wallet = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Wallet returns the wallet of a user, read through the cache
func (l *Ledger) Wallet(ctx context.Context, userID uint) (*domain.Wallet, bool, error) {
	var wallet domain.Wallet
	if l.cache.Get(ctx, utils.WalletKey(userID), &wallet) {
		return &wallet, true, nil
	}
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, false, mapDBError(err, "wallet")
	}
	l.cache.Set(ctx, utils.WalletKey(userID), wallet)
	return &wallet, false, nil
}

// History returns a page of a user's wallet transactions, newest first
func (l *Ledger) History(ctx context.Context, userID uint, page, pageSize int) (*Page, bool, error) {
	var cached Page
	key := utils.TxHistoryKey(userID, page, pageSize)
	if l.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	var wallet domain.Wallet
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, false, mapDBError(err, "wallet")
	}
	result := Page{Page: page, PageSize: pageSize}
	query := l.db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID)
	if err := query.Count(&result.Total).Error; err != nil {
		return nil, false, err
	}
	if err := query.Order("created_at desc, id desc").Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&result.Transactions).Error; err != nil {
		return nil, false, err
	}
	result.TotalPages = (int(result.Total) + pageSize - 1) / pageSize // Calculate total pages
	l.cache.Set(ctx, key, result)
	return &result, false, nil
}

// Deposit credits a wallet from outside the platform (admin funding)
func (l *Ledger) Deposit(ctx context.Context, userID uint, amount decimal.Decimal, note string) (*domain.Transaction, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	var created *domain.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWalletByUser(tx, userID)
		if err != nil {
			return err
		}
		created, err = credit(tx, wallet, amount, entry{
			Type:        domain.TxDeposit,
			Sender:      "external",
			Recipient:   walletRef(userID),
			Description: note,
		}, l.now())
		return err
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,          // User ID
			"amount":  amount.String(), // Deposit amount
			"error":   err.Error(),     // Error message
		}).Error("Deposit failed")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"amount":         amount.String(),
		"transaction_id": created.ID,
	}).Info("Deposit transaction")
	l.cache.InvalidateWallet(ctx, userID)
	return created, nil
}

// Transfer moves funds between two wallets as a transfer_out/transfer_in pair
func (l *Ledger) Transfer(ctx context.Context, fromUserID, toUserID uint, amount decimal.Decimal) (*domain.Transaction, *domain.Transaction, error) {
	if err := requirePositive(amount); err != nil {
		return nil, nil, err
	}
	if fromUserID == toUserID {
		return nil, nil, domain.ValidationError("cannot transfer to yourself")
	}
	var out, in *domain.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock both wallets in user id order so opposite transfers cannot deadlock
		first, second := fromUserID, toUserID
		if second < first {
			first, second = second, first
		}
		locked := map[uint]*domain.Wallet{}
		for _, id := range []uint{first, second} {
			w, err := lockWalletByUser(tx, id)
			if err != nil {
				return err
			}
			locked[id] = w
		}
		now := l.now()
		var err error
		out, err = debit(tx, locked[fromUserID], amount, entry{
			Type:      domain.TxTransferOut,
			Sender:    walletRef(fromUserID),
			Recipient: walletRef(toUserID),
		}, now)
		if err != nil {
			return err
		}
		in, err = credit(tx, locked[toUserID], amount, entry{
			Type:      domain.TxTransferIn,
			Sender:    walletRef(fromUserID),
			Recipient: walletRef(toUserID),
		}, now)
		return err
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"from_user_id": fromUserID,      // Sender user ID
			"to_user_id":   toUserID,        // Recipient user ID
			"amount":       amount.String(), // Transfer amount
			"error":        err.Error(),     // Error message
		}).Error("Transfer failed")
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
		"amount":       amount.String(),
	}).Info("Transfer transaction")
	l.cache.InvalidateWallet(ctx, fromUserID, toUserID)
	return out, in, nil
}

// Retire closes an empty wallet; wallets are never deleted
func (l *Ledger) Retire(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = lockWalletByUser(tx, userID)
		if err != nil {
			return err
		}
		if !wallet.LedgerBalance.IsZero() || !wallet.AvailableBalance.IsZero() {
			return domain.ValidationError("only zero-balance wallets can be retired").
				WithDetail("ledger_balance", wallet.LedgerBalance.StringFixed(2))
		}
		if wallet.RetiredAt != nil {
			return nil
		}
		now := l.now()
		wallet.RetiredAt = &now
		return tx.Model(wallet).Update("retired_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	l.cache.InvalidateWallet(ctx, userID)
	return wallet, nil
}

// provisionWallet returns the user's wallet, creating it inside tx when missing
func provisionWallet(tx *gorm.DB, userID uint, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	wallet = domain.NewWallet(userID, currency)
	if err := tx.Create(&wallet).Error; err != nil {
		return nil, mapDBError(err, "wallet")
	}
	return &wallet, nil
}

// lockWalletByUser loads a wallet under a row lock for a read-modify-write
func lockWalletByUser(tx *gorm.DB, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := forUpdate(tx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, mapDBError(err, "wallet")
	}
	if wallet.RetiredAt != nil {
		return nil, domain.ValidationError("wallet of user %d is retired", userID)
	}
	return &wallet, nil
}

// saveBalances writes both balance columns of a locked wallet
func saveBalances(tx *gorm.DB, wallet *domain.Wallet) error {
	if !wallet.Consistent() {
		return domain.NewError(domain.KindIntegrityViolation, "wallet %d balance invariant violated", wallet.ID)
	}
	return tx.Model(wallet).Updates(map[string]any{
		"ledger_balance":    wallet.LedgerBalance,
		"available_balance": wallet.AvailableBalance,
	}).Error
}

// credit adds amount to a locked wallet and records a completed entry
func credit(tx *gorm.DB, wallet *domain.Wallet, amount decimal.Decimal, e entry, now time.Time) (*domain.Transaction, error) {
	wallet.LedgerBalance = wallet.LedgerBalance.Add(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(amount)
	if err := saveBalances(tx, wallet); err != nil {
		return nil, err
	}
	return record(tx, wallet, amount, e, domain.TxCompleted, now)
}

// debit removes amount from a locked wallet, refusing to overdraw available funds
func debit(tx *gorm.DB, wallet *domain.Wallet, amount decimal.Decimal, e entry, now time.Time) (*domain.Transaction, error) {
	if wallet.AvailableBalance.LessThan(amount) {
		return nil, insufficient(wallet, amount)
	}
	wallet.LedgerBalance = wallet.LedgerBalance.Sub(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(amount)
	if err := saveBalances(tx, wallet); err != nil {
		return nil, err
	}
	return record(tx, wallet, amount, e, domain.TxCompleted, now)
}

// hold reserves amount on a locked wallet; the ledger balance is untouched
func hold(tx *gorm.DB, wallet *domain.Wallet, amount decimal.Decimal, e entry, now time.Time) (*domain.Transaction, error) {
	if wallet.AvailableBalance.LessThan(amount) {
		return nil, insufficient(wallet, amount)
	}
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(amount)
	if err := saveBalances(tx, wallet); err != nil {
		return nil, err
	}
	return record(tx, wallet, amount, e, domain.TxLocked, now)
}

// settleHold turns a locked entry into a completed debit of the ledger balance
func settleHold(tx *gorm.DB, wallet *domain.Wallet, held *domain.Transaction, reference string, now time.Time) error {
	if held.Status != domain.TxLocked {
		return domain.NewError(domain.KindIntegrityViolation, "transaction %d is %s, not locked", held.ID, held.Status)
	}
	if wallet.LedgerBalance.LessThan(held.Amount) {
		return insufficient(wallet, held.Amount)
	}
	wallet.LedgerBalance = wallet.LedgerBalance.Sub(held.Amount)
	if err := saveBalances(tx, wallet); err != nil {
		return err
	}
	held.Status = domain.TxCompleted
	held.CompletedAt = &now
	held.ExternalReference = &reference
	return tx.Model(held).Updates(map[string]any{
		"status":             held.Status,
		"completed_at":       now,
		"external_reference": reference,
	}).Error
}

// releaseHold returns a locked amount to the available balance
func releaseHold(tx *gorm.DB, wallet *domain.Wallet, held *domain.Transaction, reason string) error {
	if held.Status != domain.TxLocked {
		return domain.NewError(domain.KindIntegrityViolation, "transaction %d is %s, not locked", held.ID, held.Status)
	}
	wallet.AvailableBalance = wallet.AvailableBalance.Add(held.Amount)
	if err := saveBalances(tx, wallet); err != nil {
		return err
	}
	held.Status = domain.TxReversed
	held.Description = truncate("hold released: "+reason, 255)
	return tx.Model(held).Updates(map[string]any{"status": held.Status, "description": held.Description}).Error
}

// record appends a ledger entry for a wallet
func record(tx *gorm.DB, wallet *domain.Wallet, amount decimal.Decimal, e entry, status domain.TransactionStatus, now time.Time) (*domain.Transaction, error) {
	t := domain.Transaction{
		WalletID:            &wallet.ID,
		Type:                e.Type,
		Amount:              amount,
		Currency:            wallet.Currency,
		Status:              status,
		Sender:              e.Sender,
		Recipient:           e.Recipient,
		ExternalReference:   e.Reference,
		RelatedInspectionID: e.InspectionID,
		Description:         e.Description,
	}
	if status == domain.TxCompleted {
		t.CompletedAt = &now
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, mapDBError(err, "transaction")
	}
	return &t, nil
}

// insufficient builds the InsufficientBalance error with the current balance
func insufficient(wallet *domain.Wallet, amount decimal.Decimal) *domain.AppError {
	return domain.NewError(domain.KindInsufficientBalance, "insufficient balance for %s", amount.StringFixed(2)).
		WithDetail("available_balance", wallet.AvailableBalance.StringFixed(2)).
		WithDetail("ledger_balance", wallet.LedgerBalance.StringFixed(2)).
		WithDetail("requested", amount.StringFixed(2))
}

// requirePositive rejects zero, negative, and sub-cent amounts
func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ValidationError("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.ValidationError("amount supports at most two decimal places")
	}
	return nil
}

// walletRef is the free-text party reference of a user's wallet
func walletRef(userID uint) string {
	return "wallet:user:" + uintString(userID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

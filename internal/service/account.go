package service

import (
	"context" // Request scoping
	"strings" // Normalization

	"inspection_system/internal/domain" // Models and errors

	"github.com/sirupsen/logrus" // Structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Accounts registers and authenticates users
type Accounts struct {
	db       *gorm.DB // Database handle
	currency string   // Currency of provisioned wallets
	cost     int      // bcrypt cost
}

// NewAccounts returns the account service
func NewAccounts(db *gorm.DB, currency string) *Accounts {
	return &Accounts{db: db, currency: currency, cost: bcrypt.DefaultCost}
}

// RegisterInput is a new account
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// Register creates the user and their wallet in one unit
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if !in.Role.Valid() {
		return nil, domain.ValidationError("unknown role %q", in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return nil, err
	}
	// Lowercase username to ensure uniqueness
	user := domain.User{
		Username: strings.ToLower(in.Username),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: string(hash),
		Role:     in.Role,
	}
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Wallet").Create(&user).Error; err != nil {
			return mapDBError(err, "username")
		}
		wallet, err := provisionWallet(tx, user.ID, a.currency)
		if err != nil {
			return err
		}
		user.Wallet = *wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return &user, nil
}

// Authenticate checks credentials; both unknown user and wrong password are Forbidden
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	var user domain.User
	if err := a.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		return nil, domain.NewError(domain.KindForbidden, "invalid credentials").WithCode("invalid_credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.NewError(domain.KindForbidden, "invalid credentials").WithCode("invalid_credentials")
	}
	return &user, nil
}

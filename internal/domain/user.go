package domain

// Role is the account type of a user
type Role string

const (
	RoleCustomer  Role = "customer"  // Pays for inspections
	RoleDealer    Role = "dealer"    // Beneficiary of the revenue split
	RoleInspector Role = "inspector" // Executes inspections
	RoleAdmin     Role = "admin"     // Platform operator
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDealer, RoleInspector, RoleAdmin:
		return true
	}
	return false
}

// User Model
type User struct {
	ID       uint   `gorm:"primaryKey"`                                     // Primary key
	Username string `gorm:"unique;not null"`                                // Unique username
	Email    string `gorm:"size:255"`                                       // Email used for gateway checkout
	Password string `gorm:"not null" json:"-"`                              // Hashed password
	Role     Role   `gorm:"size:20;default:customer"`                       // Role: customer, dealer, inspector, admin
	Wallet   Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
}

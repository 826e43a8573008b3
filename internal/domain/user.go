package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Role is the coarse authorization attribute carried by a principal.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// KYCStatusPending is the status given to newly registered users.
const KYCStatusPending = "pending"

// User is a bank customer able to authenticate.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	CustomerID   string
	KYCStatus    string
	Role         Role
	Enabled      bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name returns the display name.
func (u *User) Name() string {
	return u.FirstName + " " + u.LastName
}

// NewCustomerID builds an identifier of the form QB<year>-<4 digits>.
func NewCustomerID(now time.Time) string {
	return fmt.Sprintf("QB%d-%04d", now.Year(), rand.IntN(10000))
}

package dto

import (
	"time"

	"github.com/spec-kit/banking-auth/internal/domain"
)

// RegisterRequest payload for new customers.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token      string    `json:"token"`
	Type       string    `json:"type"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Algorithm  string    `json:"algorithm"`
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      string    `json:"phone,omitempty"`
	CustomerID string    `json:"customerId"`
	KYCStatus  string    `json:"kycStatus"`
	Role       string    `json:"role"`
}

// NewAuthResponse flattens a user and its issued token.
func NewAuthResponse(user *domain.User, issued *domain.IssuedToken) AuthResponse {
	return AuthResponse{
		Token:      issued.Value,
		Type:       "Bearer",
		ExpiresAt:  issued.ExpiresAt,
		Algorithm:  issued.Algorithm,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Name:       user.Name(),
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Phone:      user.Phone,
		CustomerID: user.CustomerID,
		KYCStatus:  user.KYCStatus,
		Role:       string(user.Role),
	}
}

// ValidateResponse reports a token check.
type ValidateResponse struct {
	Valid     bool   `json:"valid"`
	Algorithm string `json:"algorithm"`
}

// KYCStatusResponse describes a user's KYC state.
type KYCStatusResponse struct {
	UserID     int64  `json:"userId"`
	Username   string `json:"username"`
	KYCStatus  string `json:"kycStatus"`
	CustomerID string `json:"customerId"`
}

// PublicKeyResponse carries a standard base64 encoded public key.
type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
	Algorithm string `json:"algorithm"`
}

// SessionResponse echoes the authenticated principal to the caller.
type SessionResponse struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Algorithm   string    `json:"algorithm"`
	PostQuantum bool      `json:"postQuantum"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

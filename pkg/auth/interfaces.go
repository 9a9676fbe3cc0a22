// Package auth provides authentication and authorization functionality.
package auth

import (
	"time"
)

// AccountService manages accounts and authentication
type AccountService interface {
	// Authenticate verifies credentials and returns an account ID
	Authenticate(username, password string) (string, error)

	// ValidateToken verifies a bearer token and returns an account ID
	ValidateToken(token string) (string, error)

	// CreateAccount creates a new account
	CreateAccount(username, password, email string) (string, error)

	// DeleteAccount removes an account
	DeleteAccount(accountID string) error

	// GetAccount retrieves account information
	GetAccount(accountID string) (Account, error)

	// DeductCredits atomically reserves credits for a generation and
	// returns the new balance. ErrInsufficientCredits when the balance
	// is too low.
	DeductCredits(accountID string, amount int) (int, error)

	// ListAccounts returns all accounts (admin only)
	ListAccounts() ([]Account, error)
}

// Account represents a tenant in the system
type Account struct {
	// ID of the account
	ID string `json:"id"`

	// Username for the account
	Username string `json:"username"`

	// Email address for billing and notifications
	Email string `json:"email,omitempty"`

	// PasswordHash is the hashed password (not exposed via API)
	PasswordHash string `json:"-"`

	// APIToken for authentication
	APIToken string `json:"-"`

	// Credits available for generation requests
	Credits int `json:"credits"`

	// CreatedAt is when the account was created
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the account was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer links an account to the payment provider
type Customer struct {
	// AccountID of the owning account
	AccountID string `json:"account_id"`

	// ProviderCustomerID is the payment provider's customer ID
	ProviderCustomerID string `json:"provider_customer_id"`

	// Email registered with the payment provider
	Email string `json:"email,omitempty"`

	// CreatedAt is when the mapping was stored
	CreatedAt time.Time `json:"created_at"`
}

package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/storage"
)

// AccountService implements the auth.AccountService interface
type AccountService struct {
	store          storage.AccountStore
	jwtService     *JWTService
	initialCredits int
}

// NewAccountService creates a new account service with the given storage backend
func NewAccountService(store storage.AccountStore) *AccountService {
	return &AccountService{
		store: store,
	}
}

// WithJWTService enables JWT validation in addition to API tokens
func (s *AccountService) WithJWTService(jwtService *JWTService) *AccountService {
	s.jwtService = jwtService
	return s
}

// WithInitialCredits sets the credit balance granted to new accounts
func (s *AccountService) WithInitialCredits(credits int) *AccountService {
	s.initialCredits = credits
	return s
}

// Authenticate verifies credentials and returns an account ID
func (s *AccountService) Authenticate(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required")
	}

	account, err := s.store.GetAccountByUsername(username)
	if err != nil {
		return "", fmt.Errorf("authentication failed")
	}

	err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password))
	if err != nil {
		return "", fmt.Errorf("authentication failed")
	}

	return account.ID, nil
}

// ValidateToken verifies a bearer token and returns an account ID. JWTs
// are tried first, then static API tokens.
func (s *AccountService) ValidateToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required")
	}

	if s.jwtService != nil {
		if accountID, err := s.jwtService.ValidateToken(token); err == nil {
			return accountID, nil
		}
	}

	account, err := s.store.GetAccountByToken(token)
	if err != nil {
		return "", fmt.Errorf("invalid token")
	}

	return account.ID, nil
}

// CreateAccount creates a new account
func (s *AccountService) CreateAccount(username, password, email string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required")
	}

	// Check if username already exists
	_, err := s.store.GetAccountByUsername(username)
	if err == nil {
		return "", fmt.Errorf("username already exists")
	}
	if err != storage.ErrAccountNotFound {
		return "", fmt.Errorf("failed to check username availability: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	apiToken, err := generateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate API token: %w", err)
	}

	accountID := uuid.New().String()
	now := time.Now()
	account := auth.Account{
		ID:           accountID,
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		APIToken:     apiToken,
		Credits:      s.initialCredits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.SaveAccount(account)
	if err != nil {
		return "", fmt.Errorf("failed to save account: %w", err)
	}

	return accountID, nil
}

// DeleteAccount removes an account
func (s *AccountService) DeleteAccount(accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account ID is required")
	}

	err := s.store.DeleteAccount(accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}

// GetAccount retrieves account information
func (s *AccountService) GetAccount(accountID string) (auth.Account, error) {
	if accountID == "" {
		return auth.Account{}, fmt.Errorf("account ID is required")
	}

	account, err := s.store.GetAccount(accountID)
	if err != nil {
		return auth.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// DeductCredits reserves credits for a generation and returns the new
// balance. storage.ErrInsufficientCredits passes through so callers can
// map it to a payment-required response.
func (s *AccountService) DeductCredits(accountID string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return s.store.AdjustCredits(accountID, -amount)
}

// ListAccounts returns all accounts (admin only)
func (s *AccountService) ListAccounts() ([]auth.Account, error) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// generateAPIToken generates a secure random API token
func generateAPIToken() (string, error) {
	bytes := make([]byte, 32) // 256 bits
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

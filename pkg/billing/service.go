package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/storage"
)

// ErrNoCustomer is returned by Portal when the account has never gone
// through checkout
var ErrNoCustomer = errors.New("no billing customer for account")

// Service coordinates checkout and portal sessions against the payment
// provider and the stored customer mappings
type Service struct {
	provider   Provider
	customers  storage.CustomerStore
	accounts   storage.AccountStore
	successURL string
	cancelURL  string
}

// NewService creates a billing service
func NewService(provider Provider, customers storage.CustomerStore, accounts storage.AccountStore, successURL, cancelURL string) *Service {
	return &Service{
		provider:   provider,
		customers:  customers,
		accounts:   accounts,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Checkout opens a checkout session for the account. A stored customer
// mapping that the provider no longer recognizes is deleted and recreated,
// and the session creation retried exactly once.
func (s *Service) Checkout(ctx context.Context, accountID, priceID string) (string, error) {
	customerID, err := s.ensureCustomer(ctx, accountID)
	if err != nil {
		return "", err
	}

	sessionURL, err := s.provider.CreateCheckoutSession(ctx, customerID, priceID, s.successURL, s.cancelURL)
	if errors.Is(err, ErrNoSuchCustomer) {
		// The stored mapping is stale; drop it and rebuild once
		if delErr := s.customers.DeleteCustomer(accountID); delErr != nil && !errors.Is(delErr, storage.ErrCustomerNotFound) {
			return "", fmt.Errorf("failed to delete stale customer mapping: %w", delErr)
		}
		customerID, err = s.ensureCustomer(ctx, accountID)
		if err != nil {
			return "", err
		}
		sessionURL, err = s.provider.CreateCheckoutSession(ctx, customerID, priceID, s.successURL, s.cancelURL)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sessionURL, nil
}

// Portal opens a billing portal session. ErrNoCustomer when the account
// has no stored customer mapping.
func (s *Service) Portal(ctx context.Context, accountID, returnURL string) (string, error) {
	customer, err := s.customers.GetCustomer(accountID)
	if errors.Is(err, storage.ErrCustomerNotFound) {
		return "", ErrNoCustomer
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up customer: %w", err)
	}

	sessionURL, err := s.provider.CreatePortalSession(ctx, customer.ProviderCustomerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sessionURL, nil
}

// ensureCustomer returns the stored provider customer ID, creating and
// persisting one when absent
func (s *Service) ensureCustomer(ctx context.Context, accountID string) (string, error) {
	customer, err := s.customers.GetCustomer(accountID)
	if err == nil {
		return customer.ProviderCustomerID, nil
	}
	if !errors.Is(err, storage.ErrCustomerNotFound) {
		return "", fmt.Errorf("failed to look up customer: %w", err)
	}

	account, err := s.accounts.GetAccount(accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	customerID, err := s.provider.CreateCustomer(ctx, account.Email, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to create provider customer: %w", err)
	}

	if err := s.customers.SaveCustomer(auth.Customer{
		AccountID:          accountID,
		ProviderCustomerID: customerID,
		Email:              account.Email,
		CreatedAt:          time.Now(),
	}); err != nil {
		return "", fmt.Errorf("failed to persist customer mapping: %w", err)
	}
	return customerID, nil
}

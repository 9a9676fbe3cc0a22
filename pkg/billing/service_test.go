package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/storage"
)

// mockProvider scripts provider behavior per call
type mockProvider struct {
	createdCustomers int
	checkoutCalls    int
	portalCalls      int

	// failCheckoutFor makes CreateCheckoutSession return ErrNoSuchCustomer
	// for this customer ID
	failCheckoutFor string
}

func (m *mockProvider) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	m.createdCustomers++
	return fmt.Sprintf("cus_%d", m.createdCustomers), nil
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	m.checkoutCalls++
	if customerID == m.failCheckoutFor {
		return "", ErrNoSuchCustomer
	}
	return "https://pay.example.com/session/" + customerID, nil
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	m.portalCalls++
	return "https://pay.example.com/portal/" + customerID, nil
}

func newBillingFixture(t *testing.T, provider Provider) (*Service, storage.CustomerStore) {
	accounts := storage.NewMemoryAccountStore()
	customers := storage.NewMemoryCustomerStore()
	require.NoError(t, accounts.SaveAccount(auth.Account{
		ID: "acct-1", Username: "ada", Email: "ada@example.com",
	}))
	svc := NewService(provider, customers, accounts, "https://app.example.com/success", "https://app.example.com/cancel")
	return svc, customers
}

func TestCheckoutCreatesCustomerOnFirstUse(t *testing.T) {
	provider := &mockProvider{}
	svc, customers := newBillingFixture(t, provider)

	url, err := svc.Checkout(context.Background(), "acct-1", "price_100")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/session/cus_1", url)

	stored, err := customers.GetCustomer("acct-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", stored.ProviderCustomerID)
}

func TestCheckoutReusesStoredCustomer(t *testing.T) {
	provider := &mockProvider{}
	svc, customers := newBillingFixture(t, provider)

	require.NoError(t, customers.SaveCustomer(auth.Customer{
		AccountID: "acct-1", ProviderCustomerID: "cus_existing",
	}))

	url, err := svc.Checkout(context.Background(), "acct-1", "price_100")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/session/cus_existing", url)
	assert.Equal(t, 0, provider.createdCustomers)
}

func TestCheckoutRetriesOnceOnStaleCustomer(t *testing.T) {
	provider := &mockProvider{failCheckoutFor: "cus_stale"}
	svc, customers := newBillingFixture(t, provider)

	require.NoError(t, customers.SaveCustomer(auth.Customer{
		AccountID: "acct-1", ProviderCustomerID: "cus_stale",
	}))

	url, err := svc.Checkout(context.Background(), "acct-1", "price_100")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/session/cus_1", url)
	assert.Equal(t, 2, provider.checkoutCalls)

	// The stale mapping was replaced
	stored, err := customers.GetCustomer("acct-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", stored.ProviderCustomerID)
}

func TestCheckoutDoesNotRetryTwice(t *testing.T) {
	// Every checkout fails, including the one after recreation
	provider := &mockProvider{failCheckoutFor: "cus_1"}
	svc, customers := newBillingFixture(t, provider)

	require.NoError(t, customers.SaveCustomer(auth.Customer{
		AccountID: "acct-1", ProviderCustomerID: "cus_1",
	}))

	_, err := svc.Checkout(context.Background(), "acct-1", "price_100")
	require.Error(t, err)
	assert.Equal(t, 2, provider.checkoutCalls)
}

func TestPortalRequiresCustomer(t *testing.T) {
	provider := &mockProvider{}
	svc, customers := newBillingFixture(t, provider)

	_, err := svc.Portal(context.Background(), "acct-1", "https://app.example.com/settings")
	assert.ErrorIs(t, err, ErrNoCustomer)

	require.NoError(t, customers.SaveCustomer(auth.Customer{
		AccountID: "acct-1", ProviderCustomerID: "cus_7",
	}))

	url, err := svc.Portal(context.Background(), "acct-1", "https://app.example.com/settings")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/portal/cus_7", url)
}

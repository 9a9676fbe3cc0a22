package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/loomstudio/loom/pkg/storage"
)

func TestAccountService_CreateAccount(t *testing.T) {
	store := storage.NewMemoryAccountStore()
	service := NewAccountService(store).WithInitialCredits(25)

	t.Run("successful creation", func(t *testing.T) {
		accountID, err := service.CreateAccount("testuser", "testpassword", "test@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, accountID)

		account, err := store.GetAccount(accountID)
		require.NoError(t, err)
		assert.Equal(t, "testuser", account.Username)
		assert.Equal(t, "test@example.com", account.Email)
		assert.Equal(t, 25, account.Credits)
		assert.Len(t, account.APIToken, 64) // 32 bytes hex encoded

		// Password is stored hashed
		assert.NotEqual(t, "testpassword", account.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("testpassword")))
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := service.CreateAccount("testuser", "otherpassword", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "username already exists")
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := service.CreateAccount("", "password", "")
		assert.Error(t, err)
		_, err = service.CreateAccount("user2", "", "")
		assert.Error(t, err)
	})
}

func TestAccountService_Authenticate(t *testing.T) {
	store := storage.NewMemoryAccountStore()
	service := NewAccountService(store)

	accountID, err := service.CreateAccount("ada", "correct-horse", "")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		got, err := service.Authenticate("ada", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Authenticate("ada", "wrong")
		assert.Error(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := service.Authenticate("nobody", "correct-horse")
		assert.Error(t, err)
	})
}

func TestAccountService_ValidateToken(t *testing.T) {
	store := storage.NewMemoryAccountStore()
	jwtService := NewJWTService("test-secret", 1)
	service := NewAccountService(store).WithJWTService(jwtService)

	accountID, err := service.CreateAccount("ada", "correct-horse", "")
	require.NoError(t, err)
	account, err := store.GetAccount(accountID)
	require.NoError(t, err)

	t.Run("API token", func(t *testing.T) {
		got, err := service.ValidateToken(account.APIToken)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("JWT", func(t *testing.T) {
		token, err := jwtService.GenerateToken(account)
		require.NoError(t, err)

		got, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := service.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestAccountService_DeductCredits(t *testing.T) {
	store := storage.NewMemoryAccountStore()
	service := NewAccountService(store).WithInitialCredits(10)

	accountID, err := service.CreateAccount("ada", "correct-horse", "")
	require.NoError(t, err)

	balance, err := service.DeductCredits(accountID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, balance)

	_, err = service.DeductCredits(accountID, 100)
	assert.ErrorIs(t, err, storage.ErrInsufficientCredits)

	// Failed deduction leaves the balance untouched
	account, err := store.GetAccount(accountID)
	require.NoError(t, err)
	assert.Equal(t, 6, account.Credits)

	_, err = service.DeductCredits(accountID, -1)
	assert.Error(t, err)
}

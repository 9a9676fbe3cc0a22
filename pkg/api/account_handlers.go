package api

import (
	"net/http"
)

// AccountRequest represents a request to create an account
type AccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse carries the session token issued on login
type LoginResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

// handleCreateAccount handles POST /api/v1/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	accountID, err := s.accountService.CreateAccount(req.Username, req.Password, req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// handleLogin handles POST /api/v1/login. Successful logins get a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accountID, err := s.accountService.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	token, err := s.jwtService.GenerateToken(account)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "internal error", "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, AccountID: accountID})
}

// handleGetCurrentAccount handles GET /api/v1/accounts/me
func (s *Server) handleGetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

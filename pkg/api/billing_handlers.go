package api

import (
	"errors"
	"net/http"

	"github.com/loomstudio/loom/pkg/billing"
)

// handleCheckout handles POST /api/v1/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req struct {
		PriceID string `json:"price_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "price_id is required")
		return
	}

	url, err := s.billingService.Checkout(r.Context(), accountID, req.PriceID)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "checkout failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleCustomerPortal handles POST /api/v1/customer-portal
func (s *Server) handleCustomerPortal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req struct {
		ReturnURL string `json:"return_url,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.config.Billing.AppBaseURL
	}

	url, err := s.billingService.Portal(r.Context(), accountID, returnURL)
	if err != nil {
		if errors.Is(err, billing.ErrNoCustomer) {
			writeError(w, http.StatusNotFound, "no billing customer for account")
			return
		}
		writeErrorDetail(w, http.StatusInternalServerError, "portal session failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loomstudio/loom/pkg/storage"
)

// errorResponse is the JSON error envelope returned by every handler
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErrorDetail writes the error envelope with a secondary message
func writeErrorDetail(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, errorResponse{Error: errMsg, Message: message})
}

// notFoundErrors are the storage sentinels that map to 404
var notFoundErrors = []error{
	storage.ErrCanvasNotFound,
	storage.ErrWorkflowNotFound,
	storage.ErrAssetNotFound,
	storage.ErrGenerationNotFound,
	storage.ErrAccountNotFound,
	storage.ErrCustomerNotFound,
	storage.ErrModelNotFound,
}

// writeStorageError maps storage errors to API statuses: not-found
// sentinels become 404, insufficient credits 402, anything else 500
func writeStorageError(w http.ResponseWriter, err error) {
	for _, sentinel := range notFoundErrors {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusNotFound, sentinel.Error())
			return
		}
	}
	if errors.Is(err, storage.ErrInsufficientCredits) {
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
		return
	}
	writeErrorDetail(w, http.StatusInternalServerError, "internal error", err.Error())
}

// Package generation defines the record of a single model invocation.
package generation

import (
	"time"
)

// Generation statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IsTerminal reports whether a status will no longer change
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Generation records one external model invocation and its outcome. It is
// created pending on submission and moved to completed or failed by the
// gateway worker callback, never by the polling client.
type Generation struct {
	// ID of the generation record
	ID string `json:"id"`

	// AccountID of the owner
	AccountID string `json:"account_id"`

	// PredictionID assigned by the model gateway for async generations
	PredictionID string `json:"prediction_id,omitempty"`

	// Status is pending, completed, or failed
	Status string `json:"status"`

	// ModelIdentifier of the model that was invoked
	ModelIdentifier string `json:"model_identifier,omitempty"`

	// Prompt submitted with the request
	Prompt string `json:"prompt,omitempty"`

	// StoragePath of the resulting media, set on completion
	StoragePath string `json:"storage_path,omitempty"`

	// ErrorMessage from the gateway, set on failure
	ErrorMessage string `json:"error_message,omitempty"`

	// ReferencePaths are storage paths of uploaded reference media
	ReferencePaths []string `json:"reference_paths,omitempty"`

	// CreditsCost charged for this generation
	CreditsCost int `json:"credits_cost,omitempty"`

	// CreatedAt is when the generation was submitted
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record last changed
	UpdatedAt time.Time `json:"updated_at"`
}

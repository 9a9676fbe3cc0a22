// Package storage provides interfaces for persistent storage.
package storage

import (
	"github.com/loomstudio/loom/pkg/assets"
	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/models"
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetCanvasStore returns a store for canvas documents
	GetCanvasStore() CanvasStore

	// GetWorkflowStore returns a store for saved workflows
	GetWorkflowStore() WorkflowStore

	// GetAssetStore returns a store for asset metadata
	GetAssetStore() AssetStore

	// GetGenerationStore returns a store for generation records
	GetGenerationStore() GenerationStore

	// GetAccountStore returns a store for account data
	GetAccountStore() AccountStore

	// GetCustomerStore returns a store for payment customer mappings
	GetCustomerStore() CustomerStore

	// GetModelStore returns a store for the model catalog
	GetModelStore() ModelStore
}

// CanvasUpdate carries the fields of a canvas PATCH. Nil pointers leave
// the stored value unchanged; node and edge updates replace the whole
// arrays (last write wins, no merging).
type CanvasUpdate struct {
	Name         *string
	Description  *string
	ThumbnailURL *string
	Nodes        *[]canvas.Node
	Edges        *[]canvas.Edge
	IsFavorite   *bool
}

// CanvasStore manages canvas document persistence. All reads and writes
// are scoped to the owning account.
type CanvasStore interface {
	// SaveCanvas inserts a new canvas document
	SaveCanvas(c canvas.Canvas) error

	// GetCanvas retrieves a canvas owned by the account
	GetCanvas(accountID, canvasID string) (canvas.Canvas, error)

	// UpdateCanvas applies a partial update and returns the new document
	UpdateCanvas(accountID, canvasID string, update CanvasUpdate) (canvas.Canvas, error)

	// TouchCanvas records that the owner opened the canvas
	TouchCanvas(accountID, canvasID string) error

	// ListCanvases returns all canvases for an account, newest first
	ListCanvases(accountID string) ([]canvas.Canvas, error)

	// DeleteCanvas removes a canvas owned by the account
	DeleteCanvas(accountID, canvasID string) error
}

// WorkflowUpdate carries the mutable workflow metadata fields
type WorkflowUpdate struct {
	Name         *string
	Description  *string
	ThumbnailURL *string
	IsPublic     *bool
}

// WorkflowStore manages saved workflow persistence. Workflow graph data is
// immutable after creation; only metadata can change.
type WorkflowStore interface {
	// SaveWorkflow inserts a new workflow snapshot
	SaveWorkflow(w canvas.Workflow) error

	// GetWorkflow retrieves a workflow visible to the account (owned or
	// public)
	GetWorkflow(accountID, workflowID string) (canvas.Workflow, error)

	// UpdateWorkflow applies a metadata update; only the owner may update
	UpdateWorkflow(accountID, workflowID string, update WorkflowUpdate) (canvas.Workflow, error)

	// ListWorkflows returns workflows visible to the account (own plus
	// public), newest first
	ListWorkflows(accountID string) ([]canvas.Workflow, error)

	// DeleteWorkflow removes a workflow owned by the account
	DeleteWorkflow(accountID, workflowID string) error
}

// AssetQuery filters asset listings
type AssetQuery struct {
	// Visibility restricts results: "private" returns only the account's
	// assets, "public" returns public assets from all accounts
	Visibility string

	// Category restricts results to one library category
	Category string

	// Search matches against lowercased title and tags
	Search string

	// Limit caps the result size (default 100, max 300)
	Limit int

	// Offset skips results for pagination
	Offset int
}

// AssetStore manages asset metadata persistence
type AssetStore interface {
	// SaveAsset inserts a new asset
	SaveAsset(a assets.Asset) error

	// GetAsset retrieves an asset owned by the account
	GetAsset(accountID, assetID string) (assets.Asset, error)

	// UpdateAsset replaces the mutable fields of an owned asset
	UpdateAsset(a assets.Asset) (assets.Asset, error)

	// ListAssets returns assets matching the query, newest first
	ListAssets(accountID string, query AssetQuery) ([]assets.Asset, error)

	// DeleteAsset removes an asset owned by the account
	DeleteAsset(accountID, assetID string) error
}

// GenerationStore manages generation record persistence
type GenerationStore interface {
	// SaveGeneration inserts a new generation record
	SaveGeneration(g generation.Generation) error

	// GetGeneration retrieves a generation owned by the account
	GetGeneration(accountID, generationID string) (generation.Generation, error)

	// GetGenerationByPredictionID retrieves a generation by its gateway
	// prediction ID, scoped to the account
	GetGenerationByPredictionID(accountID, predictionID string) (generation.Generation, error)

	// LookupGenerationByPredictionID retrieves a generation by its
	// gateway prediction ID without account scoping. Only for trusted
	// worker callbacks, which know nothing but the prediction ID.
	LookupGenerationByPredictionID(predictionID string) (generation.Generation, error)

	// UpdateGenerationStatus moves a generation to a new status
	UpdateGenerationStatus(generationID, status, storagePath, errorMessage string) error

	// ListGenerations returns all generations for an account, newest first
	ListGenerations(accountID string) ([]generation.Generation, error)

	// ListStalePending returns pending generations older than the cutoff
	ListStalePending(olderThanSeconds int64) ([]generation.Generation, error)

	// DeleteGeneration removes a generation owned by the account
	DeleteGeneration(accountID, generationID string) error
}

// AccountStore manages account persistence
type AccountStore interface {
	// SaveAccount persists an account
	SaveAccount(account auth.Account) error

	// GetAccount retrieves an account
	GetAccount(accountID string) (auth.Account, error)

	// GetAccountByUsername retrieves an account by username
	GetAccountByUsername(username string) (auth.Account, error)

	// GetAccountByToken retrieves an account by API token
	GetAccountByToken(token string) (auth.Account, error)

	// AdjustCredits atomically adds delta to the account's balance and
	// returns the new balance. ErrInsufficientCredits when the balance
	// would go negative.
	AdjustCredits(accountID string, delta int) (int, error)

	// ListAccounts returns all accounts
	ListAccounts() ([]auth.Account, error)

	// DeleteAccount removes an account
	DeleteAccount(accountID string) error
}

// CustomerStore manages payment provider customer mappings
type CustomerStore interface {
	// SaveCustomer persists a customer mapping
	SaveCustomer(c auth.Customer) error

	// GetCustomer retrieves the mapping for an account
	GetCustomer(accountID string) (auth.Customer, error)

	// DeleteCustomer removes the mapping for an account
	DeleteCustomer(accountID string) error
}

// ModelStore manages the generation model catalog
type ModelStore interface {
	// SaveModel inserts or replaces a catalog entry
	SaveModel(m models.Model) error

	// GetModelByIdentifier retrieves a model by its gateway slug
	GetModelByIdentifier(identifier string) (models.Model, error)

	// ListModels returns active models, optionally filtered by type,
	// sorted by name
	ListModels(modelType string) ([]models.Model, error)

	// DeleteModel removes a catalog entry
	DeleteModel(id string) error
}

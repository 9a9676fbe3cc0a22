package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loomstudio/loom/pkg/assets"
	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/models"
)

// Errors returned by storage providers
var (
	ErrCanvasNotFound      = errors.New("canvas not found")
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrGenerationNotFound  = errors.New("generation not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrModelNotFound       = errors.New("model not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	canvasStore     *MemoryCanvasStore
	workflowStore   *MemoryWorkflowStore
	assetStore      *MemoryAssetStore
	generationStore *MemoryGenerationStore
	accountStore    *MemoryAccountStore
	customerStore   *MemoryCustomerStore
	modelStore      *MemoryModelStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		canvasStore:     NewMemoryCanvasStore(),
		workflowStore:   NewMemoryWorkflowStore(),
		assetStore:      NewMemoryAssetStore(),
		generationStore: NewMemoryGenerationStore(),
		accountStore:    NewMemoryAccountStore(),
		customerStore:   NewMemoryCustomerStore(),
		modelStore:      NewMemoryModelStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	return nil
}

// GetCanvasStore returns a store for canvas documents
func (p *MemoryProvider) GetCanvasStore() CanvasStore {
	return p.canvasStore
}

// GetWorkflowStore returns a store for saved workflows
func (p *MemoryProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetAssetStore returns a store for asset metadata
func (p *MemoryProvider) GetAssetStore() AssetStore {
	return p.assetStore
}

// GetGenerationStore returns a store for generation records
func (p *MemoryProvider) GetGenerationStore() GenerationStore {
	return p.generationStore
}

// GetAccountStore returns a store for account data
func (p *MemoryProvider) GetAccountStore() AccountStore {
	return p.accountStore
}

// GetCustomerStore returns a store for payment customer mappings
func (p *MemoryProvider) GetCustomerStore() CustomerStore {
	return p.customerStore
}

// GetModelStore returns a store for the model catalog
func (p *MemoryProvider) GetModelStore() ModelStore {
	return p.modelStore
}

// MemoryCanvasStore implements the CanvasStore interface using in-memory storage
type MemoryCanvasStore struct {
	canvases map[string]map[string]canvas.Canvas
	mu       sync.RWMutex
}

// NewMemoryCanvasStore creates a new in-memory canvas store
func NewMemoryCanvasStore() *MemoryCanvasStore {
	return &MemoryCanvasStore{
		canvases: make(map[string]map[string]canvas.Canvas),
	}
}

// SaveCanvas inserts a new canvas document
func (s *MemoryCanvasStore) SaveCanvas(c canvas.Canvas) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[c.AccountID]; !ok {
		s.canvases[c.AccountID] = make(map[string]canvas.Canvas)
	}
	s.canvases[c.AccountID][c.ID] = c
	return nil
}

// GetCanvas retrieves a canvas owned by the account
func (s *MemoryCanvasStore) GetCanvas(accountID, canvasID string) (canvas.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountCanvases, ok := s.canvases[accountID]
	if !ok {
		return canvas.Canvas{}, ErrCanvasNotFound
	}
	c, ok := accountCanvases[canvasID]
	if !ok {
		return canvas.Canvas{}, ErrCanvasNotFound
	}
	return c, nil
}

// UpdateCanvas applies a partial update and returns the new document.
// Node and edge updates replace the stored arrays wholesale.
func (s *MemoryCanvasStore) UpdateCanvas(accountID, canvasID string, update CanvasUpdate) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountCanvases, ok := s.canvases[accountID]
	if !ok {
		return canvas.Canvas{}, ErrCanvasNotFound
	}
	c, ok := accountCanvases[canvasID]
	if !ok {
		return canvas.Canvas{}, ErrCanvasNotFound
	}

	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Description != nil {
		c.Description = *update.Description
	}
	if update.ThumbnailURL != nil {
		c.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Nodes != nil {
		c.Nodes = *update.Nodes
	}
	if update.Edges != nil {
		c.Edges = *update.Edges
	}
	if update.IsFavorite != nil {
		c.IsFavorite = *update.IsFavorite
	}
	c.UpdatedAt = time.Now()

	accountCanvases[canvasID] = c
	return c, nil
}

// TouchCanvas records that the owner opened the canvas
func (s *MemoryCanvasStore) TouchCanvas(accountID, canvasID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountCanvases, ok := s.canvases[accountID]
	if !ok {
		return ErrCanvasNotFound
	}
	c, ok := accountCanvases[canvasID]
	if !ok {
		return ErrCanvasNotFound
	}
	c.LastOpenedAt = time.Now()
	accountCanvases[canvasID] = c
	return nil
}

// ListCanvases returns all canvases for an account, newest first
func (s *MemoryCanvasStore) ListCanvases(accountID string) ([]canvas.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountCanvases, ok := s.canvases[accountID]
	if !ok {
		return []canvas.Canvas{}, nil
	}

	list := make([]canvas.Canvas, 0, len(accountCanvases))
	for _, c := range accountCanvases {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}

// DeleteCanvas removes a canvas owned by the account
func (s *MemoryCanvasStore) DeleteCanvas(accountID, canvasID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountCanvases, ok := s.canvases[accountID]
	if !ok {
		return ErrCanvasNotFound
	}
	if _, ok := accountCanvases[canvasID]; !ok {
		return ErrCanvasNotFound
	}
	delete(accountCanvases, canvasID)
	return nil
}

// MemoryWorkflowStore implements the WorkflowStore interface using in-memory storage
type MemoryWorkflowStore struct {
	workflows map[string]canvas.Workflow
	mu        sync.RWMutex
}

// NewMemoryWorkflowStore creates a new in-memory workflow store
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows: make(map[string]canvas.Workflow),
	}
}

// SaveWorkflow inserts a new workflow snapshot
func (s *MemoryWorkflowStore) SaveWorkflow(w canvas.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[w.ID] = w
	return nil
}

// GetWorkflow retrieves a workflow visible to the account
func (s *MemoryWorkflowStore) GetWorkflow(accountID, workflowID string) (canvas.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[workflowID]
	if !ok {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}
	if w.AccountID != accountID && !w.IsPublic {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}
	return w, nil
}

// UpdateWorkflow applies a metadata update; only the owner may update
func (s *MemoryWorkflowStore) UpdateWorkflow(accountID, workflowID string, update WorkflowUpdate) (canvas.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workflows[workflowID]
	if !ok || w.AccountID != accountID {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}

	if update.Name != nil {
		w.Name = *update.Name
	}
	if update.Description != nil {
		w.Description = *update.Description
	}
	if update.ThumbnailURL != nil {
		w.ThumbnailURL = *update.ThumbnailURL
	}
	if update.IsPublic != nil {
		w.IsPublic = *update.IsPublic
	}
	w.UpdatedAt = time.Now()

	s.workflows[workflowID] = w
	return w, nil
}

// ListWorkflows returns workflows visible to the account, newest first
func (s *MemoryWorkflowStore) ListWorkflows(accountID string) ([]canvas.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]canvas.Workflow, 0)
	for _, w := range s.workflows {
		if w.AccountID == accountID || w.IsPublic {
			list = append(list, w)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// DeleteWorkflow removes a workflow owned by the account
func (s *MemoryWorkflowStore) DeleteWorkflow(accountID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workflows[workflowID]
	if !ok || w.AccountID != accountID {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, workflowID)
	return nil
}

// MemoryAssetStore implements the AssetStore interface using in-memory storage
type MemoryAssetStore struct {
	assets map[string]assets.Asset
	mu     sync.RWMutex
}

// NewMemoryAssetStore creates a new in-memory asset store
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{
		assets: make(map[string]assets.Asset),
	}
}

// SaveAsset inserts a new asset
func (s *MemoryAssetStore) SaveAsset(a assets.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[a.ID] = a
	return nil
}

// GetAsset retrieves an asset owned by the account
func (s *MemoryAssetStore) GetAsset(accountID, assetID string) (assets.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[assetID]
	if !ok || a.AccountID != accountID {
		return assets.Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// UpdateAsset replaces the mutable fields of an owned asset
func (s *MemoryAssetStore) UpdateAsset(a assets.Asset) (assets.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assets[a.ID]
	if !ok || existing.AccountID != a.AccountID {
		return assets.Asset{}, ErrAssetNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	s.assets[a.ID] = a
	return a, nil
}

// ListAssets returns assets matching the query, newest first
func (s *MemoryAssetStore) ListAssets(accountID string, query AssetQuery) ([]assets.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]assets.Asset, 0)
	for _, a := range s.assets {
		if !assetVisible(a, accountID, query.Visibility) {
			continue
		}
		if query.Category != "" && a.Category != query.Category {
			continue
		}
		if !assetMatchesSearch(a, query.Search) {
			continue
		}
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 300 {
		limit = 300
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []assets.Asset{}, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

// DeleteAsset removes an asset owned by the account
func (s *MemoryAssetStore) DeleteAsset(accountID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[assetID]
	if !ok || a.AccountID != accountID {
		return ErrAssetNotFound
	}
	delete(s.assets, assetID)
	return nil
}

func assetVisible(a assets.Asset, accountID, visibility string) bool {
	switch visibility {
	case assets.VisibilityPrivate:
		return a.AccountID == accountID
	case assets.VisibilityPublic:
		return a.Visibility == assets.VisibilityPublic
	default:
		return a.AccountID == accountID || a.Visibility == assets.VisibilityPublic
	}
}

func assetMatchesSearch(a assets.Asset, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(a.Title), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(a.Tags, " ")), needle)
}

// MemoryGenerationStore implements the GenerationStore interface using in-memory storage
type MemoryGenerationStore struct {
	generations map[string]generation.Generation
	mu          sync.RWMutex
}

// NewMemoryGenerationStore creates a new in-memory generation store
func NewMemoryGenerationStore() *MemoryGenerationStore {
	return &MemoryGenerationStore{
		generations: make(map[string]generation.Generation),
	}
}

// SaveGeneration inserts a new generation record
func (s *MemoryGenerationStore) SaveGeneration(g generation.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[g.ID] = g
	return nil
}

// GetGeneration retrieves a generation owned by the account
func (s *MemoryGenerationStore) GetGeneration(accountID, generationID string) (generation.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.generations[generationID]
	if !ok || g.AccountID != accountID {
		return generation.Generation{}, ErrGenerationNotFound
	}
	return g, nil
}

// GetGenerationByPredictionID retrieves a generation by its gateway prediction ID
func (s *MemoryGenerationStore) GetGenerationByPredictionID(accountID, predictionID string) (generation.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.generations {
		if g.PredictionID == predictionID && g.AccountID == accountID {
			return g, nil
		}
	}
	return generation.Generation{}, ErrGenerationNotFound
}

// LookupGenerationByPredictionID retrieves a generation by its gateway
// prediction ID without account scoping
func (s *MemoryGenerationStore) LookupGenerationByPredictionID(predictionID string) (generation.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.generations {
		if g.PredictionID == predictionID {
			return g, nil
		}
	}
	return generation.Generation{}, ErrGenerationNotFound
}

// UpdateGenerationStatus moves a generation to a new status
func (s *MemoryGenerationStore) UpdateGenerationStatus(generationID, status, storagePath, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.generations[generationID]
	if !ok {
		return ErrGenerationNotFound
	}
	g.Status = status
	if storagePath != "" {
		g.StoragePath = storagePath
	}
	if errorMessage != "" {
		g.ErrorMessage = errorMessage
	}
	g.UpdatedAt = time.Now()
	s.generations[generationID] = g
	return nil
}

// ListGenerations returns all generations for an account, newest first
func (s *MemoryGenerationStore) ListGenerations(accountID string) ([]generation.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]generation.Generation, 0)
	for _, g := range s.generations {
		if g.AccountID == accountID {
			list = append(list, g)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// ListStalePending returns pending generations older than the cutoff
func (s *MemoryGenerationStore) ListStalePending(olderThanSeconds int64) ([]generation.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	list := make([]generation.Generation, 0)
	for _, g := range s.generations {
		if g.Status == generation.StatusPending && g.CreatedAt.Before(cutoff) {
			list = append(list, g)
		}
	}
	return list, nil
}

// DeleteGeneration removes a generation owned by the account
func (s *MemoryGenerationStore) DeleteGeneration(accountID, generationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.generations[generationID]
	if !ok || g.AccountID != accountID {
		return ErrGenerationNotFound
	}
	delete(s.generations, generationID)
	return nil
}

// MemoryAccountStore implements the AccountStore interface using in-memory storage
type MemoryAccountStore struct {
	accounts        map[string]auth.Account
	accountsByName  map[string]string
	accountsByToken map[string]string
	mu              sync.RWMutex
}

// NewMemoryAccountStore creates a new in-memory account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts:        make(map[string]auth.Account),
		accountsByName:  make(map[string]string),
		accountsByToken: make(map[string]string),
	}
}

// SaveAccount persists an account
func (s *MemoryAccountStore) SaveAccount(account auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account
	s.accountsByName[account.Username] = account.ID
	s.accountsByToken[account.APIToken] = account.ID
	return nil
}

// GetAccount retrieves an account
func (s *MemoryAccountStore) GetAccount(accountID string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return auth.Account{}, ErrAccountNotFound
	}
	return account, nil
}

// GetAccountByUsername retrieves an account by username
func (s *MemoryAccountStore) GetAccountByUsername(username string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.accountsByName[username]
	if !ok {
		return auth.Account{}, ErrAccountNotFound
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return auth.Account{}, ErrAccountNotFound
	}
	return account, nil
}

// GetAccountByToken retrieves an account by API token
func (s *MemoryAccountStore) GetAccountByToken(token string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.accountsByToken[token]
	if !ok {
		return auth.Account{}, ErrAccountNotFound
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return auth.Account{}, ErrAccountNotFound
	}
	return account, nil
}

// AdjustCredits atomically adds delta to the account's balance
func (s *MemoryAccountStore) AdjustCredits(accountID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	balance := account.Credits + delta
	if balance < 0 {
		return account.Credits, ErrInsufficientCredits
	}
	account.Credits = balance
	account.UpdatedAt = time.Now()
	s.accounts[accountID] = account
	return balance, nil
}

// ListAccounts returns all accounts
func (s *MemoryAccountStore) ListAccounts() ([]auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]auth.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		list = append(list, account)
	}
	return list, nil
}

// DeleteAccount removes an account
func (s *MemoryAccountStore) DeleteAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, accountID)
	delete(s.accountsByName, account.Username)
	delete(s.accountsByToken, account.APIToken)
	return nil
}

// MemoryCustomerStore implements the CustomerStore interface using in-memory storage
type MemoryCustomerStore struct {
	customers map[string]auth.Customer
	mu        sync.RWMutex
}

// NewMemoryCustomerStore creates a new in-memory customer store
func NewMemoryCustomerStore() *MemoryCustomerStore {
	return &MemoryCustomerStore{
		customers: make(map[string]auth.Customer),
	}
}

// SaveCustomer persists a customer mapping
func (s *MemoryCustomerStore) SaveCustomer(c auth.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[c.AccountID] = c
	return nil
}

// GetCustomer retrieves the mapping for an account
func (s *MemoryCustomerStore) GetCustomer(accountID string) (auth.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[accountID]
	if !ok {
		return auth.Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

// DeleteCustomer removes the mapping for an account
func (s *MemoryCustomerStore) DeleteCustomer(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[accountID]; !ok {
		return ErrCustomerNotFound
	}
	delete(s.customers, accountID)
	return nil
}

// MemoryModelStore implements the ModelStore interface using in-memory storage
type MemoryModelStore struct {
	models map[string]models.Model
	mu     sync.RWMutex
}

// NewMemoryModelStore creates a new in-memory model store
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{
		models: make(map[string]models.Model),
	}
}

// SaveModel inserts or replaces a catalog entry
func (s *MemoryModelStore) SaveModel(m models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[m.ID] = m
	return nil
}

// GetModelByIdentifier retrieves a model by its gateway slug
func (s *MemoryModelStore) GetModelByIdentifier(identifier string) (models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.models {
		if m.Identifier == identifier {
			return m, nil
		}
	}
	return models.Model{}, ErrModelNotFound
}

// ListModels returns active models, optionally filtered by type
func (s *MemoryModelStore) ListModels(modelType string) ([]models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Model, 0)
	for _, m := range s.models {
		if !m.IsActive {
			continue
		}
		if modelType != "" && m.Type != modelType {
			continue
		}
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// DeleteModel removes a catalog entry
func (s *MemoryModelStore) DeleteModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[id]; !ok {
		return ErrModelNotFound
	}
	delete(s.models, id)
	return nil
}

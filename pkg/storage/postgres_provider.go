package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/loomstudio/loom/pkg/assets"
	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/models"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db              *sql.DB
	canvasStore     *PostgreSQLCanvasStore
	workflowStore   *PostgreSQLWorkflowStore
	assetStore      *PostgreSQLAssetStore
	generationStore *PostgreSQLGenerationStore
	accountStore    *PostgreSQLAccountStore
	customerStore   *PostgreSQLCustomerStore
	modelStore      *PostgreSQLModelStore
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	provider := &PostgreSQLProvider{db: db}
	provider.canvasStore = &PostgreSQLCanvasStore{db: db}
	provider.workflowStore = &PostgreSQLWorkflowStore{db: db}
	provider.assetStore = &PostgreSQLAssetStore{db: db}
	provider.generationStore = &PostgreSQLGenerationStore{db: db}
	provider.accountStore = &PostgreSQLAccountStore{db: db}
	provider.customerStore = &PostgreSQLCustomerStore{db: db}
	provider.modelStore = &PostgreSQLModelStore{db: db}

	return provider, nil
}

// Initialize sets up the storage backend
func (p *PostgreSQLProvider) Initialize() error {
	initializers := []interface{ Initialize() error }{
		p.canvasStore,
		p.workflowStore,
		p.assetStore,
		p.generationStore,
		p.accountStore,
		p.customerStore,
		p.modelStore,
	}
	for _, store := range initializers {
		if err := store.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetCanvasStore returns a store for canvas documents
func (p *PostgreSQLProvider) GetCanvasStore() CanvasStore {
	return p.canvasStore
}

// GetWorkflowStore returns a store for saved workflows
func (p *PostgreSQLProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetAssetStore returns a store for asset metadata
func (p *PostgreSQLProvider) GetAssetStore() AssetStore {
	return p.assetStore
}

// GetGenerationStore returns a store for generation records
func (p *PostgreSQLProvider) GetGenerationStore() GenerationStore {
	return p.generationStore
}

// GetAccountStore returns a store for account data
func (p *PostgreSQLProvider) GetAccountStore() AccountStore {
	return p.accountStore
}

// GetCustomerStore returns a store for payment customer mappings
func (p *PostgreSQLProvider) GetCustomerStore() CustomerStore {
	return p.customerStore
}

// GetModelStore returns a store for the model catalog
func (p *PostgreSQLProvider) GetModelStore() ModelStore {
	return p.modelStore
}

// PostgreSQLCanvasStore implements the CanvasStore interface using PostgreSQL
type PostgreSQLCanvasStore struct {
	db *sql.DB
}

// Initialize creates the canvases table if it doesn't exist
func (s *PostgreSQLCanvasStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			thumbnail_url TEXT,
			nodes JSONB NOT NULL,
			edges JSONB NOT NULL,
			is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
			last_opened_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS canvases_account_id_idx ON canvases (account_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create canvases table: %w", err)
	}
	return nil
}

// SaveCanvas inserts a new canvas document
func (s *PostgreSQLCanvasStore) SaveCanvas(c canvas.Canvas) error {
	nodes, err := json.Marshal(c.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err := json.Marshal(c.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO canvases (id, account_id, name, description, thumbnail_url, nodes, edges, is_favorite, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.AccountID, c.Name, c.Description, c.ThumbnailURL, nodes, edges, c.IsFavorite, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert canvas: %w", err)
	}
	return nil
}

// GetCanvas retrieves a canvas owned by the account
func (s *PostgreSQLCanvasStore) GetCanvas(accountID, canvasID string) (canvas.Canvas, error) {
	row := s.db.QueryRow(
		`SELECT id, account_id, name, COALESCE(description, ''), COALESCE(thumbnail_url, ''), nodes, edges, is_favorite, COALESCE(last_opened_at, 'epoch'::timestamptz), created_at, updated_at
		 FROM canvases WHERE id = $1 AND account_id = $2`,
		canvasID, accountID,
	)
	return scanCanvas(row)
}

// UpdateCanvas applies a partial update and returns the new document.
// Nodes and edges are replaced wholesale; the last writer wins.
func (s *PostgreSQLCanvasStore) UpdateCanvas(accountID, canvasID string, update CanvasUpdate) (canvas.Canvas, error) {
	current, err := s.GetCanvas(accountID, canvasID)
	if err != nil {
		return canvas.Canvas{}, err
	}

	if update.Name != nil {
		current.Name = *update.Name
	}
	if update.Description != nil {
		current.Description = *update.Description
	}
	if update.ThumbnailURL != nil {
		current.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Nodes != nil {
		current.Nodes = *update.Nodes
	}
	if update.Edges != nil {
		current.Edges = *update.Edges
	}
	if update.IsFavorite != nil {
		current.IsFavorite = *update.IsFavorite
	}
	current.UpdatedAt = time.Now()

	nodes, err := json.Marshal(current.Nodes)
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err := json.Marshal(current.Edges)
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to marshal edges: %w", err)
	}

	result, err := s.db.Exec(
		`UPDATE canvases SET name = $1, description = $2, thumbnail_url = $3, nodes = $4, edges = $5, is_favorite = $6, updated_at = $7
		 WHERE id = $8 AND account_id = $9`,
		current.Name, current.Description, current.ThumbnailURL, nodes, edges, current.IsFavorite, current.UpdatedAt, canvasID, accountID,
	)
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to update canvas: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return canvas.Canvas{}, ErrCanvasNotFound
	}
	return current, nil
}

// TouchCanvas records that the owner opened the canvas
func (s *PostgreSQLCanvasStore) TouchCanvas(accountID, canvasID string) error {
	result, err := s.db.Exec(
		`UPDATE canvases SET last_opened_at = NOW() WHERE id = $1 AND account_id = $2`,
		canvasID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch canvas: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrCanvasNotFound
	}
	return nil
}

// ListCanvases returns all canvases for an account, newest first
func (s *PostgreSQLCanvasStore) ListCanvases(accountID string) ([]canvas.Canvas, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, name, COALESCE(description, ''), COALESCE(thumbnail_url, ''), nodes, edges, is_favorite, COALESCE(last_opened_at, 'epoch'::timestamptz), created_at, updated_at
		 FROM canvases WHERE account_id = $1 ORDER BY updated_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list canvases: %w", err)
	}
	defer rows.Close()

	list := make([]canvas.Canvas, 0)
	for rows.Next() {
		c, err := scanCanvas(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// DeleteCanvas removes a canvas owned by the account
func (s *PostgreSQLCanvasStore) DeleteCanvas(accountID, canvasID string) error {
	result, err := s.db.Exec(`DELETE FROM canvases WHERE id = $1 AND account_id = $2`, canvasID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete canvas: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrCanvasNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCanvas(row rowScanner) (canvas.Canvas, error) {
	var c canvas.Canvas
	var nodes, edges []byte
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Description, &c.ThumbnailURL, &nodes, &edges, &c.IsFavorite, &c.LastOpenedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return canvas.Canvas{}, ErrCanvasNotFound
	}
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to scan canvas: %w", err)
	}
	if err := json.Unmarshal(nodes, &c.Nodes); err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &c.Edges); err != nil {
		return canvas.Canvas{}, fmt.Errorf("failed to unmarshal edges: %w", err)
	}
	return c, nil
}

// PostgreSQLWorkflowStore implements the WorkflowStore interface using PostgreSQL
type PostgreSQLWorkflowStore struct {
	db *sql.DB
}

// Initialize creates the workflows table if it doesn't exist
func (s *PostgreSQLWorkflowStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			thumbnail_url TEXT,
			nodes JSONB NOT NULL,
			edges JSONB NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS workflows_account_id_idx ON workflows (account_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create workflows table: %w", err)
	}
	return nil
}

// SaveWorkflow inserts a new workflow snapshot
func (s *PostgreSQLWorkflowStore) SaveWorkflow(w canvas.Workflow) error {
	nodes, err := json.Marshal(w.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err := json.Marshal(w.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO workflows (id, account_id, name, description, thumbnail_url, nodes, edges, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.AccountID, w.Name, w.Description, w.ThumbnailURL, nodes, edges, w.IsPublic, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow visible to the account
func (s *PostgreSQLWorkflowStore) GetWorkflow(accountID, workflowID string) (canvas.Workflow, error) {
	row := s.db.QueryRow(
		`SELECT id, account_id, name, COALESCE(description, ''), COALESCE(thumbnail_url, ''), nodes, edges, is_public, created_at, updated_at
		 FROM workflows WHERE id = $1 AND (account_id = $2 OR is_public)`,
		workflowID, accountID,
	)
	return scanWorkflow(row)
}

// UpdateWorkflow applies a metadata update; only the owner may update
func (s *PostgreSQLWorkflowStore) UpdateWorkflow(accountID, workflowID string, update WorkflowUpdate) (canvas.Workflow, error) {
	current, err := s.GetWorkflow(accountID, workflowID)
	if err != nil {
		return canvas.Workflow{}, err
	}
	if current.AccountID != accountID {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}

	if update.Name != nil {
		current.Name = *update.Name
	}
	if update.Description != nil {
		current.Description = *update.Description
	}
	if update.ThumbnailURL != nil {
		current.ThumbnailURL = *update.ThumbnailURL
	}
	if update.IsPublic != nil {
		current.IsPublic = *update.IsPublic
	}
	current.UpdatedAt = time.Now()

	result, err := s.db.Exec(
		`UPDATE workflows SET name = $1, description = $2, thumbnail_url = $3, is_public = $4, updated_at = $5
		 WHERE id = $6 AND account_id = $7`,
		current.Name, current.Description, current.ThumbnailURL, current.IsPublic, current.UpdatedAt, workflowID, accountID,
	)
	if err != nil {
		return canvas.Workflow{}, fmt.Errorf("failed to update workflow: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}
	return current, nil
}

// ListWorkflows returns workflows visible to the account, newest first
func (s *PostgreSQLWorkflowStore) ListWorkflows(accountID string) ([]canvas.Workflow, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, name, COALESCE(description, ''), COALESCE(thumbnail_url, ''), nodes, edges, is_public, created_at, updated_at
		 FROM workflows WHERE account_id = $1 OR is_public ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	list := make([]canvas.Workflow, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// DeleteWorkflow removes a workflow owned by the account
func (s *PostgreSQLWorkflowStore) DeleteWorkflow(accountID, workflowID string) error {
	result, err := s.db.Exec(`DELETE FROM workflows WHERE id = $1 AND account_id = $2`, workflowID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func scanWorkflow(row rowScanner) (canvas.Workflow, error) {
	var w canvas.Workflow
	var nodes, edges []byte
	err := row.Scan(&w.ID, &w.AccountID, &w.Name, &w.Description, &w.ThumbnailURL, &nodes, &edges, &w.IsPublic, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return canvas.Workflow{}, ErrWorkflowNotFound
	}
	if err != nil {
		return canvas.Workflow{}, fmt.Errorf("failed to scan workflow: %w", err)
	}
	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return canvas.Workflow{}, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &w.Edges); err != nil {
		return canvas.Workflow{}, fmt.Errorf("failed to unmarshal edges: %w", err)
	}
	return w, nil
}

// PostgreSQLAssetStore implements the AssetStore interface using PostgreSQL
type PostgreSQLAssetStore struct {
	db *sql.DB
}

// Initialize creates the assets table if it doesn't exist
func (s *PostgreSQLAssetStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			asset_type TEXT NOT NULL,
			category TEXT NOT NULL,
			visibility TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			asset_url TEXT NOT NULL,
			thumbnail_url TEXT,
			storage_path TEXT,
			source_node_type TEXT,
			source_generation_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS assets_account_id_idx ON assets (account_id);
		CREATE INDEX IF NOT EXISTS assets_visibility_idx ON assets (visibility);
	`)
	if err != nil {
		return fmt.Errorf("failed to create assets table: %w", err)
	}
	return nil
}

// SaveAsset inserts a new asset
func (s *PostgreSQLAssetStore) SaveAsset(a assets.Asset) error {
	_, err := s.db.Exec(
		`INSERT INTO assets (id, account_id, title, description, asset_type, category, visibility, tags, asset_url, thumbnail_url, storage_path, source_node_type, source_generation_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.AccountID, a.Title, a.Description, a.AssetType, a.Category, a.Visibility,
		pq.Array(a.Tags), a.URL, a.ThumbnailURL, a.StoragePath, a.SourceNodeType, a.SourceGenerationID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

// GetAsset retrieves an asset owned by the account
func (s *PostgreSQLAssetStore) GetAsset(accountID, assetID string) (assets.Asset, error) {
	row := s.db.QueryRow(
		assetSelect+` WHERE id = $1 AND account_id = $2`,
		assetID, accountID,
	)
	return scanAsset(row)
}

// UpdateAsset replaces the mutable fields of an owned asset
func (s *PostgreSQLAssetStore) UpdateAsset(a assets.Asset) (assets.Asset, error) {
	a.UpdatedAt = time.Now()
	result, err := s.db.Exec(
		`UPDATE assets SET title = $1, description = $2, asset_type = $3, category = $4, visibility = $5, tags = $6, asset_url = $7, thumbnail_url = $8, storage_path = $9, updated_at = $10
		 WHERE id = $11 AND account_id = $12`,
		a.Title, a.Description, a.AssetType, a.Category, a.Visibility, pq.Array(a.Tags),
		a.URL, a.ThumbnailURL, a.StoragePath, a.UpdatedAt, a.ID, a.AccountID,
	)
	if err != nil {
		return assets.Asset{}, fmt.Errorf("failed to update asset: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return assets.Asset{}, ErrAssetNotFound
	}
	return s.GetAsset(a.AccountID, a.ID)
}

const assetSelect = `SELECT id, account_id, title, COALESCE(description, ''), asset_type, category, visibility, tags, asset_url, COALESCE(thumbnail_url, ''), COALESCE(storage_path, ''), COALESCE(source_node_type, ''), COALESCE(source_generation_id, ''), created_at, updated_at FROM assets`

// ListAssets returns assets matching the query, newest first. Search
// filtering happens in SQL against lowercased title and joined tags.
func (s *PostgreSQLAssetStore) ListAssets(accountID string, query AssetQuery) ([]assets.Asset, error) {
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

	where := ""
	args := []interface{}{accountID}
	switch query.Visibility {
	case assets.VisibilityPrivate:
		where = `account_id = $1`
	case assets.VisibilityPublic:
		where = `visibility = 'public' AND $1 = $1`
	default:
		where = `(account_id = $1 OR visibility = 'public')`
	}
	if query.Category != "" {
		args = append(args, query.Category)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if query.Search != "" {
		args = append(args, "%"+query.Search+"%")
		where += fmt.Sprintf(` AND (title ILIKE $%d OR array_to_string(tags, ' ') ILIKE $%d)`, len(args), len(args))
	}
	args = append(args, limit, offset)

	rows, err := s.db.Query(
		assetSelect+` WHERE `+where+fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	list := make([]assets.Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// DeleteAsset removes an asset owned by the account
func (s *PostgreSQLAssetStore) DeleteAsset(accountID, assetID string) error {
	result, err := s.db.Exec(`DELETE FROM assets WHERE id = $1 AND account_id = $2`, assetID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func scanAsset(row rowScanner) (assets.Asset, error) {
	var a assets.Asset
	var tags pq.StringArray
	err := row.Scan(&a.ID, &a.AccountID, &a.Title, &a.Description, &a.AssetType, &a.Category, &a.Visibility,
		&tags, &a.URL, &a.ThumbnailURL, &a.StoragePath, &a.SourceNodeType, &a.SourceGenerationID,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return assets.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return assets.Asset{}, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.Tags = []string(tags)
	return a, nil
}

// PostgreSQLGenerationStore implements the GenerationStore interface using PostgreSQL
type PostgreSQLGenerationStore struct {
	db *sql.DB
}

// Initialize creates the generations table if it doesn't exist
func (s *PostgreSQLGenerationStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS generations (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			prediction_id TEXT,
			status TEXT NOT NULL,
			model_identifier TEXT,
			prompt TEXT,
			storage_path TEXT,
			error_message TEXT,
			reference_paths TEXT[] NOT NULL DEFAULT '{}',
			credits_cost INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS generations_account_id_idx ON generations (account_id);
		CREATE INDEX IF NOT EXISTS generations_prediction_id_idx ON generations (prediction_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create generations table: %w", err)
	}
	return nil
}

const generationSelect = `SELECT id, account_id, COALESCE(prediction_id, ''), status, COALESCE(model_identifier, ''), COALESCE(prompt, ''), COALESCE(storage_path, ''), COALESCE(error_message, ''), reference_paths, credits_cost, created_at, updated_at FROM generations`

// SaveGeneration inserts a new generation record
func (s *PostgreSQLGenerationStore) SaveGeneration(g generation.Generation) error {
	_, err := s.db.Exec(
		`INSERT INTO generations (id, account_id, prediction_id, status, model_identifier, prompt, storage_path, error_message, reference_paths, credits_cost, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.AccountID, g.PredictionID, g.Status, g.ModelIdentifier, g.Prompt,
		g.StoragePath, g.ErrorMessage, pq.Array(g.ReferencePaths), g.CreditsCost,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// GetGeneration retrieves a generation owned by the account
func (s *PostgreSQLGenerationStore) GetGeneration(accountID, generationID string) (generation.Generation, error) {
	row := s.db.QueryRow(generationSelect+` WHERE id = $1 AND account_id = $2`, generationID, accountID)
	return scanGeneration(row)
}

// GetGenerationByPredictionID retrieves a generation by its gateway prediction ID
func (s *PostgreSQLGenerationStore) GetGenerationByPredictionID(accountID, predictionID string) (generation.Generation, error) {
	row := s.db.QueryRow(generationSelect+` WHERE prediction_id = $1 AND account_id = $2`, predictionID, accountID)
	return scanGeneration(row)
}

// LookupGenerationByPredictionID retrieves a generation by its gateway
// prediction ID without account scoping
func (s *PostgreSQLGenerationStore) LookupGenerationByPredictionID(predictionID string) (generation.Generation, error) {
	row := s.db.QueryRow(generationSelect+` WHERE prediction_id = $1`, predictionID)
	return scanGeneration(row)
}

// UpdateGenerationStatus moves a generation to a new status
func (s *PostgreSQLGenerationStore) UpdateGenerationStatus(generationID, status, storagePath, errorMessage string) error {
	result, err := s.db.Exec(
		`UPDATE generations SET status = $1,
			storage_path = CASE WHEN $2 = '' THEN storage_path ELSE $2 END,
			error_message = CASE WHEN $3 = '' THEN error_message ELSE $3 END,
			updated_at = NOW()
		 WHERE id = $4`,
		status, storagePath, errorMessage, generationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrGenerationNotFound
	}
	return nil
}

// ListGenerations returns all generations for an account, newest first
func (s *PostgreSQLGenerationStore) ListGenerations(accountID string) ([]generation.Generation, error) {
	rows, err := s.db.Query(generationSelect+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	list := make([]generation.Generation, 0)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// ListStalePending returns pending generations older than the cutoff
func (s *PostgreSQLGenerationStore) ListStalePending(olderThanSeconds int64) ([]generation.Generation, error) {
	rows, err := s.db.Query(
		generationSelect+` WHERE status = 'pending' AND created_at < NOW() - make_interval(secs => $1)`,
		olderThanSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale generations: %w", err)
	}
	defer rows.Close()

	list := make([]generation.Generation, 0)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// DeleteGeneration removes a generation owned by the account
func (s *PostgreSQLGenerationStore) DeleteGeneration(accountID, generationID string) error {
	result, err := s.db.Exec(`DELETE FROM generations WHERE id = $1 AND account_id = $2`, generationID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrGenerationNotFound
	}
	return nil
}

func scanGeneration(row rowScanner) (generation.Generation, error) {
	var g generation.Generation
	var refs pq.StringArray
	err := row.Scan(&g.ID, &g.AccountID, &g.PredictionID, &g.Status, &g.ModelIdentifier, &g.Prompt,
		&g.StoragePath, &g.ErrorMessage, &refs, &g.CreditsCost, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return generation.Generation{}, ErrGenerationNotFound
	}
	if err != nil {
		return generation.Generation{}, fmt.Errorf("failed to scan generation: %w", err)
	}
	g.ReferencePaths = []string(refs)
	return g, nil
}

// PostgreSQLAccountStore implements the AccountStore interface using PostgreSQL
type PostgreSQLAccountStore struct {
	db *sql.DB
}

// Initialize creates the accounts table if it doesn't exist
func (s *PostgreSQLAccountStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			password_hash TEXT NOT NULL,
			api_token TEXT NOT NULL UNIQUE,
			credits INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

const accountSelect = `SELECT id, username, COALESCE(email, ''), password_hash, api_token, credits, created_at, updated_at FROM accounts`

// SaveAccount persists an account
func (s *PostgreSQLAccountStore) SaveAccount(account auth.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, username, email, password_hash, api_token, credits, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET username = $2, email = $3, password_hash = $4, api_token = $5, credits = $6, updated_at = $8`,
		account.ID, account.Username, account.Email, account.PasswordHash, account.APIToken,
		account.Credits, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account
func (s *PostgreSQLAccountStore) GetAccount(accountID string) (auth.Account, error) {
	return scanAccount(s.db.QueryRow(accountSelect+` WHERE id = $1`, accountID))
}

// GetAccountByUsername retrieves an account by username
func (s *PostgreSQLAccountStore) GetAccountByUsername(username string) (auth.Account, error) {
	return scanAccount(s.db.QueryRow(accountSelect+` WHERE username = $1`, username))
}

// GetAccountByToken retrieves an account by API token
func (s *PostgreSQLAccountStore) GetAccountByToken(token string) (auth.Account, error) {
	return scanAccount(s.db.QueryRow(accountSelect+` WHERE api_token = $1`, token))
}

// AdjustCredits atomically adds delta to the account's balance. The guard
// in the WHERE clause keeps the balance from going negative under
// concurrent spends.
func (s *PostgreSQLAccountStore) AdjustCredits(accountID string, delta int) (int, error) {
	var balance int
	err := s.db.QueryRow(
		`UPDATE accounts SET credits = credits + $1, updated_at = NOW()
		 WHERE id = $2 AND credits + $1 >= 0
		 RETURNING credits`,
		delta, accountID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		// Either the account is missing or the balance is too low
		if _, getErr := s.GetAccount(accountID); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust credits: %w", err)
	}
	return balance, nil
}

// ListAccounts returns all accounts
func (s *PostgreSQLAccountStore) ListAccounts() ([]auth.Account, error) {
	rows, err := s.db.Query(accountSelect)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	list := make([]auth.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, account)
	}
	return list, rows.Err()
}

// DeleteAccount removes an account
func (s *PostgreSQLAccountStore) DeleteAccount(accountID string) error {
	result, err := s.db.Exec(`DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (auth.Account, error) {
	var a auth.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.APIToken, &a.Credits, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return auth.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	return a, nil
}

// PostgreSQLCustomerStore implements the CustomerStore interface using PostgreSQL
type PostgreSQLCustomerStore struct {
	db *sql.DB
}

// Initialize creates the customers table if it doesn't exist
func (s *PostgreSQLCustomerStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS customers (
			account_id TEXT PRIMARY KEY,
			provider_customer_id TEXT NOT NULL,
			email TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create customers table: %w", err)
	}
	return nil
}

// SaveCustomer persists a customer mapping
func (s *PostgreSQLCustomerStore) SaveCustomer(c auth.Customer) error {
	_, err := s.db.Exec(
		`INSERT INTO customers (account_id, provider_customer_id, email, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id) DO UPDATE SET provider_customer_id = $2, email = $3`,
		c.AccountID, c.ProviderCustomerID, c.Email, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves the mapping for an account
func (s *PostgreSQLCustomerStore) GetCustomer(accountID string) (auth.Customer, error) {
	var c auth.Customer
	err := s.db.QueryRow(
		`SELECT account_id, provider_customer_id, COALESCE(email, ''), created_at FROM customers WHERE account_id = $1`,
		accountID,
	).Scan(&c.AccountID, &c.ProviderCustomerID, &c.Email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return auth.Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return auth.Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer removes the mapping for an account
func (s *PostgreSQLCustomerStore) DeleteCustomer(accountID string) error {
	result, err := s.db.Exec(`DELETE FROM customers WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// PostgreSQLModelStore implements the ModelStore interface using PostgreSQL
type PostgreSQLModelStore struct {
	db *sql.DB
}

// Initialize creates the models table if it doesn't exist
func (s *PostgreSQLModelStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			provider TEXT,
			credits_cost INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			parameters JSONB
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create models table: %w", err)
	}
	return nil
}

// SaveModel inserts or replaces a catalog entry
func (s *PostgreSQLModelStore) SaveModel(m models.Model) error {
	params, err := json.Marshal(m.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO models (id, identifier, name, type, provider, credits_cost, is_active, parameters)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (identifier) DO UPDATE SET name = $3, type = $4, provider = $5, credits_cost = $6, is_active = $7, parameters = $8`,
		m.ID, m.Identifier, m.Name, m.Type, m.Provider, m.CreditsCost, m.IsActive, params,
	)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

const modelSelect = `SELECT id, identifier, name, type, COALESCE(provider, ''), credits_cost, is_active, COALESCE(parameters, '{}'::jsonb) FROM models`

// GetModelByIdentifier retrieves a model by its gateway slug
func (s *PostgreSQLModelStore) GetModelByIdentifier(identifier string) (models.Model, error) {
	return scanModel(s.db.QueryRow(modelSelect+` WHERE identifier = $1`, identifier))
}

// ListModels returns active models, optionally filtered by type
func (s *PostgreSQLModelStore) ListModels(modelType string) ([]models.Model, error) {
	query := modelSelect + ` WHERE is_active`
	args := []interface{}{}
	if modelType != "" {
		query += ` AND type = $1`
		args = append(args, modelType)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	list := make([]models.Model, 0)
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// DeleteModel removes a catalog entry
func (s *PostgreSQLModelStore) DeleteModel(id string) error {
	result, err := s.db.Exec(`DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrModelNotFound
	}
	return nil
}

func scanModel(row rowScanner) (models.Model, error) {
	var m models.Model
	var params []byte
	err := row.Scan(&m.ID, &m.Identifier, &m.Name, &m.Type, &m.Provider, &m.CreditsCost, &m.IsActive, &params)
	if err == sql.ErrNoRows {
		return models.Model{}, ErrModelNotFound
	}
	if err != nil {
		return models.Model{}, fmt.Errorf("failed to scan model: %w", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m.Parameters); err != nil {
			return models.Model{}, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	return m, nil
}

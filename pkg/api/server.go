// Package api implements the HTTP API for the loom server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/billing"
	"github.com/loomstudio/loom/pkg/blob"
	"github.com/loomstudio/loom/pkg/cache"
	"github.com/loomstudio/loom/pkg/config"
	"github.com/loomstudio/loom/pkg/gateway"
	"github.com/loomstudio/loom/pkg/llm"
	"github.com/loomstudio/loom/pkg/middleware"
	"github.com/loomstudio/loom/pkg/services"
	"github.com/loomstudio/loom/pkg/storage"
)

// Dependencies carries the collaborators the server needs
type Dependencies struct {
	Provider       storage.StorageProvider
	BlobStore      blob.Store
	AccountService auth.AccountService
	JWTService     *services.JWTService
	Billing        *billing.Service
	Gateway        *gateway.Client
	LLM            *llm.Client
	ModelCache     cache.Cache
}

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *mux.Router
	server         *http.Server
	provider       storage.StorageProvider
	blobStore      blob.Store
	accountService auth.AccountService
	jwtService     *services.JWTService
	billingService *billing.Service
	gatewayClient  *gateway.Client
	llmClient      *llm.Client
	modelCache     cache.Cache
	modelCacheTTL  time.Duration
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	s := &Server{
		config:         cfg,
		router:         mux.NewRouter(),
		provider:       deps.Provider,
		blobStore:      deps.BlobStore,
		accountService: deps.AccountService,
		jwtService:     deps.JWTService,
		billingService: deps.Billing,
		gatewayClient:  deps.Gateway,
		llmClient:      deps.LLM,
		modelCache:     deps.ModelCache,
		modelCacheTTL:  time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	}

	s.setupRoutes()
	return s
}

// Router exposes the configured handler, for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // generation requests may poll for minutes
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	authMiddleware := middleware.NewAuthMiddleware(s.accountService)

	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes (no authentication required)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/webhooks/generation", s.handleGenerationWebhook).Methods(http.MethodPost, http.MethodOptions)

	// Authenticated routes
	authenticated := api.PathPrefix("").Subrouter()
	authenticated.Use(authMiddleware.Authenticate)

	authenticated.HandleFunc("/accounts/me", s.handleGetCurrentAccount).Methods(http.MethodGet, http.MethodOptions)

	// Asset routes
	assets := authenticated.PathPrefix("/assets").Subrouter()
	assets.HandleFunc("", s.handleListAssets).Methods(http.MethodGet, http.MethodOptions)
	assets.HandleFunc("", s.handleCreateAsset).Methods(http.MethodPost, http.MethodOptions)
	assets.HandleFunc("/{id}", s.handleUpdateAsset).Methods(http.MethodPatch, http.MethodOptions)
	assets.HandleFunc("/{id}", s.handleDeleteAsset).Methods(http.MethodDelete, http.MethodOptions)

	// Canvas routes
	canvases := authenticated.PathPrefix("/canvases").Subrouter()
	canvases.HandleFunc("", s.handleListCanvases).Methods(http.MethodGet, http.MethodOptions)
	canvases.HandleFunc("", s.handleCreateCanvas).Methods(http.MethodPost, http.MethodOptions)
	canvases.HandleFunc("/{id}", s.handleGetCanvas).Methods(http.MethodGet, http.MethodOptions)
	canvases.HandleFunc("/{id}", s.handleUpdateCanvas).Methods(http.MethodPatch, http.MethodOptions)
	canvases.HandleFunc("/{id}", s.handleDeleteCanvas).Methods(http.MethodDelete, http.MethodOptions)
	canvases.HandleFunc("/{id}/duplicate", s.handleDuplicateCanvas).Methods(http.MethodPost, http.MethodOptions)

	// Workflow routes
	workflows := authenticated.PathPrefix("/workflows").Subrouter()
	workflows.HandleFunc("", s.handleListWorkflows).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("", s.handleCreateWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleGetWorkflow).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleUpdateWorkflow).Methods(http.MethodPatch, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete, http.MethodOptions)
	workflows.HandleFunc("/{id}/thumbnail", s.handleUploadWorkflowThumbnail).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}/instantiate", s.handleInstantiateWorkflow).Methods(http.MethodPost, http.MethodOptions)

	// Generation routes
	authenticated.HandleFunc("/generations", s.handleListGenerations).Methods(http.MethodGet, http.MethodOptions)
	authenticated.HandleFunc("/generations/{id}", s.handleDeleteGeneration).Methods(http.MethodDelete, http.MethodOptions)
	authenticated.HandleFunc("/generations/{id}/ws", s.handleGenerationWebSocket).Methods(http.MethodGet)
	authenticated.HandleFunc("/generate-image", s.handleGenerateImage).Methods(http.MethodPost, http.MethodOptions)
	authenticated.HandleFunc("/generate-image/status", s.handleGenerationStatus).Methods(http.MethodGet, http.MethodOptions)

	// Text routes
	authenticated.HandleFunc("/generate-text", s.handleGenerateText).Methods(http.MethodPost, http.MethodOptions)
	authenticated.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost, http.MethodOptions)

	// Billing routes
	authenticated.HandleFunc("/checkout", s.handleCheckout).Methods(http.MethodPost, http.MethodOptions)
	authenticated.HandleFunc("/customer-portal", s.handleCustomerPortal).Methods(http.MethodPost, http.MethodOptions)

	// Model catalog
	authenticated.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet, http.MethodOptions)

	// Request logging
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("Request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	// CORS middleware for all routes
	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// requireAccount pulls the authenticated account ID out of the context,
// writing a 401 when absent
func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return accountID, true
}

// decodeBody parses a JSON request body, writing a 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

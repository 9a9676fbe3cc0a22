package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loomstudio/loom/pkg/assets"
	"github.com/loomstudio/loom/pkg/storage"
)

// AssetRequest carries the writable asset fields
type AssetRequest struct {
	Title              string   `json:"title"`
	Description        *string  `json:"description,omitempty"`
	AssetType          string   `json:"asset_type"`
	Category           *string  `json:"category,omitempty"`
	Visibility         *string  `json:"visibility,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	URL                string   `json:"url"`
	ThumbnailURL       *string  `json:"thumbnail_url,omitempty"`
	SourceNodeType     string   `json:"source_node_type,omitempty"`
	SourceGenerationID string   `json:"source_generation_id,omitempty"`
}

// handleListAssets handles GET /api/v1/assets
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := storage.AssetQuery{
		Visibility: q.Get("visibility"),
		Category:   q.Get("category"),
		Search:     q.Get("search"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		query.Offset = n
	}
	if query.Visibility != "" && !assets.IsValidVisibility(query.Visibility) {
		writeError(w, http.StatusBadRequest, "invalid visibility")
		return
	}
	if query.Category != "" && !assets.IsValidCategory(query.Category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}

	list, err := s.provider.GetAssetStore().ListAssets(accountID, query)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateAsset handles POST /api/v1/assets
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req AssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "title and url are required")
		return
	}
	if !assets.IsValidType(req.AssetType) {
		writeError(w, http.StatusBadRequest, "invalid asset_type")
		return
	}

	category := assets.DefaultCategoryForType(req.AssetType)
	if req.Category != nil {
		if !assets.IsValidCategory(*req.Category) {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		category = *req.Category
	}

	visibility := assets.VisibilityPrivate
	if req.Visibility != nil {
		if !assets.IsValidVisibility(*req.Visibility) {
			writeError(w, http.StatusBadRequest, "invalid visibility")
			return
		}
		visibility = *req.Visibility
	}

	tags := req.Tags
	if len(tags) == 0 {
		tags = assets.DefaultTagsForType(req.AssetType)
	}

	now := time.Now()
	asset := assets.Asset{
		ID:                 uuid.New().String(),
		AccountID:          accountID,
		Title:              req.Title,
		AssetType:          req.AssetType,
		Category:           category,
		Visibility:         visibility,
		Tags:               assets.NormalizeTags(tags),
		URL:                req.URL,
		StoragePath:        assets.InferStoragePathFromURL(req.URL, s.config.Blob.Bucket),
		SourceNodeType:     req.SourceNodeType,
		SourceGenerationID: req.SourceGenerationID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Description != nil {
		asset.Description = *req.Description
	}
	if req.ThumbnailURL != nil {
		asset.ThumbnailURL = *req.ThumbnailURL
	}

	if err := s.provider.GetAssetStore().SaveAsset(asset); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// handleUpdateAsset handles PATCH /api/v1/assets/{id}
func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	assetID := mux.Vars(r)["id"]

	var req struct {
		Title       *string   `json:"title,omitempty"`
		Description *string   `json:"description,omitempty"`
		Category    *string   `json:"category,omitempty"`
		Visibility  *string   `json:"visibility,omitempty"`
		Tags        *[]string `json:"tags,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	store := s.provider.GetAssetStore()
	asset, err := store.GetAsset(accountID, assetID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		asset.Title = *req.Title
	}
	if req.Description != nil {
		asset.Description = *req.Description
	}
	if req.Category != nil {
		if !assets.IsValidCategory(*req.Category) {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		asset.Category = *req.Category
	}
	if req.Visibility != nil {
		if !assets.IsValidVisibility(*req.Visibility) {
			writeError(w, http.StatusBadRequest, "invalid visibility")
			return
		}
		asset.Visibility = *req.Visibility
	}
	if req.Tags != nil {
		asset.Tags = assets.NormalizeTags(*req.Tags)
	}

	updated, err := store.UpdateAsset(asset)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteAsset handles DELETE /api/v1/assets/{id}
func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	assetID := mux.Vars(r)["id"]

	if err := s.provider.GetAssetStore().DeleteAsset(accountID, assetID); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

package api

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/storage"
)

// CanvasRequest carries the writable canvas fields. Nodes and edges
// always replace the stored arrays wholesale.
type CanvasRequest struct {
	Name         *string        `json:"name,omitempty"`
	Description  *string        `json:"description,omitempty"`
	ThumbnailURL *string        `json:"thumbnail_url,omitempty"`
	Nodes        *[]canvas.Node `json:"nodes,omitempty"`
	Edges        *[]canvas.Edge `json:"edges,omitempty"`
	IsFavorite   *bool          `json:"is_favorite,omitempty"`
}

// presentCanvas expands stored media paths back to public URLs
func (s *Server) presentCanvas(c canvas.Canvas) canvas.Canvas {
	c.Nodes = canvas.DenormalizeNodesFromStorage(c.Nodes, s.blobStore)
	return c
}

// handleListCanvases handles GET /api/v1/canvases
func (s *Server) handleListCanvases(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	list, err := s.provider.GetCanvasStore().ListCanvases(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	for i := range list {
		list[i] = s.presentCanvas(list[i])
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateCanvas handles POST /api/v1/canvases
func (s *Server) handleCreateCanvas(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req CanvasRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name := "Untitled"
	if req.Name != nil && *req.Name != "" {
		name = *req.Name
	}

	now := time.Now()
	c := canvas.Canvas{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Name:      name,
		Nodes:     []canvas.Node{},
		Edges:     []canvas.Edge{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Nodes != nil {
		c.Nodes = canvas.NormalizeNodesForStorage(*req.Nodes, s.blobStore)
	}
	if req.Edges != nil {
		c.Edges = canvas.NormalizeEdgesForStorage(*req.Edges)
	}

	if err := s.provider.GetCanvasStore().SaveCanvas(c); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.presentCanvas(c))
}

// handleGetCanvas handles GET /api/v1/canvases/{id} and records the open
func (s *Server) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	canvasID := mux.Vars(r)["id"]

	store := s.provider.GetCanvasStore()
	c, err := store.GetCanvas(accountID, canvasID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	// Opening a canvas bumps last_opened_at; failure is not fatal
	if err := store.TouchCanvas(accountID, canvasID); err != nil {
		log.Printf("Failed to record canvas open for %s: %v", canvasID, err)
	}

	writeJSON(w, http.StatusOK, s.presentCanvas(c))
}

// handleUpdateCanvas handles PATCH /api/v1/canvases/{id}. Node and edge
// updates replace the whole arrays; the last writer wins.
func (s *Server) handleUpdateCanvas(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	canvasID := mux.Vars(r)["id"]

	var req CanvasRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	update := storage.CanvasUpdate{
		Name:         req.Name,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		IsFavorite:   req.IsFavorite,
	}
	if req.Nodes != nil {
		normalized := canvas.NormalizeNodesForStorage(*req.Nodes, s.blobStore)
		update.Nodes = &normalized
	}
	if req.Edges != nil {
		normalized := canvas.NormalizeEdgesForStorage(*req.Edges)
		update.Edges = &normalized
	}

	updated, err := s.provider.GetCanvasStore().UpdateCanvas(accountID, canvasID, update)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presentCanvas(updated))
}

// handleDeleteCanvas handles DELETE /api/v1/canvases/{id}
func (s *Server) handleDeleteCanvas(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	canvasID := mux.Vars(r)["id"]

	if err := s.provider.GetCanvasStore().DeleteCanvas(accountID, canvasID); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleDuplicateCanvas handles POST /api/v1/canvases/{id}/duplicate
func (s *Server) handleDuplicateCanvas(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	canvasID := mux.Vars(r)["id"]

	store := s.provider.GetCanvasStore()
	original, err := store.GetCanvas(accountID, canvasID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	now := time.Now()
	dup := original
	dup.ID = uuid.New().String()
	dup.Name = original.Name + " (Copy)"
	dup.IsFavorite = false
	dup.LastOpenedAt = time.Time{}
	dup.CreatedAt = now
	dup.UpdatedAt = now

	if err := store.SaveCanvas(dup); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.presentCanvas(dup))
}

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/storage"
)

// maxThumbnailSize caps thumbnail uploads at 5 MiB
const maxThumbnailSize = 5 << 20

// WorkflowRequest carries the fields for saving a workflow. Graph data
// comes either inline (nodes/edges) or by extracting a group from an
// owned canvas (canvas_id + group_id).
type WorkflowRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	IsPublic    bool          `json:"is_public,omitempty"`
	CanvasID    string        `json:"canvas_id,omitempty"`
	GroupID     string        `json:"group_id,omitempty"`
	Nodes       []canvas.Node `json:"nodes,omitempty"`
	Edges       []canvas.Edge `json:"edges,omitempty"`
}

// presentWorkflow expands stored media paths back to public URLs
func (s *Server) presentWorkflow(w canvas.Workflow) canvas.Workflow {
	w.Nodes = canvas.DenormalizeNodesFromStorage(w.Nodes, s.blobStore)
	return w
}

// handleListWorkflows handles GET /api/v1/workflows
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	list, err := s.provider.GetWorkflowStore().ListWorkflows(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	for i := range list {
		list[i] = s.presentWorkflow(list[i])
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateWorkflow handles POST /api/v1/workflows
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req WorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	nodes, edges := req.Nodes, req.Edges
	if req.CanvasID != "" && req.GroupID != "" {
		source, err := s.provider.GetCanvasStore().GetCanvas(accountID, req.CanvasID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		subgraph, err := canvas.ExtractGroupAsWorkflow(req.GroupID, source.Nodes, source.Edges)
		if err != nil {
			if errors.Is(err, canvas.ErrGroupNotFound) || errors.Is(err, canvas.ErrEmptyGroup) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeStorageError(w, err)
			return
		}
		nodes, edges = subgraph.Nodes, subgraph.Edges
	}
	if len(nodes) == 0 {
		writeError(w, http.StatusBadRequest, "workflow graph is required: supply nodes or canvas_id and group_id")
		return
	}

	now := time.Now()
	workflow := canvas.Workflow{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Nodes:       canvas.NormalizeNodesForStorage(nodes, s.blobStore),
		Edges:       canvas.NormalizeEdgesForStorage(edges),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.provider.GetWorkflowStore().SaveWorkflow(workflow); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.presentWorkflow(workflow))
}

// handleGetWorkflow handles GET /api/v1/workflows/{id}
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	workflow, err := s.provider.GetWorkflowStore().GetWorkflow(accountID, workflowID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presentWorkflow(workflow))
}

// handleUpdateWorkflow handles PATCH /api/v1/workflows/{id}. Only the
// metadata changes; the saved graph is immutable.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	var req struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		IsPublic    *bool   `json:"is_public,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	updated, err := s.provider.GetWorkflowStore().UpdateWorkflow(accountID, workflowID, storage.WorkflowUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presentWorkflow(updated))
}

// handleDeleteWorkflow handles DELETE /api/v1/workflows/{id}
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	if err := s.provider.GetWorkflowStore().DeleteWorkflow(accountID, workflowID); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleUploadWorkflowThumbnail handles POST /api/v1/workflows/{id}/thumbnail
func (s *Server) handleUploadWorkflowThumbnail(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	store := s.provider.GetWorkflowStore()
	workflow, err := store.GetWorkflow(accountID, workflowID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if workflow.AccountID != accountID {
		writeError(w, http.StatusNotFound, storage.ErrWorkflowNotFound.Error())
		return
	}

	if err := r.ParseMultipartForm(maxThumbnailSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxThumbnailSize))
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "internal error", "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".png"
	}
	path := fmt.Sprintf("thumbnails/workflows/%s/%s%s", accountID, workflowID, ext)

	url, err := s.blobStore.Upload(r.Context(), path, contentType, data)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "internal error", "failed to store thumbnail")
		return
	}

	updated, err := store.UpdateWorkflow(accountID, workflowID, storage.WorkflowUpdate{ThumbnailURL: &url})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presentWorkflow(updated))
}

// InstantiateRequest places a saved workflow onto a canvas
type InstantiateRequest struct {
	CanvasID string          `json:"canvas_id"`
	Position canvas.Position `json:"position"`
}

// handleInstantiateWorkflow handles POST /api/v1/workflows/{id}/instantiate.
// The saved subgraph is cloned with fresh IDs and appended to the canvas.
func (s *Server) handleInstantiateWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	var req InstantiateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CanvasID == "" {
		writeError(w, http.StatusBadRequest, "canvas_id is required")
		return
	}

	workflow, err := s.provider.GetWorkflowStore().GetWorkflow(accountID, workflowID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	canvasStore := s.provider.GetCanvasStore()
	target, err := canvasStore.GetCanvas(accountID, req.CanvasID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	clone, err := canvas.InstantiateWorkflow(workflow.Nodes, workflow.Edges, req.Position)
	if err != nil {
		if errors.Is(err, canvas.ErrInvalidWorkflow) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStorageError(w, err)
		return
	}

	nodes := append(target.Nodes, clone.Nodes...)
	edges := append(target.Edges, clone.Edges...)
	updated, err := canvasStore.UpdateCanvas(accountID, req.CanvasID, storage.CanvasUpdate{
		Nodes: &nodes,
		Edges: &edges,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presentCanvas(updated))
}

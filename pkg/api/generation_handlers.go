package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loomstudio/loom/pkg/gateway"
	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/storage"
)

// GenerateImageRequest submits one model invocation
type GenerateImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	// References are conditioning images, uploaded to blob storage
	// before the gateway call
	References []ReferenceUpload `json:"references,omitempty"`

	// Parameters are model-specific knobs passed through unmodified
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ReferenceUpload is one inline conditioning image
type ReferenceUpload struct {
	Data        string `json:"data"` // base64
	ContentType string `json:"content_type"`
}

// GenerationResponse is the client-facing generation shape
type GenerationResponse struct {
	GenerationID string   `json:"generation_id"`
	PredictionID string   `json:"prediction_id,omitempty"`
	Status       string   `json:"status"`
	Image        string   `json:"image,omitempty"`
	Images       []string `json:"images,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// primaryOutput picks the URL to persist for a result: the single image
// when present, otherwise the first of a multi-output batch
func primaryOutput(image string, images []string) string {
	if image != "" {
		return image
	}
	if len(images) > 0 {
		return images[0]
	}
	return ""
}

// handleListGenerations handles GET /api/v1/generations
func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	list, err := s.provider.GetGenerationStore().ListGenerations(accountID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteGeneration handles DELETE /api/v1/generations/{id}. Record
// removal is authoritative; storage object cleanup is best-effort.
func (s *Server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	generationID := mux.Vars(r)["id"]

	store := s.provider.GetGenerationStore()
	gen, err := store.GetGeneration(accountID, generationID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	for _, path := range append([]string{gen.StoragePath}, gen.ReferencePaths...) {
		if path == "" {
			continue
		}
		if err := s.blobStore.Remove(r.Context(), path); err != nil {
			log.Printf("Failed to remove storage object %s for generation %s: %v", path, generationID, err)
		}
	}

	if err := store.DeleteGeneration(accountID, generationID); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleGenerateImage handles POST /api/v1/generate-image
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req GenerateImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Model == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "model and prompt are required")
		return
	}

	model, err := s.provider.GetModelStore().GetModelByIdentifier(req.Model)
	if err != nil {
		if errors.Is(err, storage.ErrModelNotFound) {
			writeError(w, http.StatusBadRequest, "unknown model")
			return
		}
		writeStorageError(w, err)
		return
	}
	if !model.IsActive {
		writeError(w, http.StatusBadRequest, "model is not available")
		return
	}

	if _, err := s.accountService.DeductCredits(accountID, model.CreditsCost); err != nil {
		if errors.Is(err, storage.ErrInsufficientCredits) {
			writeError(w, http.StatusPaymentRequired, "insufficient credits")
			return
		}
		writeStorageError(w, err)
		return
	}

	generationID := uuid.New().String()
	referenceURLs, referencePaths, err := s.uploadReferences(r, accountID, generationID, req.References)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	gen := generation.Generation{
		ID:              generationID,
		AccountID:       accountID,
		Status:          generation.StatusPending,
		ModelIdentifier: model.Identifier,
		Prompt:          req.Prompt,
		ReferencePaths:  referencePaths,
		CreditsCost:     model.CreditsCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store := s.provider.GetGenerationStore()

	result, done, err := s.gatewayClient.Submit(r.Context(), gateway.GenerateRequest{
		Model:         model.Identifier,
		Prompt:        req.Prompt,
		ReferenceURLs: referenceURLs,
		Parameters:    req.Parameters,
	})
	if err != nil {
		gen.Status = generation.StatusFailed
		gen.ErrorMessage = err.Error()
		if saveErr := store.SaveGeneration(gen); saveErr != nil {
			log.Printf("Failed to record failed generation %s: %v", generationID, saveErr)
		}
		// Nothing was generated, so the reserved credits go back
		if _, refundErr := s.provider.GetAccountStore().AdjustCredits(accountID, model.CreditsCost); refundErr != nil {
			log.Printf("Failed to refund credits for generation %s: %v", generationID, refundErr)
		}
		if errors.Is(err, gateway.ErrInsufficientCredits) {
			writeError(w, http.StatusPaymentRequired, err.Error())
			return
		}
		writeErrorDetail(w, http.StatusInternalServerError, "generation failed", err.Error())
		return
	}

	if done {
		gen.Status = generation.StatusCompleted
		gen.StoragePath = s.blobStore.PathFromURL(primaryOutput(result.Image, result.Images))
		if err := store.SaveGeneration(gen); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GenerationResponse{
			GenerationID: generationID,
			Status:       generation.StatusCompleted,
			Image:        result.Image,
			Images:       result.Images,
		})
		return
	}

	gen.PredictionID = result.PredictionID
	if err := store.SaveGeneration(gen); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, GenerationResponse{
		GenerationID: generationID,
		PredictionID: result.PredictionID,
		Status:       generation.StatusPending,
	})
}

// uploadReferences stores inline conditioning images and returns their
// public URLs and storage paths
func (s *Server) uploadReferences(r *http.Request, accountID, generationID string, refs []ReferenceUpload) ([]string, []string, error) {
	urls := make([]string, 0, len(refs))
	paths := make([]string, 0, len(refs))
	for i, ref := range refs {
		data, err := base64.StdEncoding.DecodeString(ref.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("reference %d is not valid base64", i)
		}
		path := fmt.Sprintf("references/%s/%s/%d", accountID, generationID, i)
		url, err := s.blobStore.Upload(r.Context(), path, ref.ContentType, data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to store reference %d", i)
		}
		urls = append(urls, url)
		paths = append(paths, path)
	}
	return urls, paths, nil
}

// handleGenerationStatus handles GET /api/v1/generate-image/status.
// Pending predictions are checked against the gateway and the record
// updated on terminal answers.
func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	predictionID := r.URL.Query().Get("predictionId")
	if predictionID == "" {
		writeError(w, http.StatusBadRequest, "predictionId is required")
		return
	}

	store := s.provider.GetGenerationStore()
	gen, err := store.GetGenerationByPredictionID(accountID, predictionID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var liveImages []string
	if !generation.IsTerminal(gen.Status) {
		status, err := s.gatewayClient.Status(r.Context(), predictionID)
		if err != nil {
			writeErrorDetail(w, http.StatusInternalServerError, "status check failed", err.Error())
			return
		}
		switch status.Status {
		case "completed":
			gen.Status = generation.StatusCompleted
			gen.StoragePath = s.blobStore.PathFromURL(primaryOutput(status.Image, status.Images))
			liveImages = status.Images
			if err := store.UpdateGenerationStatus(gen.ID, gen.Status, gen.StoragePath, ""); err != nil {
				log.Printf("Failed to update generation %s: %v", gen.ID, err)
			}
		case "failed":
			gen.Status = generation.StatusFailed
			gen.ErrorMessage = status.Error
			if err := store.UpdateGenerationStatus(gen.ID, gen.Status, "", status.Error); err != nil {
				log.Printf("Failed to update generation %s: %v", gen.ID, err)
			}
		}
	}

	resp := GenerationResponse{
		GenerationID: gen.ID,
		PredictionID: gen.PredictionID,
		Status:       gen.Status,
		Error:        gen.ErrorMessage,
	}
	if gen.Status == generation.StatusCompleted && gen.StoragePath != "" {
		resp.Image = s.blobStore.URLFromPath(gen.StoragePath)
		resp.Images = liveImages
	}
	writeJSON(w, http.StatusOK, resp)
}

// WebhookRequest is the worker callback payload. The record is resolved
// by prediction ID alone, so the worker can only touch the generation it
// actually ran.
type WebhookRequest struct {
	PredictionID string `json:"prediction_id"`
	Status       string `json:"status"`
	Output       string `json:"output,omitempty"`
	Error        string `json:"error,omitempty"`
}

// handleGenerationWebhook handles POST /api/v1/webhooks/generation, the
// callback the generation worker fires on completion or failure
func (s *Server) handleGenerationWebhook(w http.ResponseWriter, r *http.Request) {
	// The worker authenticates with the shared gateway key
	if key := s.config.Gateway.APIKey; key != "" {
		if r.Header.Get("X-Webhook-Token") != key {
			writeError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
	}

	var req WebhookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PredictionID == "" {
		writeError(w, http.StatusBadRequest, "prediction_id is required")
		return
	}
	if req.Status != generation.StatusCompleted && req.Status != generation.StatusFailed {
		writeError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}

	store := s.provider.GetGenerationStore()
	gen, err := store.LookupGenerationByPredictionID(req.PredictionID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	storagePath := ""
	if req.Status == generation.StatusCompleted {
		storagePath = s.blobStore.PathFromURL(req.Output)
	}
	if err := store.UpdateGenerationStatus(gen.ID, req.Status, storagePath, req.Error); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

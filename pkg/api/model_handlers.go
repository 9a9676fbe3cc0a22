package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/loomstudio/loom/pkg/models"
)

// handleListModels handles GET /api/v1/models. Results are cached per
// model type; cache failures fall through to the store.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAccount(w, r); !ok {
		return
	}

	modelType := r.URL.Query().Get("type")
	if modelType != "" && !models.IsValidType(modelType) {
		writeError(w, http.StatusBadRequest, "invalid model type")
		return
	}

	cacheKey := "models:" + modelType
	if cached, ok, err := s.modelCache.Get(r.Context(), cacheKey); err == nil && ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	} else if err != nil {
		log.Printf("Model cache read failed: %v", err)
	}

	list, err := s.provider.GetModelStore().ListModels(modelType)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	payload, err := json.Marshal(list)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "internal error", "failed to encode models")
		return
	}
	if err := s.modelCache.Set(r.Context(), cacheKey, payload, s.modelCacheTTL); err != nil {
		log.Printf("Model cache write failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

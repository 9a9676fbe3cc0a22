package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/loomstudio/loom/pkg/generation"
)

// statusPollInterval is how often the stream re-reads the record
const statusPollInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens via the bearer token, not the origin
		return true
	},
}

// StatusUpdate is one message on the generation status stream
type StatusUpdate struct {
	GenerationID string    `json:"generation_id"`
	Status       string    `json:"status"`
	Image        string    `json:"image,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// handleGenerationWebSocket handles GET /api/v1/generations/{id}/ws. The
// connection streams status changes and closes after the terminal one.
func (s *Server) handleGenerationWebSocket(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	generationID := mux.Vars(r)["id"]

	store := s.provider.GetGenerationStore()
	if _, err := store.GetGeneration(accountID, generationID); err != nil {
		writeStorageError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain client messages so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	lastStatus := ""
	for {
		gen, err := store.GetGeneration(accountID, generationID)
		if err != nil {
			// Deleted while streaming; nothing left to report
			return
		}

		if gen.Status != lastStatus {
			lastStatus = gen.Status
			update := StatusUpdate{
				GenerationID: gen.ID,
				Status:       gen.Status,
				Error:        gen.ErrorMessage,
				Timestamp:    time.Now(),
			}
			if gen.Status == generation.StatusCompleted && gen.StoragePath != "" {
				update.Image = s.blobStore.URLFromPath(gen.StoragePath)
			}

			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}

		if generation.IsTerminal(gen.Status) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "generation finished"))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

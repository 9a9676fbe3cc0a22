package api

import (
	"net/http"

	"github.com/loomstudio/loom/pkg/llm"
)

// handleGenerateText handles POST /api/v1/generate-text
func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAccount(w, r); !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := s.llmClient.Chat(r.Context(), llm.ChatRequest{
		Model:    req.Model,
		Messages: []llm.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "text generation failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// handleChat handles POST /api/v1/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAccount(w, r); !ok {
		return
	}

	var req struct {
		Messages []llm.Message `json:"messages"`
		Model    string        `json:"model,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	reply, err := s.llmClient.Chat(r.Context(), llm.ChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	})
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "chat failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"role":    "assistant",
		"content": reply,
	})
}

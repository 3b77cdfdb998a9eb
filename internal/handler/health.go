package handler

import (
	"net/http"

	"github.com/QDev-Technolab/document-reader-ai/internal/embedding"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	embedder embedding.Embedder
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(embedder embedding.Embedder) *HealthHandler {
	return &HealthHandler{embedder: embedder}
}

// Health handles GET /health. Always healthy while the process serves.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready. Readiness requires a reachable embedding backend,
// since neither ingest nor retrieval works without one.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.embedder.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/embedding"
	"github.com/QDev-Technolab/document-reader-ai/internal/middleware"
	"github.com/QDev-Technolab/document-reader-ai/internal/orchestrator"
	"github.com/QDev-Technolab/document-reader-ai/internal/retriever"
	"github.com/QDev-Technolab/document-reader-ai/pkg/logger"
)

// ChatHandler serves the blocking ask and status endpoints.
type ChatHandler struct {
	orch           *orchestrator.Orchestrator
	embedder       embedding.Embedder
	llmProvider    string
	llmModel       string
	embeddingModel string
	logger         *logger.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(orch *orchestrator.Orchestrator, embedder embedding.Embedder, llmProvider, llmModel string, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		orch:           orch,
		embedder:       embedder,
		llmProvider:    llmProvider,
		llmModel:       llmModel,
		embeddingModel: embedder.ModelName(),
		logger:         log,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask handles POST /chat/ask. A stateless question with no conversation
// persistence.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQuestion(req.Question); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.orch.Answer(r.Context(), req.Question, parseTopK(r))
	if err != nil {
		if errors.Is(err, retriever.ErrNoDocuments) {
			writeError(w, http.StatusConflict, "no documents have been uploaded yet")
			return
		}
		h.logger.Error("blocking answer failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to generate answer")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

// Status handles GET /chat/status. Reports whether the embedding backend is
// reachable along with the configured models.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	var reason string
	if err := h.embedder.Ping(r.Context()); err != nil {
		status = "degraded"
		reason = err.Error()
	}

	resp := map[string]string{
		"status":          status,
		"embedding_model": h.embeddingModel,
		"llm_provider":    h.llmProvider,
		"llm_model":       h.llmModel,
	}
	if reason != "" {
		resp["reason"] = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

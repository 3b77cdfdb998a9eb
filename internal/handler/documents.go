package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/extract"
	"github.com/QDev-Technolab/document-reader-ai/internal/ingest"
	"github.com/QDev-Technolab/document-reader-ai/internal/middleware"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/orchestrator"
	"github.com/QDev-Technolab/document-reader-ai/internal/retriever"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/pkg/logger"
)

// maxUploadSize bounds an uploaded file (32 MB).
const maxUploadSize = 32 << 20

// DocumentHandler serves upload and document management endpoints.
type DocumentHandler struct {
	ingest *ingest.Service
	docs   store.DocumentStore
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(svc *ingest.Service, docs store.DocumentStore, orch *orchestrator.Orchestrator, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		ingest: svc,
		docs:   docs,
		orch:   orch,
		logger: log,
	}
}

// Upload handles POST /chat/upload. Expects a multipart form with a "file"
// part and an optional "chunkSize" value.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	chunkSize := 0
	if raw := r.FormValue("chunkSize"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			chunkSize = n
		}
	}

	doc, err := h.ingest.Ingest(r.Context(), header.Filename, data, chunkSize)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedFormat):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, ingest.ErrEmptyDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("ingest failed",
				zap.String("filename", header.Filename), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to process document")
		}
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// List handles GET /chat/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// Delete handles DELETE /chat/documents/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.docs.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("delete document failed",
			zap.String("document_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskDocument handles POST /chat/documents/{id}/ask. Like the blocking ask,
// with retrieval restricted to one document.
func (h *DocumentHandler) AskDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.docs.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQuestion(req.Question); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.orch.AnswerInDocument(r.Context(), id, req.Question, parseTopK(r))
	if err != nil {
		if errors.Is(err, retriever.ErrNoDocuments) {
			writeError(w, http.StatusConflict, "document has no searchable content")
			return
		}
		h.logger.Error("document answer failed",
			zap.String("document_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to generate answer")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

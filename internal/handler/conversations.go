package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/conversation"
	"github.com/QDev-Technolab/document-reader-ai/internal/middleware"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/pkg/logger"
)

// ConversationHandler serves conversation listing and thread endpoints.
type ConversationHandler struct {
	convs  *conversation.Manager
	logger *logger.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(convs *conversation.Manager, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{convs: convs, logger: log}
}

// List handles GET /chat/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.convs.List(r.Context())
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// Thread handles GET /chat/conversations/{id}/thread. Returns the active
// thread: the most recent branch at every fork.
func (h *ConversationHandler) Thread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := h.convs.ActiveThread(r.Context(), id)
	if err != nil {
		h.respondThreadError(w, id, err)
		return
	}
	if thread == nil {
		thread = []model.ThreadMessage{}
	}
	writeJSON(w, http.StatusOK, thread)
}

// ThreadFrom handles GET /chat/conversations/{id}/thread-from/{msgId}.
// Returns the forward walk starting at the given message, which is how a
// client switches to another sibling branch.
func (h *ConversationHandler) ThreadFrom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgID := chi.URLParam(r, "msgId")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageID(msgID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := h.convs.ThreadFrom(r.Context(), id, msgID)
	if err != nil {
		h.respondThreadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// Siblings handles GET /chat/conversations/{id}/messages/{msgId}/siblings.
func (h *ConversationHandler) Siblings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgID := chi.URLParam(r, "msgId")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageID(msgID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	siblings, err := h.convs.Siblings(r.Context(), id, msgID)
	if err != nil {
		h.respondThreadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, siblings)
}

// Delete handles DELETE /chat/conversations/{id}.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.convs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("delete conversation failed",
			zap.String("conversation_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) respondThreadError(w http.ResponseWriter, conversationID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error("thread query failed",
		zap.String("conversation_id", conversationID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to load thread")
}

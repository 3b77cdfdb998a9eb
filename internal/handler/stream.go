package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/middleware"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/orchestrator"
	"github.com/QDev-Technolab/document-reader-ai/pkg/logger"
	"github.com/QDev-Technolab/document-reader-ai/pkg/metrics"
)

// StreamHandler serves the SSE question-answering endpoint.
type StreamHandler struct {
	orch    *orchestrator.Orchestrator
	timeout time.Duration
	logger  *logger.Logger
}

// NewStreamHandler creates a stream handler. timeout bounds one full
// generation; zero disables the bound.
func NewStreamHandler(orch *orchestrator.Orchestrator, timeout time.Duration, log *logger.Logger) *StreamHandler {
	return &StreamHandler{orch: orch, timeout: timeout, logger: log}
}

type askStreamRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId"`
	ParentID       string `json:"parentId"`
	IsEdit         bool   `json:"isEdit"`
}

// tokenEvent is the payload of each streamed token.
type tokenEvent struct {
	T string `json:"t"`
}

// messageRefEvent announces a persisted user message.
type messageRefEvent struct {
	ID           string  `json:"id"`
	ParentID     *string `json:"parentId"`
	SiblingCount int     `json:"siblingCount"`
	SiblingIndex int     `json:"siblingIndex"`
}

// doneEvent terminates a successful stream with the persisted assistant turn.
type doneEvent struct {
	AssistantMessageID    string  `json:"assistantMessageId"`
	AssistantParentID     *string `json:"assistantParentId"`
	AssistantSiblingCount int     `json:"assistantSiblingCount"`
	AssistantSiblingIndex int     `json:"assistantSiblingIndex"`
}

// AskStream handles POST /chat/ask-stream. Events arrive in order:
// conversationId (only when a conversation was created), userMessage, zero or
// more token events, then exactly one of done or error.
func (h *StreamHandler) AskStream(w http.ResponseWriter, r *http.Request) {
	var req askStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQuestion(req.Question); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.ParentID != "" {
		if err := middleware.ValidateMessageID(req.ParentID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	sink := &sseSink{
		w:       w,
		flusher: flusher,
		logger:  h.logger,
	}
	h.orch.StreamAnswer(ctx, orchestrator.AskRequest{
		Question:       req.Question,
		TopK:           parseTopK(r),
		ConversationID: req.ConversationID,
		ParentID:       req.ParentID,
		IsEdit:         req.IsEdit,
	}, sink)
}

// sseSink adapts the orchestrator event callbacks onto the SSE wire.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *logger.Logger
}

func (s *sseSink) OnConversationReady(conversationID string, created bool) {
	if !created {
		return
	}
	sendSSEEvent(s.w, s.flusher, "conversationId", conversationID)
}

func (s *sseSink) OnUserSaved(ref model.SavedMessageRef) {
	sendSSEEvent(s.w, s.flusher, "userMessage", messageRefEvent{
		ID:           ref.ID,
		ParentID:     ref.ParentID,
		SiblingCount: ref.SiblingCount,
		SiblingIndex: ref.SiblingIndex,
	})
}

func (s *sseSink) OnToken(token string) {
	sendSSEEvent(s.w, s.flusher, "token", tokenEvent{T: token})
}

func (s *sseSink) OnDone(ref model.SavedMessageRef) {
	sendSSEEvent(s.w, s.flusher, "done", doneEvent{
		AssistantMessageID:    ref.ID,
		AssistantParentID:     ref.ParentID,
		AssistantSiblingCount: ref.SiblingCount,
		AssistantSiblingIndex: ref.SiblingIndex,
	})
}

func (s *sseSink) OnError(err error) {
	s.logger.Error("stream failed", zap.Error(err))
	sendSSEEvent(s.w, s.flusher, "error", err.Error())
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}

// Package orchestrator wires retrieval, conversation history, and answer
// generation into the question-answering pipeline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/conversation"
	"github.com/QDev-Technolab/document-reader-ai/internal/events"
	"github.com/QDev-Technolab/document-reader-ai/internal/llm"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/retriever"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/pkg/metrics"
)

// OutOfContextMessage is the fixed reply when retrieval finds nothing
// relevant. It is persisted like any other assistant turn so the thread
// stays coherent.
const OutOfContextMessage = "I’m unable to locate information related to your question in the uploaded document."

// truncationNotice is appended when generation stops at the token budget.
const truncationNotice = "\n\n*(Response reached the token limit. For a more complete answer, try asking a more focused question or break it into smaller parts.)*"

// ErrParentMismatch is returned when the supplied parent message does not
// belong to the conversation.
var ErrParentMismatch = errors.New("parent message does not belong to conversation")

// maxTitleLen bounds the auto-generated conversation title.
const maxTitleLen = 80

// maxHistoryTurns bounds how many ancestor messages enrich a follow-up.
const maxHistoryTurns = 4

// AskRequest carries one question through the pipeline.
type AskRequest struct {
	Question       string
	TopK           int
	ConversationID string
	ParentID       string
	IsEdit         bool
	// DocumentID restricts retrieval to one document when set.
	DocumentID string
}

// Sink receives streaming pipeline events in order: conversation, user
// message, tokens, then exactly one of done or error.
type Sink interface {
	OnConversationReady(conversationID string, created bool)
	OnUserSaved(ref model.SavedMessageRef)
	OnToken(token string)
	OnDone(ref model.SavedMessageRef)
	OnError(err error)
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	store.ChunkStore
	store.ConversationStore
	store.MessageStore
}

// Options carries tunables from configuration.
type Options struct {
	DefaultTopK     int
	NumCtx          int
	MaxContextChars int
}

// Orchestrator runs the end-to-end question answering pipeline.
type Orchestrator struct {
	store     Store
	convs     *conversation.Manager
	retriever *retriever.Retriever
	client    llm.Client
	publisher *events.Publisher
	opts      Options
	logger    *zap.Logger
}

// New creates an orchestrator. The publisher may be nil when eventing is
// disabled.
func New(st Store, convs *conversation.Manager, ret *retriever.Retriever, client llm.Client, publisher *events.Publisher, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.NumCtx <= 0 {
		opts.NumCtx = 4096
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 4500
	}
	return &Orchestrator{
		store:     st,
		convs:     convs,
		retriever: ret,
		client:    client,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Answer runs the blocking pipeline without conversation persistence.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int) (string, error) {
	return o.answerScoped(ctx, "", question, topK)
}

// AnswerInDocument answers a question against a single document.
func (o *Orchestrator) AnswerInDocument(ctx context.Context, documentID, question string, topK int) (string, error) {
	return o.answerScoped(ctx, documentID, question, topK)
}

func (o *Orchestrator) answerScoped(ctx context.Context, documentID, question string, topK int) (string, error) {
	style := detectResponseStyle(question)
	questionType := detectQuestionType(question)
	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}

	scored, err := o.retrieveScoped(ctx, documentID, question, effectiveTopK(questionType, topK))
	if err != nil {
		// ErrNoDocuments stays distinguishable for callers; only a search
		// that ran and found nothing yields the out-of-context reply.
		return "", fmt.Errorf("retrieve: %w", err)
	}
	if len(scored) == 0 {
		return OutOfContextMessage, nil
	}

	prompt := buildPrompt(question, buildContext(chunkTexts(scored), o.opts.MaxContextChars), style, questionType)
	resp, err := o.client.Complete(ctx, &llm.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: estimateTokens(question, questionType, style, o.opts.NumCtx),
		NumCtx:    o.opts.NumCtx,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := cleanupResponse(resp.Content)
	if resp.Truncated {
		answer += truncationNotice
	}
	return answer, nil
}

// StreamAnswer runs the streaming pipeline. The user message is persisted
// before generation starts; the assistant message is persisted only on a
// successful stream, so a failed generation can be retried against the same
// parent.
func (o *Orchestrator) StreamAnswer(ctx context.Context, req AskRequest, sink Sink) {
	start := time.Now()

	conv, created, err := o.resolveConversation(ctx, req)
	if err != nil {
		sink.OnError(err)
		return
	}
	sink.OnConversationReady(conv.ID, created)

	parentID, err := o.resolveParent(ctx, conv.ID, req)
	if err != nil {
		sink.OnError(err)
		return
	}

	userMsg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Question,
		ParentID:       parentID,
		CreatedAt:      time.Now(),
	}
	if err := o.store.InsertMessage(ctx, &userMsg); err != nil {
		sink.OnError(fmt.Errorf("save user message: %w", err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	userRef, err := o.convs.SiblingRef(ctx, userMsg)
	if err != nil {
		sink.OnError(err)
		return
	}
	sink.OnUserSaved(userRef)

	style := detectResponseStyle(req.Question)
	questionType := detectQuestionType(req.Question)
	topK := req.TopK
	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}

	// Retrieval always uses the raw question; the enriched variant exists
	// only to help the model resolve follow-up references. An empty store
	// (ErrNoDocuments) is a terminal error, not an out-of-context answer:
	// the user turn stays so the question can be retried after an upload.
	scored, err := o.retrieveScoped(ctx, req.DocumentID, req.Question, effectiveTopK(questionType, topK))
	if err != nil {
		sink.OnError(fmt.Errorf("retrieve: %w", err))
		return
	}
	if len(scored) == 0 {
		sink.OnToken(OutOfContextMessage)
		o.finishAssistant(ctx, conv.ID, userMsg.ID, OutOfContextMessage, sink)
		o.publishAnswered(ctx, conv.ID, string(questionType), true)
		return
	}

	enriched, err := o.enrichQuestion(ctx, conv.ID, req.Question, parentID)
	if err != nil {
		sink.OnError(err)
		return
	}

	prompt := buildPrompt(enriched, buildContext(chunkTexts(scored), o.opts.MaxContextChars), style, questionType)
	maxTokens := estimateTokens(req.Question, questionType, style, o.opts.NumCtx)

	o.logger.Debug("starting generation",
		zap.String("conversation_id", conv.ID),
		zap.String("style", string(style)),
		zap.String("question_type", string(questionType)),
		zap.Int("max_tokens", maxTokens),
		zap.Int("chunks", len(scored)))

	tokens := 0
	resp, err := o.client.CompleteStream(ctx, &llm.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: maxTokens,
		NumCtx:    o.opts.NumCtx,
	}, func(token string, index int) error {
		tokens++
		sink.OnToken(token)
		return nil
	})
	if err != nil {
		metrics.RecordLLMStream(o.client.Name(), "error", time.Since(start).Seconds(), tokens)
		sink.OnError(fmt.Errorf("generate answer: %w", err))
		return
	}

	content := resp.Content
	if resp.Truncated {
		// Surface the cutoff in the stream and keep it in the stored turn.
		sink.OnToken(truncationNotice)
		content += truncationNotice
		o.logger.Warn("response truncated at token budget",
			zap.String("conversation_id", conv.ID),
			zap.Int("max_tokens", maxTokens))
	}

	metrics.RecordLLMStream(o.client.Name(), "ok", time.Since(start).Seconds(), tokens)
	o.finishAssistant(ctx, conv.ID, userMsg.ID, content, sink)
	o.publishAnswered(ctx, conv.ID, string(questionType), false)
}

func (o *Orchestrator) retrieveScoped(ctx context.Context, documentID, question string, topK int) ([]retriever.ScoredChunk, error) {
	if documentID != "" {
		return o.retriever.RetrieveInDocument(ctx, documentID, question, topK)
	}
	return o.retriever.Retrieve(ctx, question, topK)
}

// resolveConversation loads the requested conversation or creates one titled
// after the question.
func (o *Orchestrator) resolveConversation(ctx context.Context, req AskRequest) (*model.Conversation, bool, error) {
	if req.ConversationID != "" {
		conv, err := o.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, false, fmt.Errorf("conversation %s: %w", req.ConversationID, err)
		}
		return conv, false, nil
	}

	title := req.Question
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen]) + "..."
	}
	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsTotal.Inc()
	return conv, true, nil
}

// resolveParent picks the parent for the new user message. An explicit
// parent must belong to the conversation. Without one, a normal follow-up
// attaches to the active thread tail while an edit starts a fresh root
// branch.
func (o *Orchestrator) resolveParent(ctx context.Context, conversationID string, req AskRequest) (*string, error) {
	if req.ParentID != "" {
		if _, err := o.store.GetMessage(ctx, conversationID, req.ParentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrParentMismatch, req.ParentID)
			}
			return nil, fmt.Errorf("resolve parent: %w", err)
		}
		id := req.ParentID
		return &id, nil
	}
	if req.IsEdit {
		return nil, nil
	}

	tail, err := o.convs.ActiveTail(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve thread tail: %w", err)
	}
	if tail == nil {
		return nil, nil
	}
	id := tail.ID
	return &id, nil
}

func (o *Orchestrator) enrichQuestion(ctx context.Context, conversationID, question string, parentID *string) (string, error) {
	if parentID == nil {
		return question, nil
	}
	ancestors, err := o.convs.Ancestors(ctx, conversationID, parentID, maxHistoryTurns)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	return historyAwareQuestion(question, ancestors), nil
}

// finishAssistant persists the assistant turn, bumps the conversation, and
// reports the terminal done event.
func (o *Orchestrator) finishAssistant(ctx context.Context, conversationID, userMessageID, content string, sink Sink) {
	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        content,
		ParentID:       &userMessageID,
		CreatedAt:      time.Now(),
	}
	if err := o.store.InsertMessage(ctx, &msg); err != nil {
		sink.OnError(fmt.Errorf("save assistant message: %w", err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	if err := o.store.TouchConversation(ctx, conversationID, time.Now()); err != nil {
		o.logger.Warn("touch conversation",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}

	ref, err := o.convs.SiblingRef(ctx, msg)
	if err != nil {
		sink.OnError(err)
		return
	}
	sink.OnDone(ref)
}

func (o *Orchestrator) publishAnswered(ctx context.Context, conversationID, questionType string, outOfContext bool) {
	o.publisher.AnswerGenerated(ctx, events.AnswerGenerated{
		ConversationID: conversationID,
		QuestionType:   questionType,
		OutOfContext:   outOfContext,
		At:             time.Now(),
	})
}

func chunkTexts(scored []retriever.ScoredChunk) []string {
	texts := make([]string, len(scored))
	for i, sc := range scored {
		texts[i] = sc.Chunk.Chunk.Text
	}
	return texts
}

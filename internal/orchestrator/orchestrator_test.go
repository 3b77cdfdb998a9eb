package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QDev-Technolab/document-reader-ai/internal/conversation"
	"github.com/QDev-Technolab/document-reader-ai/internal/llm"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/retriever"
	"github.com/QDev-Technolab/document-reader-ai/internal/store/memory"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) ModelName() string          { return "stub" }
func (stubEmbedder) Ping(context.Context) error { return nil }

// stubLLM streams a canned answer token by token.
type stubLLM struct {
	tokens     []string
	stopReason string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	s.lastPrompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{
		Content:    strings.Join(s.tokens, ""),
		StopReason: s.stopReason,
		Truncated:  s.stopReason == "length",
	}, nil
}

func (s *stubLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	s.calls++
	s.lastPrompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	for i, tok := range s.tokens {
		if err := callback(tok, i); err != nil {
			return nil, err
		}
	}
	return &llm.CompletionResponse{
		Content:    strings.Join(s.tokens, ""),
		StopReason: s.stopReason,
		Truncated:  s.stopReason == "length",
	}, nil
}

func (s *stubLLM) Name() string { return "stub" }

// recordingSink captures pipeline events for assertions.
type recordingSink struct {
	conversationID string
	created        bool
	userRef        *model.SavedMessageRef
	tokens         []string
	doneRef        *model.SavedMessageRef
	err            error
}

func (r *recordingSink) OnConversationReady(id string, created bool) {
	r.conversationID = id
	r.created = created
}
func (r *recordingSink) OnUserSaved(ref model.SavedMessageRef) { r.userRef = &ref }
func (r *recordingSink) OnToken(token string)                  { r.tokens = append(r.tokens, token) }
func (r *recordingSink) OnDone(ref model.SavedMessageRef)      { r.doneRef = &ref }
func (r *recordingSink) OnError(err error)                     { r.err = err }

type env struct {
	store *memory.Store
	convs *conversation.Manager
	llm   *stubLLM
	orch  *Orchestrator
}

func newEnv(t *testing.T, client *stubLLM) *env {
	t.Helper()
	st := memory.New()
	convs := conversation.NewManager(st)
	ret := retriever.New(st, stubEmbedder{}, retriever.DefaultSynonyms())
	orch := New(st, convs, ret, client, nil, Options{}, nil)
	return &env{store: st, convs: convs, llm: client, orch: orch}
}

func (e *env) seedDocument(t *testing.T, text string) {
	t.Helper()
	e.seedChunk(t, text, []float32{1, 0})
}

// seedUnrelatedDocument indexes a chunk orthogonal to every query vector and
// with no overlapping keywords, so retrieval runs but matches nothing.
func (e *env) seedUnrelatedDocument(t *testing.T) {
	t.Helper()
	e.seedChunk(t, "Quarterly revenue figures and financial projections.", []float32{0, 1})
}

func (e *env) seedChunk(t *testing.T, text string, embedding []float32) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.store.CreateDocument(ctx, &model.Document{
		ID: "doc-1", Filename: "doc.txt", Extension: "txt",
		Status: model.StatusProcessing, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, e.store.FinishIngest(ctx, "doc-1", []model.Chunk{
		{ID: "c-1", DocumentID: "doc-1", Index: 0, Text: text, Embedding: embedding},
	}))
}

func TestStreamAnswerNewConversation(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"The office ", "opens at 9 AM."}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, sink)

	require.NoError(t, sink.err)
	assert.True(t, sink.created)
	assert.NotEmpty(t, sink.conversationID)
	require.NotNil(t, sink.userRef)
	assert.Nil(t, sink.userRef.ParentID)
	assert.Equal(t, []string{"The office ", "opens at 9 AM."}, sink.tokens)
	require.NotNil(t, sink.doneRef)
	assert.Equal(t, sink.userRef.ID, *sink.doneRef.ParentID)

	// Both turns landed on the active thread.
	thread, err := e.convs.ActiveThread(context.Background(), sink.conversationID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, model.RoleUser, thread[0].Role)
	assert.Equal(t, "office hours?", thread[0].Content)
	assert.Equal(t, model.RoleAssistant, thread[1].Role)
	assert.Equal(t, "The office opens at 9 AM.", thread[1].Content)

	// The new conversation is titled after the question.
	conv, err := e.store.GetConversation(context.Background(), sink.conversationID)
	require.NoError(t, err)
	assert.Equal(t, "office hours?", conv.Title)
}

func TestStreamAnswerLongQuestionTruncatesTitle(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"ok"}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	question := strings.Repeat("office hours ", 10) // 130 chars
	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: question}, sink)
	require.NoError(t, sink.err)

	conv, err := e.store.GetConversation(context.Background(), sink.conversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Title, maxTitleLen+3)
	assert.True(t, strings.HasSuffix(conv.Title, "..."))
}

func TestStreamAnswerTitleTruncatesOnRuneBoundary(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"ok"}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	// Two-byte runes: a byte-based cut would split the character at the edge.
	question := strings.Repeat("ü", maxTitleLen+20)
	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: question}, sink)
	require.NoError(t, sink.err)

	conv, err := e.store.GetConversation(context.Background(), sink.conversationID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(conv.Title))
	assert.Len(t, []rune(conv.Title), maxTitleLen+3)
	assert.True(t, strings.HasSuffix(conv.Title, "..."))
}

func TestStreamAnswerEmptyStoreIsError(t *testing.T) {
	client := &stubLLM{tokens: []string{"never"}}
	e := newEnv(t, client)
	// No documents ingested at all: the question cannot be answered yet, so
	// the pipeline fails instead of fabricating an out-of-context reply.

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, sink)

	assert.ErrorIs(t, sink.err, retriever.ErrNoDocuments)
	assert.Empty(t, sink.tokens)
	assert.Nil(t, sink.doneRef)
	assert.Zero(t, client.calls)

	// The user turn survives so the question can be retried after an upload.
	require.NotNil(t, sink.userRef)
	thread, err := e.convs.ActiveThread(context.Background(), sink.conversationID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, model.RoleUser, thread[0].Role)
}

func TestStreamAnswerOutOfContext(t *testing.T) {
	client := &stubLLM{tokens: []string{"never"}}
	e := newEnv(t, client)
	e.seedUnrelatedDocument(t)

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, sink)

	require.NoError(t, sink.err)
	assert.Equal(t, []string{OutOfContextMessage}, sink.tokens)
	require.NotNil(t, sink.doneRef)
	assert.Zero(t, client.calls, "LLM must not be called without context")

	// The fixed reply is persisted as a normal assistant turn.
	thread, err := e.convs.ActiveThread(context.Background(), sink.conversationID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, OutOfContextMessage, thread[1].Content)
}

func TestStreamAnswerLLMErrorKeepsUserMessageOnly(t *testing.T) {
	e := newEnv(t, &stubLLM{err: errors.New("ollama down")})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, sink)

	require.Error(t, sink.err)
	assert.Nil(t, sink.doneRef)
	require.NotNil(t, sink.userRef)

	// The user turn survives so the question can be retried; no assistant
	// turn was written.
	thread, err := e.convs.ActiveThread(context.Background(), sink.conversationID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, model.RoleUser, thread[0].Role)
}

func TestStreamAnswerTruncationNotice(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"partial answer"}, stopReason: "length"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, sink)

	require.NoError(t, sink.err)
	require.NotNil(t, sink.doneRef)
	assert.Equal(t, truncationNotice, sink.tokens[len(sink.tokens)-1])

	thread, err := e.convs.ActiveThread(context.Background(), sink.conversationID)
	require.NoError(t, err)
	assert.Equal(t, "partial answer"+truncationNotice, thread[1].Content)
}

func TestStreamAnswerFollowUpAttachesToTail(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"answer"}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	first := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, first)
	require.NoError(t, first.err)

	second := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{
		Question:       "and on weekends?",
		ConversationID: first.conversationID,
	}, second)
	require.NoError(t, second.err)

	assert.False(t, second.created)
	require.NotNil(t, second.userRef)
	require.NotNil(t, second.userRef.ParentID)
	assert.Equal(t, first.doneRef.ID, *second.userRef.ParentID)

	thread, err := e.convs.ActiveThread(context.Background(), first.conversationID)
	require.NoError(t, err)
	assert.Len(t, thread, 4)
}

func TestStreamAnswerEditCreatesSiblingRoot(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"answer"}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	first := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, first)
	require.NoError(t, first.err)

	edited := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{
		Question:       "office timing?",
		ConversationID: first.conversationID,
		IsEdit:         true,
	}, edited)
	require.NoError(t, edited.err)

	// The edit is a second root: two user siblings at the top of the tree.
	require.NotNil(t, edited.userRef)
	assert.Nil(t, edited.userRef.ParentID)
	assert.Equal(t, 2, edited.userRef.SiblingCount)
	assert.Equal(t, 2, edited.userRef.SiblingIndex)

	// The active thread now follows the edited branch.
	thread, err := e.convs.ActiveThread(context.Background(), first.conversationID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "office timing?", thread[0].Content)
}

func TestStreamAnswerParentMismatch(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"answer"}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	first := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, first)
	require.NoError(t, first.err)

	sink := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{
		Question:       "follow up",
		ConversationID: first.conversationID,
		ParentID:       "not-a-real-message",
	}, sink)

	assert.ErrorIs(t, sink.err, ErrParentMismatch)
	assert.Nil(t, sink.userRef)
}

func TestStreamAnswerHistoryEnrichment(t *testing.T) {
	client := &stubLLM{tokens: []string{"answer"}, stopReason: "stop"}
	e := newEnv(t, client)
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	first := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{Question: "office hours?"}, first)
	require.NoError(t, first.err)

	second := &recordingSink{}
	e.orch.StreamAnswer(context.Background(), AskRequest{
		Question:       "what about weekends?",
		ConversationID: first.conversationID,
	}, second)
	require.NoError(t, second.err)

	// The follow-up prompt carries the earlier turns.
	assert.Contains(t, client.lastPrompt, "Previous conversation:")
	assert.Contains(t, client.lastPrompt, "User: office hours?")
	assert.Contains(t, client.lastPrompt, "Current question: what about weekends?")
}

func TestAnswerBlocking(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"Answer: the office opens at 9 AM."}, stopReason: "stop"})
	e.seedDocument(t, "Office hours are 9 AM to 6 PM.")

	answer, err := e.orch.Answer(context.Background(), "office hours?", 5)
	require.NoError(t, err)

	// The blocking path strips model boilerplate prefixes.
	assert.Equal(t, "the office opens at 9 AM.", answer)
}

func TestAnswerBlockingNoDocuments(t *testing.T) {
	e := newEnv(t, &stubLLM{tokens: []string{"never"}})

	_, err := e.orch.Answer(context.Background(), "office hours?", 5)
	assert.ErrorIs(t, err, retriever.ErrNoDocuments)
}

func TestAnswerBlockingOutOfContext(t *testing.T) {
	client := &stubLLM{tokens: []string{"never"}}
	e := newEnv(t, client)
	e.seedUnrelatedDocument(t)

	answer, err := e.orch.Answer(context.Background(), "office hours?", 5)
	require.NoError(t, err)
	assert.Equal(t, OutOfContextMessage, answer)
	assert.Zero(t, client.calls)
}

func TestDetectResponseStyle(t *testing.T) {
	assert.Equal(t, StyleShort, detectResponseStyle("Give me a brief summary"))
	assert.Equal(t, StyleDetailed, detectResponseStyle("Explain the policy in depth"))
	assert.Equal(t, StyleNormal, detectResponseStyle("What are the office hours?"))
	// Short wins when both styles are requested.
	assert.Equal(t, StyleShort, detectResponseStyle("short but detailed answer"))
}

func TestDetectQuestionType(t *testing.T) {
	assert.Equal(t, TypeScenario, detectQuestionType("What if I work on a holiday?"))
	assert.Equal(t, TypeComparison, detectQuestionType("What is the difference between sick and annual leave?"))
	assert.Equal(t, TypeMultiHop, detectQuestionType("Calculate the total leave days"))
	assert.Equal(t, TypeFactual, detectQuestionType("When does the office open?"))
}

func TestEffectiveTopK(t *testing.T) {
	assert.Equal(t, 5, effectiveTopK(TypeFactual, 5))
	assert.Equal(t, 6, effectiveTopK(TypeScenario, 5))
	assert.Equal(t, 6, effectiveTopK(TypeComparison, 7))
	assert.Equal(t, 1, effectiveTopK(TypeFactual, 0))
}

func TestEstimateTokensCappedByContext(t *testing.T) {
	// Scenario + detailed + multiple boosts would blow past the window.
	numCtx := 1024
	n := estimateTokens("What if you explain all the steps in detail?", TypeScenario, StyleDetailed, numCtx)
	assert.Equal(t, int(float64(numCtx)*0.70), n)

	// A plain factual question keeps the normal budget.
	n = estimateTokens("When does the office open?", TypeFactual, StyleNormal, 4096)
	assert.Equal(t, numPredictNormal, n)
}

func TestBuildContextBudget(t *testing.T) {
	long := strings.Repeat("x", 3000)
	ctx := buildContext([]string{long, long}, 4500)

	// Only the first chunk fits the budget.
	assert.Equal(t, long, ctx)

	// No chunks at all yields the explicit placeholder.
	assert.Equal(t, "No relevant context found.", buildContext(nil, 4500))
}

func TestHistoryAwareQuestionClipsOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", historyClipRunes+50)
	q := historyAwareQuestion("and then?", []model.Message{
		{Role: model.RoleAssistant, Content: long},
	})

	assert.True(t, utf8.ValidString(q))
	assert.Contains(t, q, string([]rune(long)[:historyClipRunes])+"...")
	assert.NotContains(t, q, long)
}

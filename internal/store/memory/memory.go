// Package memory provides an in-memory implementation of the persistence
// ports. It mirrors the SQLite store's behavior and backs the test suites.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
)

// Store is an in-memory store guarded by a single mutex.
type Store struct {
	mu            sync.RWMutex
	documents     map[string]*model.Document
	chunks        map[string][]model.Chunk // by document id, index order
	conversations map[string]*model.Conversation
	messages      map[string][]model.Message // by conversation id, insertion order
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		documents:     make(map[string]*model.Document),
		chunks:        make(map[string][]model.Chunk),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
	}
}

// CreateDocument stores a copy of the document.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]model.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	return docs, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// FinishIngest writes the chunk set and flips the document to processed.
func (s *Store) FinishIngest(ctx context.Context, docID string, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[docID]
	if !ok {
		return store.ErrNotFound
	}
	s.chunks[docID] = append([]model.Chunk(nil), chunks...)
	doc.TotalChunks = len(chunks)
	doc.Status = model.StatusProcessed
	doc.UpdatedAt = time.Now()
	return nil
}

// MarkFailed flips the document to failed.
func (s *Store) MarkFailed(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[docID]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = model.StatusFailed
	doc.UpdatedAt = time.Now()
	return nil
}

// SemanticSearch brute-forces cosine distance over the searchable chunks.
func (s *Store) SemanticSearch(ctx context.Context, scope store.Scope, vector []float32, maxDistance float64, limit int) ([]store.ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.ChunkHit
	for _, c := range s.searchable(scope) {
		dist := cosineDistance(vector, c.Embedding)
		if dist < maxDistance {
			hits = append(hits, store.ChunkHit{Chunk: c, Distance: dist})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// KeywordSearch scores chunks by the number of matched terms, normalized by
// the best match so ranks land in (0,1].
func (s *Store) KeywordSearch(ctx context.Context, scope store.Scope, keywords string, limit int) ([]store.ChunkHit, error) {
	terms := strings.Fields(strings.ToLower(keywords))
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.ChunkHit
	var scores []float64
	for _, c := range s.searchable(scope) {
		text := strings.ToLower(c.Text)
		matched := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, store.ChunkHit{Chunk: c})
			scores = append(scores, float64(matched))
		}
	}

	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	var best float64
	for _, sc := range scores {
		if sc > best {
			best = sc
		}
	}

	out := make([]store.ChunkHit, 0, len(order))
	for _, idx := range order {
		hit := hits[idx]
		hit.Rank = scores[idx] / best
		out = append(out, hit)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountChunks reports the number of searchable chunks within the scope.
func (s *Store) CountChunks(ctx context.Context, scope store.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.searchable(scope)), nil
}

// searchable returns the chunks of processed documents within scope, in
// document/index order. Callers must hold the lock.
func (s *Store) searchable(scope store.Scope) []model.Chunk {
	var out []model.Chunk
	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if scope.DocumentID != "" && id != scope.DocumentID {
			continue
		}
		doc, ok := s.documents[id]
		if !ok || doc.Status != model.StatusProcessed {
			continue
		}
		out = append(out, s.chunks[id]...)
	}
	return out
}

// CreateConversation stores a copy of the conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

// ListConversations returns conversations most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make([]model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		convs = append(convs, *conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID > convs[j].ID
	})
	return convs, nil
}

// TouchConversation bumps the updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	conv.UpdatedAt = at
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// InsertMessage appends a copy of the message.
func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// GetMessage returns the message only if it belongs to the conversation.
func (s *Store) GetMessage(ctx context.Context, conversationID, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages[conversationID] {
		if msg.ID == id {
			cp := msg
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// Siblings returns all messages sharing (parentID, role), ordered by
// creation time then id.
func (s *Store) Siblings(ctx context.Context, conversationID string, parentID *string, role model.Role) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	for _, msg := range s.messages[conversationID] {
		if msg.Role != role {
			continue
		}
		if parentID == nil {
			if msg.ParentID != nil {
				continue
			}
		} else if msg.ParentID == nil || *msg.ParentID != *parentID {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	magnitude := math.Sqrt(normA) * math.Sqrt(normB)
	if magnitude == 0 {
		return 1
	}
	return 1 - dot/magnitude
}

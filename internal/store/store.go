// Package store defines the persistence ports consumed by the services.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist or does not
// belong to the stated parent.
var ErrNotFound = errors.New("not found")

// Scope restricts a chunk search. The zero value means all processed
// documents; a non-empty DocumentID restricts to one document.
type Scope struct {
	DocumentID string
}

// ChunkHit is a chunk returned by a search, with the score of the matching
// sub-search. Distance is the cosine distance for semantic hits (0 =
// identical); Rank is the normalized keyword rank in (0,1] for keyword hits.
type ChunkHit struct {
	Chunk    model.Chunk
	Distance float64
	Rank     float64
}

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// FinishIngest atomically writes the chunk set and flips the document to
	// processed. Either all chunks become visible or none do.
	FinishIngest(ctx context.Context, docID string, chunks []model.Chunk) error

	// MarkFailed flips the document to failed. Its chunks, if any were
	// written, must never be returned by searches.
	MarkFailed(ctx context.Context, docID string) error
}

// ChunkStore is the query surface consumed by the retriever. Both searches
// only ever consider chunks of processed documents.
type ChunkStore interface {
	// SemanticSearch returns chunks whose cosine distance to the query vector
	// is below maxDistance, ordered ascending by distance, capped at limit.
	SemanticSearch(ctx context.Context, scope Scope, vector []float32, maxDistance float64, limit int) ([]ChunkHit, error)

	// KeywordSearch returns chunks matching the space-separated keyword query
	// via full-text ranking, best match first, capped at limit.
	KeywordSearch(ctx context.Context, scope Scope, keywords string, limit int) ([]ChunkHit, error)

	// CountChunks reports how many chunks are searchable within the scope,
	// so callers can distinguish "nothing indexed" from "no match".
	CountChunks(ctx context.Context, scope Scope) (int, error)
}

// ConversationStore persists conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	// DeleteConversation removes the conversation and all its messages.
	DeleteConversation(ctx context.Context, id string) error
}

// MessageStore persists the message forest of each conversation.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *model.Message) error

	// GetMessage returns the message only if it belongs to the conversation.
	GetMessage(ctx context.Context, conversationID, id string) (*model.Message, error)

	// Siblings returns all messages in the conversation sharing (parentID,
	// role), ordered by creation time then id. A nil parentID selects roots.
	Siblings(ctx context.Context, conversationID string, parentID *string, role model.Role) ([]model.Message, error)
}

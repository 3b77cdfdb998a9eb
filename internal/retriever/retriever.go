// Package retriever implements hybrid passage retrieval over the chunk
// store, fusing semantic similarity with keyword rank.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/embedding"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/pkg/metrics"
)

// ErrNoDocuments is returned when no processed document is available to
// search.
var ErrNoDocuments = errors.New("no documents have been ingested")

// maxDistance is the cosine distance ceiling for semantic candidates.
// Anything further is treated as unrelated to the question.
const maxDistance = 0.75

// Fusion weights. Semantic similarity dominates; keyword rank breaks ties
// and rescues exact-term matches with weak embeddings.
const (
	semanticWeight = 0.7
	keywordWeight  = 0.3
)

// ScoredChunk is a retrieved passage with its fused relevance score.
type ScoredChunk struct {
	Chunk store.ChunkHit
	Score float64
}

// Retriever answers "which passages are relevant" for a question.
type Retriever struct {
	chunks   store.ChunkStore
	embedder embedding.Embedder
	synonyms SynonymExpander
}

// New creates a retriever. A nil synonyms expander disables expansion.
func New(chunks store.ChunkStore, embedder embedding.Embedder, synonyms SynonymExpander) *Retriever {
	return &Retriever{chunks: chunks, embedder: embedder, synonyms: synonyms}
}

// Retrieve returns the topK most relevant passages across all processed
// documents.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]ScoredChunk, error) {
	return r.retrieve(ctx, store.Scope{}, question, topK)
}

// RetrieveInDocument restricts retrieval to a single document.
func (r *Retriever) RetrieveInDocument(ctx context.Context, documentID, question string, topK int) ([]ScoredChunk, error) {
	return r.retrieve(ctx, store.Scope{DocumentID: documentID}, question, topK)
}

func (r *Retriever) retrieve(ctx context.Context, scope store.Scope, question string, topK int) ([]ScoredChunk, error) {
	start := time.Now()

	count, err := r.chunks.CountChunks(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return nil, ErrNoDocuments
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	semantic, err := r.chunks.SemanticSearch(ctx, scope, vector, maxDistance, 2*topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	keywords := extractKeywords(question, r.synonyms)
	mode := "hybrid"
	var keyword []store.ChunkHit
	if len(keywords) > 0 {
		keyword, err = r.chunks.KeywordSearch(ctx, scope, strings.Join(keywords, " "), topK)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
	}
	if len(keyword) == 0 {
		mode = "semantic"
	}

	results := fuse(semantic, keyword, topK)
	metrics.RetrievalDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return results, nil
}

// fuse merges the two candidate lists by chunk id. A chunk found by both
// paths earns both score components; one found by a single path earns only
// that component.
func fuse(semantic, keyword []store.ChunkHit, topK int) []ScoredChunk {
	byID := make(map[string]*ScoredChunk)
	var order []string

	for _, hit := range semantic {
		sim := 1 - hit.Distance
		if sim < 0 {
			sim = 0
		}
		byID[hit.Chunk.ID] = &ScoredChunk{Chunk: hit, Score: semanticWeight * sim}
		order = append(order, hit.Chunk.ID)
	}
	for _, hit := range keyword {
		if existing, ok := byID[hit.Chunk.ID]; ok {
			existing.Score += keywordWeight * hit.Rank
			existing.Chunk.Rank = hit.Rank
			continue
		}
		byID[hit.Chunk.ID] = &ScoredChunk{Chunk: hit, Score: keywordWeight * hit.Rank}
		order = append(order, hit.Chunk.ID)
	}

	results := make([]ScoredChunk, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
)

// SemanticSearch scans the searchable chunks of the scope, computes cosine
// distance in Go, filters by the ceiling and returns the closest matches
// first. Only chunks of processed documents are candidates.
func (s *Store) SemanticSearch(ctx context.Context, scope store.Scope, vector []float32, maxDistance float64, limit int) ([]store.ChunkHit, error) {
	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.chunk_text, c.embedding, c.created_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = ?`
	args := []any{string(model.StatusProcessed)}
	if scope.DocumentID != "" {
		query += ` AND c.document_id = ?`
		args = append(args, scope.DocumentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic scan: %w", err)
	}
	defer rows.Close()

	var hits []store.ChunkHit
	for rows.Next() {
		var c model.Chunk
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = decodeVector(blob)
		c.CreatedAt = time.Unix(0, createdAt)

		dist := cosineDistance(vector, c.Embedding)
		if dist < maxDistance {
			hits = append(hits, store.ChunkHit{Chunk: c, Distance: dist})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// KeywordSearch matches the expanded keyword set against the FTS5 index and
// returns hits best match first with ranks normalized into (0,1].
func (s *Store) KeywordSearch(ctx context.Context, scope store.Scope, keywords string, limit int) ([]store.ChunkHit, error) {
	match := buildMatchQuery(keywords)
	if match == "" {
		return nil, nil
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.chunk_text, c.embedding, c.created_at,
			bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND d.status = ?`
	args := []any{match, string(model.StatusProcessed)}
	if scope.DocumentID != "" {
		query += ` AND c.document_id = ?`
		args = append(args, scope.DocumentID)
	}
	query += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []store.ChunkHit
	var scores []float64
	for rows.Next() {
		var c model.Chunk
		var blob []byte
		var createdAt int64
		var score float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &blob, &createdAt, &score); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		c.Embedding = decodeVector(blob)
		c.CreatedAt = time.Unix(0, createdAt)
		hits = append(hits, store.ChunkHit{Chunk: c})
		scores = append(scores, -score) // bm25 is lower-is-better; negate so bigger is better
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Normalize by the best score so ranks land in (0,1].
	var best float64
	for _, sc := range scores {
		if sc > best {
			best = sc
		}
	}
	for i := range hits {
		if best > 0 {
			hits[i].Rank = scores[i] / best
		} else {
			hits[i].Rank = 1
		}
	}
	return hits, nil
}

// CountChunks reports the number of searchable chunks within the scope.
func (s *Store) CountChunks(ctx context.Context, scope store.Scope) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = ?`
	args := []any{string(model.StatusProcessed)}
	if scope.DocumentID != "" {
		query += ` AND c.document_id = ?`
		args = append(args, scope.DocumentID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// buildMatchQuery turns a space-separated keyword string into an FTS5 OR
// query with each term quoted, so punctuation in terms cannot break the
// match syntax.
func buildMatchQuery(keywords string) string {
	terms := strings.Fields(keywords)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

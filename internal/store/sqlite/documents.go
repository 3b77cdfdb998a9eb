package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
)

// CreateDocument inserts a new document row.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, extension, size_bytes, chunk_size,
			total_chunks, full_text, embedding_model, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Extension, doc.SizeBytes, doc.ChunkSize,
		doc.TotalChunks, doc.FullText, doc.EmbeddingModel, string(doc.Status),
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, extension, size_bytes, chunk_size, total_chunks,
			full_text, embedding_model, status, created_at, updated_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, extension, size_bytes, chunk_size, total_chunks,
			full_text, embedding_model, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, by cascade, its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FinishIngest writes the chunk set and flips the document to processed in a
// single transaction, so retrieval never observes a partial passage set.
func (s *Store) FinishIngest(ctx context.Context, docID string, chunks []model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, chunk_text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, docID, c.Index, c.Text,
			encodeVector(c.Embedding), c.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET total_chunks = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		len(chunks), string(model.StatusProcessed), time.Now().UnixNano(), docID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// MarkFailed flips the document to failed.
func (s *Store) MarkFailed(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), time.Now().UnixNano(), docID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*model.Document, error) {
	var doc model.Document
	var status string
	var createdAt, updatedAt int64

	if err := r.Scan(&doc.ID, &doc.Filename, &doc.Extension, &doc.SizeBytes,
		&doc.ChunkSize, &doc.TotalChunks, &doc.FullText, &doc.EmbeddingModel,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Status = model.DocumentStatus(status)
	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)
	return &doc, nil
}

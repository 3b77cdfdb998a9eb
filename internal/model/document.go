// Package model defines data structures for the document reader.
package model

import (
	"time"
)

// DocumentStatus represents the ingest lifecycle state of a document.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded document. A document owns an ordered list
// of chunks; deleting the document deletes its chunks.
type Document struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	Extension      string         `json:"extension"`
	SizeBytes      int64          `json:"size_bytes"`
	ChunkSize      int            `json:"chunk_size"`
	TotalChunks    int            `json:"total_chunks"`
	FullText       string         `json:"-"`
	EmbeddingModel string         `json:"embedding_model"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Chunk is a retrievable passage of document text plus its embedding vector.
// Chunks are immutable after creation.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

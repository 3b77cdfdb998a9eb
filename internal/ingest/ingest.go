// Package ingest turns uploaded files into searchable documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/chunker"
	"github.com/QDev-Technolab/document-reader-ai/internal/embedding"
	"github.com/QDev-Technolab/document-reader-ai/internal/events"
	"github.com/QDev-Technolab/document-reader-ai/internal/extract"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/pkg/metrics"
)

// ErrEmptyDocument is returned when extraction yields no usable text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Service runs the ingest pipeline: extract, chunk, embed, persist.
type Service struct {
	docs      store.DocumentStore
	extractor extract.Extractor
	embedder  embedding.Embedder
	publisher *events.Publisher
	chunkSize int
	logger    *zap.Logger
}

// NewService creates an ingest service. chunkSize is the default target
// passage length in characters. The publisher may be nil when eventing is
// disabled.
func NewService(docs store.DocumentStore, extractor extract.Extractor, embedder embedding.Embedder, publisher *events.Publisher, chunkSize int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs:      docs,
		extractor: extractor,
		embedder:  embedder,
		publisher: publisher,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Ingest processes an uploaded file and returns the stored document. The
// document becomes searchable only when the whole pipeline succeeds; any
// failure after creation marks it failed and keeps its chunks invisible.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte, chunkSize int) (*model.Document, error) {
	start := time.Now()

	ext := extract.Extension(filename)
	if !s.extractor.Supports(ext) {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: .%s", extract.ErrUnsupportedFormat, ext)
	}

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("extract %q: %w", filename, err)
	}

	if chunkSize <= 0 {
		chunkSize = s.chunkSize
	}
	pieces := chunker.New(chunkSize).Split(text)
	if len(pieces) == 0 {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyDocument
	}

	now := time.Now()
	doc := &model.Document{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Filename:       filename,
		Extension:      ext,
		SizeBytes:      int64(len(data)),
		ChunkSize:      chunkSize,
		FullText:       text,
		EmbeddingModel: s.embedder.ModelName(),
		Status:         model.StatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	chunks, err := s.embedChunks(ctx, doc, pieces)
	if err != nil {
		s.fail(ctx, doc)
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := s.docs.FinishIngest(ctx, doc.ID, chunks); err != nil {
		s.fail(ctx, doc)
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("finish ingest: %w", err)
	}

	s.publisher.DocumentIngested(ctx, events.DocumentIngested{
		DocumentID: doc.ID,
		Filename:   filename,
		Chunks:     len(chunks),
		Status:     string(model.StatusProcessed),
		At:         time.Now(),
	})

	doc.TotalChunks = len(chunks)
	doc.Status = model.StatusProcessed

	metrics.DocumentsIngested.WithLabelValues("processed").Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))

	return doc, nil
}

func (s *Service) embedChunks(ctx context.Context, doc *model.Document, pieces []string) ([]model.Chunk, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	now := time.Now()
	chunks := make([]model.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = model.Chunk{
			ID:         uuid.Must(uuid.NewV7()).String(),
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}
	return chunks, nil
}

func (s *Service) fail(ctx context.Context, doc *model.Document) {
	if err := s.docs.MarkFailed(ctx, doc.ID); err != nil {
		s.logger.Warn("mark document failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}
	s.publisher.DocumentIngested(ctx, events.DocumentIngested{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Status:     string(model.StatusFailed),
		At:         time.Now(),
	})
}

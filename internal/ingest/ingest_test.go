package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QDev-Technolab/document-reader-ai/internal/extract"
	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
	"github.com/QDev-Technolab/document-reader-ai/internal/store/memory"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := s.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string          { return "stub-model" }
func (s *stubEmbedder) Ping(context.Context) error { return nil }

func TestIngestSuccess(t *testing.T) {
	st := memory.New()
	svc := NewService(st, extract.NewPlainText(), &stubEmbedder{}, nil, 500, nil)

	doc, err := svc.Ingest(context.Background(), "policy.txt",
		[]byte("Office hours are 9 AM to 6 PM on weekdays."), 0)
	require.NoError(t, err)

	assert.Equal(t, model.StatusProcessed, doc.Status)
	assert.Equal(t, "txt", doc.Extension)
	assert.Equal(t, "stub-model", doc.EmbeddingModel)
	assert.Equal(t, 500, doc.ChunkSize)
	assert.Greater(t, doc.TotalChunks, 0)

	stored, err := st.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, stored.Status)

	// Chunks of the processed document are searchable.
	count, err := st.CountChunks(context.Background(), store.Scope{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, doc.TotalChunks, count)
}

func TestIngestUnsupportedFormat(t *testing.T) {
	st := memory.New()
	svc := NewService(st, extract.NewPlainText(), &stubEmbedder{}, nil, 500, nil)

	_, err := svc.Ingest(context.Background(), "report.pdf", []byte("%PDF"), 0)
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)

	// Nothing was persisted for the rejected upload.
	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestEmptyDocument(t *testing.T) {
	st := memory.New()
	svc := NewService(st, extract.NewPlainText(), &stubEmbedder{}, nil, 500, nil)

	_, err := svc.Ingest(context.Background(), "empty.txt", []byte("   \n\n  "), 0)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngestEmbeddingFailureMarksFailed(t *testing.T) {
	st := memory.New()
	svc := NewService(st, extract.NewPlainText(),
		&stubEmbedder{err: errors.New("provider down")}, nil, 500, nil)

	_, err := svc.Ingest(context.Background(), "policy.txt",
		[]byte("Leave policy grants 20 days of annual leave."), 0)
	require.Error(t, err)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.StatusFailed, docs[0].Status)

	// Failed documents never surface in retrieval.
	count, err := st.CountChunks(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestCustomChunkSize(t *testing.T) {
	st := memory.New()
	svc := NewService(st, extract.NewPlainText(), &stubEmbedder{}, nil, 500, nil)

	doc, err := svc.Ingest(context.Background(), "notes.md",
		[]byte("1. First point.\n2. Second point.\n3. Third point."), 30)
	require.NoError(t, err)

	assert.Equal(t, 30, doc.ChunkSize)
	assert.Greater(t, doc.TotalChunks, 1)
}

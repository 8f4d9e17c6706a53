package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

func indexerChunks(indices ...int) []*model.TextChunk {
	chunks := make([]*model.TextChunk, len(indices))
	for i, idx := range indices {
		chunks[i] = &model.TextChunk{
			DocumentID: "doc-1",
			UserID:     "user-1",
			ChunkIndex: idx,
			Text:       "chunk text",
		}
	}
	return chunks
}

func indexerEmbeddings(count, dim int) [][]float32 {
	embeddings := make([][]float32, count)
	for i := range embeddings {
		embeddings[i] = make([]float32, dim)
	}
	return embeddings
}

func TestIndexChunksWritesRecords(t *testing.T) {
	vectors := newFakeVectorStore()
	indexer := NewIndexer(vectors, 768)

	err := indexer.IndexChunks(context.Background(), "user-1", indexerChunks(0, 1, 2), indexerEmbeddings(3, 768))
	require.NoError(t, err)

	assert.Len(t, vectors.records, 3)
	rec, ok := vectors.records["doc-1_1"]
	require.True(t, ok)
	assert.Equal(t, "doc-1", rec.DocumentID)
	assert.Equal(t, 1, rec.ChunkIndex)
}

func TestIndexChunksCountMismatch(t *testing.T) {
	vectors := newFakeVectorStore()
	indexer := NewIndexer(vectors, 768)

	// 向量数少于块数时必须报错，而不是越界
	err := indexer.IndexChunks(context.Background(), "user-1", indexerChunks(0, 1, 2), indexerEmbeddings(2, 768))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation.Code))
	assert.Empty(t, vectors.records)
}

func TestIndexChunksRejectsBadIndices(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
	}{
		{"负数索引", []int{0, -1}},
		{"重复索引", []int{0, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vectors := newFakeVectorStore()
			indexer := NewIndexer(vectors, 768)

			err := indexer.IndexChunks(context.Background(), "user-1",
				indexerChunks(tt.indices...), indexerEmbeddings(len(tt.indices), 768))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrValidation.Code))
			assert.Empty(t, vectors.records)
		})
	}
}

func TestIndexChunksRejectsWrongDimension(t *testing.T) {
	vectors := newFakeVectorStore()
	indexer := NewIndexer(vectors, 768)

	err := indexer.IndexChunks(context.Background(), "user-1", indexerChunks(0), indexerEmbeddings(1, 512))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation.Code))
	assert.Empty(t, vectors.records)
}

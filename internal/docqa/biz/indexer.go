package biz

import (
	"context"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// Indexer 负责将向量化后的文本块写入向量库。
type Indexer struct {
	vectors   store.VectorStore
	dimension int
}

// NewIndexer 创建索引器实例。
func NewIndexer(vectors store.VectorStore, dimension int) *Indexer {
	return &Indexer{vectors: vectors, dimension: dimension}
}

// IndexChunks 将文本块与其向量写入向量库。
// 向量 ID 为 {documentID}_{chunkIndex}，重复摄取会覆盖旧记录。
// 写入前校验块与向量一一对应，拒绝缺失、错位或维度不符的数据。
func (i *Indexer) IndexChunks(ctx context.Context, userID string, chunks []*model.TextChunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(embeddings) != len(chunks) {
		return errors.ErrValidation.WithMessagef(
			"chunk/embedding count mismatch: %d chunks, %d embeddings", len(chunks), len(embeddings))
	}

	seen := make(map[int]struct{}, len(chunks))
	for idx, chunk := range chunks {
		if chunk.ChunkIndex < 0 {
			return errors.ErrValidation.WithMessagef("chunk %d has negative index %d", idx, chunk.ChunkIndex)
		}
		if _, dup := seen[chunk.ChunkIndex]; dup {
			return errors.ErrValidation.WithMessagef("duplicate chunk index %d", chunk.ChunkIndex)
		}
		seen[chunk.ChunkIndex] = struct{}{}
		if len(embeddings[idx]) != i.dimension {
			return errors.ErrValidation.WithMessagef(
				"embedding for chunk %d has dimension %d, expected %d", chunk.ChunkIndex, len(embeddings[idx]), i.dimension)
		}
	}

	if err := i.vectors.EnsureReady(ctx, userID); err != nil {
		return err
	}

	records := make([]*store.VectorRecord, len(chunks))
	for idx, chunk := range chunks {
		records[idx] = &store.VectorRecord{
			ID:          store.VectorID(chunk.DocumentID, chunk.ChunkIndex),
			Embedding:   embeddings[idx],
			DocumentID:  chunk.DocumentID,
			UserID:      chunk.UserID,
			ChunkIndex:  chunk.ChunkIndex,
			PageNumber:  chunk.PageNumber,
			TextPreview: chunk.TextPreview,
		}
	}

	return i.vectors.UpsertVectors(ctx, userID, records)
}

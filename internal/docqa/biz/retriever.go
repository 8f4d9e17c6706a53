package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的候选数量。
	TopK int
	// SimilarityThreshold 相关性阈值，低于该分数的命中被丢弃。
	SimilarityThreshold float32
}

// NewRetrieverConfig 创建默认检索配置。
func NewRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		TopK:                3,
		SimilarityThreshold: 0.7,
	}
}

// RetrievedChunk 一条通过阈值的检索命中，含完整文本。
type RetrievedChunk struct {
	ChunkIndex int
	PageNumber int
	Text       string
	Preview    string
	Score      float32
}

// Retriever 负责向量检索并回填文本块内容。
type Retriever struct {
	vectors       store.VectorStore
	chunks        store.ChunkStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(
	vectors store.VectorStore,
	chunks store.ChunkStore,
	embedProvider llm.EmbeddingProvider,
	config *RetrieverConfig,
) *Retriever {
	if config == nil {
		config = NewRetrieverConfig()
	}
	return &Retriever{
		vectors:       vectors,
		chunks:        chunks,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Retrieve 为问题检索相关文本块。
// 向量库只存预览，完整文本从块存储按序号回填。
func (r *Retriever) Retrieve(ctx context.Context, userID, documentID, question string) ([]*RetrievedChunk, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := r.vectors.SearchVectors(ctx, userID, documentID, embedding, r.config.TopK)
	if err != nil {
		return nil, err
	}

	relevant := make([]*store.VectorMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= r.config.SimilarityThreshold {
			relevant = append(relevant, m)
		}
	}
	if len(relevant) == 0 {
		logger.Debugw("no matches above threshold",
			"document_id", documentID,
			"candidates", len(matches),
		)
		return nil, nil
	}

	textByIndex, err := r.chunkTexts(ctx, documentID)
	if err != nil {
		return nil, err
	}

	retrieved := make([]*RetrievedChunk, 0, len(relevant))
	for _, m := range relevant {
		text, ok := textByIndex[m.ChunkIndex]
		if !ok {
			// 向量与块存储不同步时丢弃该命中，预览不足以支撑回答
			logger.Warnw("dropping match without stored chunk",
				"document_id", documentID,
				"chunk_index", m.ChunkIndex,
			)
			continue
		}
		retrieved = append(retrieved, &RetrievedChunk{
			ChunkIndex: m.ChunkIndex,
			PageNumber: m.PageNumber,
			Text:       text,
			Preview:    m.TextPreview,
			Score:      m.Score,
		})
	}
	if len(retrieved) == 0 {
		return nil, nil
	}
	return retrieved, nil
}

// chunkTexts 加载文档全部文本块，按块序号建立索引。
func (r *Retriever) chunkTexts(ctx context.Context, documentID string) (map[int]string, error) {
	chunks, err := r.chunks.GetChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	texts := make(map[int]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.ChunkIndex] = chunk.Text
	}
	return texts, nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// vectorIDMaxLen 向量主键的最大长度，{documentID}_{chunkIndex} 格式。
const vectorIDMaxLen = 128

// upsertBatchSize 单次写入 Milvus 的最大记录数。
const upsertBatchSize = 100

// MilvusVectorStore 实现基于 Milvus 的向量存储。
type MilvusVectorStore struct {
	client     *milvus.Client
	collection string
	dimension  int
}

// NewMilvusVectorStore 创建 Milvus 向量存储实例。
func NewMilvusVectorStore(client *milvus.Client, collection string, dimension int) *MilvusVectorStore {
	return &MilvusVectorStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}
}

// VectorID 构造向量主键，摄取和清理使用同一格式保证可定位。
func VectorID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// partitionName 将用户 ID 映射为合法的分区名。
// Milvus 分区名只允许字母、数字和下划线。
func partitionName(userID string) string {
	var b strings.Builder
	b.WriteString("u_")
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EnsureReady 创建集合和用户分区（如不存在）。
func (s *MilvusVectorStore) EnsureReady(ctx context.Context, userID string) error {
	schema := &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "Document chunk embeddings for QA retrieval",
		Dimension:   s.dimension,
		PKMaxLen:    vectorIDMaxLen,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "user_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "page_number", DataType: entity.FieldTypeInt64},
			{Name: "text_preview", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
		},
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := s.client.EnsurePartition(ctx, s.collection, partitionName(userID)); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// upsertBatches 将记录切分为不超过 upsertBatchSize 的批次。
func upsertBatches(records []*VectorRecord) [][]*VectorRecord {
	batches := make([][]*VectorRecord, 0, (len(records)+upsertBatchSize-1)/upsertBatchSize)
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// buildInsertData 将一批记录转为 Milvus 列式写入格式。
func buildInsertData(batch []*VectorRecord) *milvus.InsertData {
	data := &milvus.InsertData{
		IDs:        make([]string, len(batch)),
		Embeddings: make([][]float32, len(batch)),
		Metadata: map[string][]any{
			"document_id":  make([]any, len(batch)),
			"user_id":      make([]any, len(batch)),
			"chunk_index":  make([]any, len(batch)),
			"page_number":  make([]any, len(batch)),
			"text_preview": make([]any, len(batch)),
		},
	}

	for i, rec := range batch {
		data.IDs[i] = rec.ID
		data.Embeddings[i] = rec.Embedding
		data.Metadata["document_id"][i] = rec.DocumentID
		data.Metadata["user_id"][i] = rec.UserID
		data.Metadata["chunk_index"][i] = int64(rec.ChunkIndex)
		data.Metadata["page_number"][i] = int64(rec.PageNumber)
		data.Metadata["text_preview"][i] = rec.TextPreview
	}
	return data
}

// UpsertVectors 批量写入向量，同 ID 覆盖。
// 按 upsertBatchSize 分批写入，单批失败经指数退避重试后再放弃。
func (s *MilvusVectorStore) UpsertVectors(ctx context.Context, userID string, records []*VectorRecord) error {
	partition := partitionName(userID)
	for _, batch := range upsertBatches(records) {
		data := buildInsertData(batch)
		err := resilience.RetryWithBackoff(ctx, resilience.DefaultRetryConfig(), func() error {
			return s.client.Upsert(ctx, s.collection, partition, data)
		})
		if err != nil {
			return errors.ErrVectorStore.WithCause(err)
		}
	}
	return nil
}

// SearchVectors 在用户分区内检索指定文档的相似向量。
func (s *MilvusVectorStore) SearchVectors(ctx context.Context, userID, documentID string, embedding []float32, topK int) ([]*VectorMatch, error) {
	// 双重过滤：分区按用户隔离，表达式再限定文档
	filter := fmt.Sprintf(`user_id == "%s" && document_id == "%s"`, userID, documentID)
	outputFields := []string{"document_id", "chunk_index", "page_number", "text_preview"}

	results, err := s.client.Search(ctx, s.collection, partitionName(userID), embedding, topK, filter, outputFields)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}

	matches := make([]*VectorMatch, 0, len(results))
	for _, r := range results {
		match := &VectorMatch{
			ID:    r.ID,
			Score: r.Score,
		}
		if v, ok := r.Metadata["chunk_index"].(int64); ok {
			match.ChunkIndex = int(v)
		}
		if v, ok := r.Metadata["page_number"].(int64); ok {
			match.PageNumber = int(v)
		}
		if v, ok := r.Metadata["text_preview"].(string); ok {
			match.TextPreview = v
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// DeleteVectors 按 ID 删除向量。
func (s *MilvusVectorStore) DeleteVectors(ctx context.Context, userID string, ids []string) error {
	if err := s.client.DeleteByIDs(ctx, s.collection, partitionName(userID), ids); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// DeleteDocumentVectors 删除文档的全部向量。
func (s *MilvusVectorStore) DeleteDocumentVectors(ctx context.Context, userID, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	if err := s.client.DeleteByExpr(ctx, s.collection, partitionName(userID), expr); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// 确保 MilvusVectorStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusVectorStore)(nil)

package store

import (
	"context"
	"time"

	"github.com/kart-io/docqa/internal/model"
)

// DocumentStore 定义文档元数据存储接口。
type DocumentStore interface {
	// CreateDocument 创建文档记录。
	CreateDocument(ctx context.Context, doc *model.Document) error

	// GetDocument 按 ID 获取文档，不存在时返回 ErrDocumentNotFound。
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)

	// ListDocuments 列出用户的全部文档，按创建时间倒序。
	ListDocuments(ctx context.Context, userID string) ([]*model.Document, error)

	// UpdateDocument 按字段集更新文档并刷新 updated_at。
	UpdateDocument(ctx context.Context, documentID string, fields map[string]any) error

	// DeleteDocument 删除文档记录。
	DeleteDocument(ctx context.Context, documentID string) error

	// RequestCancel 在事务中校验归属和状态后写入取消标记。
	// 文档不存在或归属不符返回 ErrDocumentNotFound；
	// 状态已是 ready 返回 ErrCancelNotAllowed。
	RequestCancel(ctx context.Context, documentID, userID string) error

	// GetCancelRequestedAt 读取取消标记，供流水线检查点使用。
	GetCancelRequestedAt(ctx context.Context, documentID string) (*time.Time, error)
}

// ChunkStore 定义文本块存储接口。
type ChunkStore interface {
	// SaveChunks 批量写入文本块。
	SaveChunks(ctx context.Context, chunks []*model.TextChunk) error

	// GetChunks 获取文档的全部文本块，按 chunk_index 升序。
	GetChunks(ctx context.Context, documentID string) ([]*model.TextChunk, error)

	// CountChunks 统计文档的文本块数量。
	CountChunks(ctx context.Context, documentID string) (int64, error)

	// DeleteChunks 删除文档的全部文本块。
	DeleteChunks(ctx context.Context, documentID string) error
}

// AppendResult 描述一次追加后活跃窗口与归档的变化。
type AppendResult struct {
	// ChatID 会话 ID。
	ChatID string
	// LiveCount 追加后活跃窗口中的消息数。
	LiveCount int
	// ArchivedCount 本次归档的消息数。
	ArchivedCount int
}

// ChatStore 定义聊天历史存储接口。
// chatID 为空串时使用文档的默认会话。
type ChatStore interface {
	// AppendMessages 校验文档归属后，将新消息追加到会话。
	// 超出活跃窗口的最旧消息被搬移到归档页，活跃窗口始终不超过
	// model.MaxLiveMessages 条。整个操作在事务中执行。
	AppendMessages(ctx context.Context, documentID, userID, chatID string, messages []*model.ChatMessage) (*AppendResult, error)

	// GetRecentMessages 获取活跃窗口中最近的 limit 条消息，按时间升序。
	// 会话不存在时返回空历史而非错误。
	GetRecentMessages(ctx context.Context, documentID, userID, chatID string, limit int) (*model.ChatHistory, error)

	// GetOlderMessages 从归档页向前翻页读取历史消息，按时间升序返回。
	// before 为空表示从最新的归档页开始。
	GetOlderMessages(ctx context.Context, documentID, userID, chatID string, before *time.Time, limit int) (*model.ChatHistory, error)

	// DeleteHistory 删除文档下的会话及其全部归档页。
	DeleteHistory(ctx context.Context, documentID string) error
}

// VectorMatch 表示一次向量检索命中。
type VectorMatch struct {
	// ID 向量 ID，格式为 {documentID}_{chunkIndex}。
	ID string
	// Score 余弦相似度分数。
	Score float32
	// ChunkIndex 文本块序号。
	ChunkIndex int
	// PageNumber 来源页码。
	PageNumber int
	// TextPreview 文本块预览。
	TextPreview string
}

// VectorRecord 表示待写入向量库的一条记录。
type VectorRecord struct {
	// ID 向量 ID，格式为 {documentID}_{chunkIndex}。
	ID string
	// Embedding 嵌入向量。
	Embedding []float32
	// DocumentID 所属文档 ID。
	DocumentID string
	// UserID 所属用户 ID。
	UserID string
	// ChunkIndex 文本块序号。
	ChunkIndex int
	// PageNumber 来源页码。
	PageNumber int
	// TextPreview 文本块预览。
	TextPreview string
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// EnsureReady 创建集合和用户分区（如不存在）。
	EnsureReady(ctx context.Context, userID string) error

	// UpsertVectors 批量写入向量，同 ID 覆盖。
	UpsertVectors(ctx context.Context, userID string, records []*VectorRecord) error

	// SearchVectors 在用户分区内检索指定文档的相似向量。
	SearchVectors(ctx context.Context, userID, documentID string, embedding []float32, topK int) ([]*VectorMatch, error)

	// DeleteVectors 按 ID 删除向量。
	DeleteVectors(ctx context.Context, userID string, ids []string) error

	// DeleteDocumentVectors 删除文档的全部向量。
	DeleteDocumentVectors(ctx context.Context, userID, documentID string) error
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/component/mongodb"
	"github.com/kart-io/docqa/pkg/errors"
)

// 集合名称。
const (
	collDocuments   = "documents"
	collChunks      = "document_chunks"
	collChats       = "chats"
	collChatArchive = "chat_archive"
)

// chunkInsertBatch 单次 InsertMany 的最大文档数。
const chunkInsertBatch = 500

// MongoStore 基于 MongoDB 实现文档、文本块和聊天历史存储。
type MongoStore struct {
	client *mongodb.Client
}

// NewMongoStore 创建 MongoDB 存储实例。
func NewMongoStore(client *mongodb.Client) *MongoStore {
	return &MongoStore{client: client}
}

// EnsureIndexes 创建各集合所需的索引。幂等，可在启动时调用。
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	docIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := s.client.Collection(collDocuments).Indexes().CreateMany(ctx, docIdx); err != nil {
		return fmt.Errorf("failed to create document indexes: %w", err)
	}

	chunkIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}}},
	}
	if _, err := s.client.Collection(collChunks).Indexes().CreateMany(ctx, chunkIdx); err != nil {
		return fmt.Errorf("failed to create chunk indexes: %w", err)
	}

	chatIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
	}
	if _, err := s.client.Collection(collChats).Indexes().CreateMany(ctx, chatIdx); err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}

	archiveIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
	}
	if _, err := s.client.Collection(collChatArchive).Indexes().CreateMany(ctx, archiveIdx); err != nil {
		return fmt.Errorf("failed to create archive indexes: %w", err)
	}

	return nil
}

// ============================================================================
// DocumentStore
// ============================================================================

// CreateDocument 创建文档记录。
func (s *MongoStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if _, err := s.client.Collection(collDocuments).InsertOne(ctx, doc); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// GetDocument 按 ID 获取文档。
func (s *MongoStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	err := s.client.Collection(collDocuments).FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrDocumentNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &doc, nil
}

// ListDocuments 列出用户的全部文档，按创建时间倒序。
func (s *MongoStore) ListDocuments(ctx context.Context, userID string) ([]*model.Document, error) {
	opts := mongooptions.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.client.Collection(collDocuments).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	docs := make([]*model.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return docs, nil
}

// UpdateDocument 按字段集更新文档并刷新 updated_at。
func (s *MongoStore) UpdateDocument(ctx context.Context, documentID string, fields map[string]any) error {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.client.Collection(collDocuments).UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": set})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument 删除文档记录。
func (s *MongoStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.client.Collection(collDocuments).DeleteOne(ctx, bson.M{"_id": documentID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// RequestCancel 在事务中校验归属和状态后写入取消标记。
func (s *MongoStore) RequestCancel(ctx context.Context, documentID, userID string) error {
	session, err := s.client.Raw().StartSession()
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var doc model.Document
		err := s.client.Collection(collDocuments).FindOne(sessCtx, bson.M{"_id": documentID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, errors.ErrDocumentNotFound
			}
			return nil, errors.ErrDatabase.WithCause(err)
		}
		// 归属不符按不存在处理，避免泄露他人文档信息
		if doc.UserID != userID {
			return nil, errors.ErrDocumentNotFound
		}
		if doc.Status == model.StatusReady {
			return nil, errors.ErrCancelNotAllowed
		}

		now := time.Now()
		_, err = s.client.Collection(collDocuments).UpdateOne(sessCtx,
			bson.M{"_id": documentID},
			bson.M{"$set": bson.M{"cancel_requested_at": now, "updated_at": now}},
		)
		if err != nil {
			return nil, errors.ErrDatabase.WithCause(err)
		}
		return nil, nil
	})
	return err
}

// GetCancelRequestedAt 读取取消标记。
func (s *MongoStore) GetCancelRequestedAt(ctx context.Context, documentID string) (*time.Time, error) {
	var doc struct {
		CancelRequestedAt *time.Time `bson:"cancel_requested_at"`
	}
	opts := mongooptions.FindOne().SetProjection(bson.M{"cancel_requested_at": 1})
	err := s.client.Collection(collDocuments).FindOne(ctx, bson.M{"_id": documentID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrDocumentNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return doc.CancelRequestedAt, nil
}

// ============================================================================
// ChunkStore
// ============================================================================

// SaveChunks 批量写入文本块，分批避免超出单次写入上限。
func (s *MongoStore) SaveChunks(ctx context.Context, chunks []*model.TextChunk) error {
	for start := 0; start < len(chunks); start += chunkInsertBatch {
		end := start + chunkInsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}

		docs := make([]interface{}, 0, end-start)
		for _, chunk := range chunks[start:end] {
			docs = append(docs, chunk)
		}
		if _, err := s.client.Collection(collChunks).InsertMany(ctx, docs); err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
	}
	return nil
}

// GetChunks 获取文档的全部文本块，按 chunk_index 升序。
func (s *MongoStore) GetChunks(ctx context.Context, documentID string) ([]*model.TextChunk, error) {
	opts := mongooptions.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}})
	cursor, err := s.client.Collection(collChunks).Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	chunks := make([]*model.TextChunk, 0)
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return chunks, nil
}

// CountChunks 统计文档的文本块数量。
func (s *MongoStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	count, err := s.client.Collection(collChunks).CountDocuments(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

// DeleteChunks 删除文档的全部文本块。
func (s *MongoStore) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := s.client.Collection(collChunks).DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// ============================================================================
// ChatStore
// ============================================================================

// resolveChatID 把空 chatID 映射为文档默认会话。
func resolveChatID(documentID, chatID string) string {
	if chatID == "" {
		return documentID
	}
	return chatID
}

// AppendMessages 校验文档归属后，将新消息追加到会话。
// 活跃窗口超限的最旧消息被整页搬移到归档集合，整个操作在事务中执行，
// 避免并发追加导致消息丢失或重复归档。
func (s *MongoStore) AppendMessages(ctx context.Context, documentID, userID, chatID string, messages []*model.ChatMessage) (*AppendResult, error) {
	session, err := s.client.Raw().StartSession()
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// 1. 校验文档归属
		var doc model.Document
		err := s.client.Collection(collDocuments).FindOne(sessCtx, bson.M{"_id": documentID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, errors.ErrDocumentNotFound
			}
			return nil, errors.ErrDatabase.WithCause(err)
		}
		if doc.UserID != userID {
			return nil, errors.ErrDocumentNotFound
		}

		// 2. 读取或初始化会话
		now := time.Now()
		id := resolveChatID(documentID, chatID)
		var chat model.ChatSession
		err = s.client.Collection(collChats).FindOne(sessCtx, bson.M{"_id": id, "document_id": documentID}).Decode(&chat)
		if err != nil {
			if err != mongo.ErrNoDocuments {
				return nil, errors.ErrDatabase.WithCause(err)
			}
			chat = model.ChatSession{
				ID:         id,
				DocumentID: documentID,
				UserID:     userID,
				CreatedAt:  now,
			}
		}

		// 3. 计算溢出：先归档已有消息，再归档新消息
		combined := make([]model.ChatMessage, 0, len(chat.Messages)+len(messages))
		combined = append(combined, chat.Messages...)
		for _, m := range messages {
			combined = append(combined, *m)
		}

		overflow := len(combined) - model.MaxLiveMessages
		if overflow < 0 {
			overflow = 0
		}

		if overflow > 0 {
			toArchive := combined[:overflow]
			for start := 0; start < len(toArchive); start += model.ArchivePageSize {
				end := start + model.ArchivePageSize
				if end > len(toArchive) {
					end = len(toArchive)
				}
				page := model.ArchivePage{
					ID:         uuid.NewString(),
					ChatID:     chat.ID,
					DocumentID: documentID,
					Messages:   toArchive[start:end],
					CreatedAt:  now,
				}
				if _, err := s.client.Collection(collChatArchive).InsertOne(sessCtx, page); err != nil {
					return nil, errors.ErrDatabase.WithCause(err)
				}
			}
		}

		// 4. 写回活跃窗口
		chat.Messages = combined[overflow:]
		chat.LastMessageAt = now

		upsert := true
		_, err = s.client.Collection(collChats).ReplaceOne(sessCtx,
			bson.M{"_id": chat.ID},
			chat,
			&mongooptions.ReplaceOptions{Upsert: &upsert},
		)
		if err != nil {
			return nil, errors.ErrDatabase.WithCause(err)
		}

		return &AppendResult{
			ChatID:        chat.ID,
			LiveCount:     len(chat.Messages),
			ArchivedCount: overflow,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*AppendResult), nil
}

// GetRecentMessages 获取活跃窗口中最近的 limit 条消息。
func (s *MongoStore) GetRecentMessages(ctx context.Context, documentID, userID, chatID string, limit int) (*model.ChatHistory, error) {
	if err := s.checkOwnership(ctx, documentID, userID); err != nil {
		return nil, err
	}

	id := resolveChatID(documentID, chatID)
	var chat model.ChatSession
	err := s.client.Collection(collChats).FindOne(ctx, bson.M{"_id": id, "document_id": documentID}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// 尚无会话是正常情况
			return &model.ChatHistory{ChatID: id, Messages: []model.ChatMessage{}}, nil
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}

	messages := chat.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return &model.ChatHistory{ChatID: chat.ID, Messages: messages}, nil
}

// GetOlderMessages 从归档页向前翻页读取历史消息。
func (s *MongoStore) GetOlderMessages(ctx context.Context, documentID, userID, chatID string, before *time.Time, limit int) (*model.ChatHistory, error) {
	if err := s.checkOwnership(ctx, documentID, userID); err != nil {
		return nil, err
	}

	id := resolveChatID(documentID, chatID)
	filter := bson.M{"chat_id": id, "document_id": documentID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": *before}
	}

	// 每页最多 ArchivePageSize 条，按需取足页数后再裁剪
	pagesNeeded := (limit + model.ArchivePageSize - 1) / model.ArchivePageSize
	if pagesNeeded < 1 {
		pagesNeeded = 1
	}

	opts := mongooptions.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(pagesNeeded))
	cursor, err := s.client.Collection(collChatArchive).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	pages := make([]model.ArchivePage, 0, pagesNeeded)
	if err := cursor.All(ctx, &pages); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	return &model.ChatHistory{ChatID: id, Messages: flattenArchivePages(pages, limit)}, nil
}

// flattenArchivePages 将倒序取回的归档页还原为升序消息列表。
// 超出 limit 时保留最旧的 limit 条，翻页游标落在被裁掉的消息之前。
func flattenArchivePages(pages []model.ArchivePage, limit int) []model.ChatMessage {
	messages := make([]model.ChatMessage, 0, limit)
	for i := len(pages) - 1; i >= 0; i-- {
		messages = append(messages, pages[i].Messages...)
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages
}

// DeleteHistory 删除文档下的会话及其全部归档页。
func (s *MongoStore) DeleteHistory(ctx context.Context, documentID string) error {
	if _, err := s.client.Collection(collChats).DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if _, err := s.client.Collection(collChatArchive).DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// checkOwnership 校验文档存在且属于该用户。
func (s *MongoStore) checkOwnership(ctx context.Context, documentID, userID string) error {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return errors.ErrDocumentNotFound
	}
	return nil
}

// 确保 MongoStore 实现了各存储接口。
var (
	_ DocumentStore = (*MongoStore)(nil)
	_ ChunkStore    = (*MongoStore)(nil)
	_ ChatStore     = (*MongoStore)(nil)
)

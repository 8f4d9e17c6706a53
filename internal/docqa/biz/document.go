package biz

import (
	"bytes"
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/component/blob"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/pool"
)

// 上传约束。
const (
	maxPDFSize     = 10 * 1024 * 1024
	minTextChars   = 10
	maxTextChars   = 50000
	maxTitleLength = 100
)

var pdfMagic = []byte("%PDF-")

// UploadPDFRequest PDF 上传请求。
type UploadPDFRequest struct {
	UserID   string
	Title    string
	FileName string
	Data     []byte
}

// UploadTextRequest 纯文本上传请求。
type UploadTextRequest struct {
	UserID  string
	Title   string
	Content string
}

// DocumentService 管理文档生命周期：上传、查询、取消、删除。
type DocumentService struct {
	docs     store.DocumentStore
	chunks   store.ChunkStore
	chats    store.ChatStore
	vectors  store.VectorStore
	blobs    *blob.Store
	ingestor *Ingestor
}

// NewDocumentService 创建文档服务实例。
func NewDocumentService(
	docs store.DocumentStore,
	chunks store.ChunkStore,
	chats store.ChatStore,
	vectors store.VectorStore,
	blobs *blob.Store,
	ingestor *Ingestor,
) *DocumentService {
	return &DocumentService{
		docs:     docs,
		chunks:   chunks,
		chats:    chats,
		vectors:  vectors,
		blobs:    blobs,
		ingestor: ingestor,
	}
}

// UploadPDF 接收 PDF 文件，落盘后台摄取。
func (s *DocumentService) UploadPDF(ctx context.Context, req *UploadPDFRequest) (*model.Document, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, errors.ErrValidation.WithMessage("file is empty")
	}
	if len(req.Data) > maxPDFSize {
		return nil, errors.ErrValidation.WithMessagef("file exceeds %d bytes", maxPDFSize)
	}
	if !bytes.HasPrefix(req.Data, pdfMagic) {
		return nil, errors.ErrValidation.WithMessage("file is not a PDF")
	}

	now := time.Now()
	doc := &model.Document{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Title:       req.Title,
		SourceKind:  model.SourcePDF,
		FileName:    req.FileName,
		FileSize:    int64(len(req.Data)),
		Status:      model.StatusProcessing,
		StoragePath: fmt.Sprintf("%s/%s.pdf", req.UserID, uuid.NewString()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.blobs.Put(ctx, doc.StoragePath, bytes.NewReader(req.Data)); err != nil {
		return nil, errors.ErrIngestion.WithCause(err)
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		// 文档记录写入失败时回收已落盘的文件
		_ = s.blobs.Delete(ctx, doc.StoragePath)
		return nil, err
	}

	s.startIngestion(doc)
	return doc, nil
}

// UploadText 接收纯文本内容，后台摄取。
func (s *DocumentService) UploadText(ctx context.Context, req *UploadTextRequest) (*model.Document, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	chars := utf8.RuneCountInString(req.Content)
	if chars < minTextChars || chars > maxTextChars {
		return nil, errors.ErrValidation.WithMessagef(
			"text content must be between %d and %d characters", minTextChars, maxTextChars)
	}

	now := time.Now()
	doc := &model.Document{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Title:      req.Title,
		SourceKind: model.SourceText,
		FileSize:   int64(chars),
		Status:     model.StatusProcessing,
		Content:    req.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.startIngestion(doc)
	return doc, nil
}

// startIngestion 在后台启动摄取流水线。
// 流水线生命周期独立于请求，使用新的背景上下文。
func (s *DocumentService) startIngestion(doc *model.Document) {
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("ingestion task panic", "document_id", doc.ID, "error", r)
			}
		}()
		_ = s.ingestor.Run(context.Background(), doc)
	}

	if err := pool.SubmitToType(pool.BackgroundPool, task); err != nil {
		logger.Warnw("background pool unavailable, falling back to goroutine",
			"error", err.Error(),
		)
		go task()
	}
}

// GetDocument 获取单个文档，校验归属。
func (s *DocumentService) GetDocument(ctx context.Context, documentID, userID string) (*model.Document, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, errors.ErrDocumentNotFound
	}
	return doc, nil
}

// ListDocuments 列出用户的全部文档。
func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]*model.Document, error) {
	return s.docs.ListDocuments(ctx, userID)
}

// CancelResult 取消操作的结果。
type CancelResult struct {
	DocumentID string `json:"documentId"`
	Cancelled  bool   `json:"cancelled"`
}

// CancelIngestion 请求取消摄取并清理中间产物。
// 先在事务中写入取消标记，流水线检查点据此停止；随后按
// 向量、文本块、原始文件的顺序尽力清理，最后删除文档记录。
func (s *DocumentService) CancelIngestion(ctx context.Context, documentID, userID string) (*CancelResult, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, errors.ErrDocumentNotFound
	}

	if err := s.docs.RequestCancel(ctx, documentID, userID); err != nil {
		return nil, err
	}
	logger.Infow("cancellation requested", "document_id", documentID)

	s.cleanupArtifacts(ctx, doc)

	// 文档记录最后删除，之前的清理失败不阻止取消完成
	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return nil, err
	}

	return &CancelResult{DocumentID: documentID, Cancelled: true}, nil
}

// DeleteDocument 删除就绪文档及其全部关联数据。
func (s *DocumentService) DeleteDocument(ctx context.Context, documentID, userID string) error {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return errors.ErrDocumentNotFound
	}

	s.cleanupArtifacts(ctx, doc)

	if err := s.chats.DeleteHistory(ctx, documentID); err != nil {
		logger.Warnw("failed to delete chat history", "document_id", documentID, "error", err.Error())
	}

	return s.docs.DeleteDocument(ctx, documentID)
}

// cleanupArtifacts 尽力清理向量、文本块和原始文件。
// 单步失败只记录日志，不中断后续清理。
func (s *DocumentService) cleanupArtifacts(ctx context.Context, doc *model.Document) {
	// 1. 向量：按已写入的文本块数量推导向量 ID
	count, err := s.chunks.CountChunks(ctx, doc.ID)
	if err != nil {
		logger.Warnw("failed to count chunks for cleanup", "document_id", doc.ID, "error", err.Error())
	}
	if count > 0 {
		ids := make([]string, count)
		for i := int64(0); i < count; i++ {
			ids[i] = store.VectorID(doc.ID, int(i))
		}
		if err := s.vectors.DeleteVectors(ctx, doc.UserID, ids); err != nil {
			logger.Warnw("failed to delete vectors", "document_id", doc.ID, "error", err.Error())
		}
	} else {
		// 数量未知时按表达式兜底删除
		if err := s.vectors.DeleteDocumentVectors(ctx, doc.UserID, doc.ID); err != nil {
			logger.Warnw("failed to delete document vectors", "document_id", doc.ID, "error", err.Error())
		}
	}

	// 2. 文本块
	if err := s.chunks.DeleteChunks(ctx, doc.ID); err != nil {
		logger.Warnw("failed to delete chunks", "document_id", doc.ID, "error", err.Error())
	}

	// 3. 原始文件
	if doc.StoragePath != "" {
		if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			logger.Warnw("failed to delete blob", "document_id", doc.ID, "error", err.Error())
		}
	}
}

// validateTitle 校验标题长度。
func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return errors.ErrValidation.WithMessage("title is required")
	}
	if n > maxTitleLength {
		return errors.ErrValidation.WithMessagef("title exceeds %d characters", maxTitleLength)
	}
	return nil
}

package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/component/blob"
	"github.com/kart-io/docqa/pkg/errors"
)

// documentPreviewLen 文档级文本预览长度（字符数）。
const documentPreviewLen = 200

// Ingestor 执行文档摄取流水线：提取、分块、向量化、索引。
// 每个阶段之间重新读取取消标记，发现取消意向后静默停止，
// 中间产物的清理由取消接口负责。
type Ingestor struct {
	docs      store.DocumentStore
	chunks    store.ChunkStore
	blobs     *blob.Store
	extractor *Extractor
	chunker   *Chunker
	embedder  *Embedder
	indexer   *Indexer
}

// NewIngestor 创建摄取流水线实例。
func NewIngestor(
	docs store.DocumentStore,
	chunks store.ChunkStore,
	blobs *blob.Store,
	extractor *Extractor,
	chunker *Chunker,
	embedder *Embedder,
	indexer *Indexer,
) *Ingestor {
	return &Ingestor{
		docs:      docs,
		chunks:    chunks,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		indexer:   indexer,
	}
}

// Run 对文档执行完整摄取流水线。
// 返回 nil 表示成功完成或被取消；其他错误会把文档置为 error 状态。
func (g *Ingestor) Run(ctx context.Context, doc *model.Document) error {
	if err := g.run(ctx, doc); err != nil {
		logger.Errorw("ingestion failed",
			"document_id", doc.ID,
			"error", err.Error(),
		)
		// 取消标记出现时文档可能已被删除，状态更新失败可以忽略
		if updErr := g.docs.UpdateDocument(ctx, doc.ID, map[string]any{
			"status":        model.StatusError,
			"error_message": errors.FromError(err).MessageEN,
		}); updErr != nil {
			logger.Warnw("failed to record ingestion error", "document_id", doc.ID, "error", updErr.Error())
		}
		return err
	}
	return nil
}

func (g *Ingestor) run(ctx context.Context, doc *model.Document) error {
	if err := g.docs.UpdateDocument(ctx, doc.ID, map[string]any{
		"status": model.StatusProcessing,
	}); err != nil {
		return err
	}

	// 1. 提取前检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	extractStart := time.Now()
	extracted, err := g.extract(ctx, doc)
	if err != nil {
		return err
	}
	extractDuration := time.Since(extractStart)

	preview := ""
	for _, page := range extracted.Pages {
		if page.Text != "" {
			preview = textutil.TruncateString(page.Text, documentPreviewLen)
			break
		}
	}

	now := time.Now()
	if err := g.docs.UpdateDocument(ctx, doc.ID, map[string]any{
		"page_count":             extracted.PageCount,
		"extracted_at":           now,
		"extraction_duration_ms": extractDuration.Milliseconds(),
		"text_preview":           preview,
	}); err != nil {
		return err
	}
	logger.Infow("text extracted",
		"document_id", doc.ID,
		"pages", extracted.PageCount,
		"duration_ms", extractDuration.Milliseconds(),
	)

	// 2. 分块前检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	chunks := g.chunker.ChunkPages(doc.ID, doc.UserID, extracted)
	if len(chunks) == 0 {
		return errors.ErrValidation.WithMessage("document produced no text chunks")
	}
	logger.Infow("document chunked", "document_id", doc.ID, "chunks", len(chunks))

	// 3. 落盘文本块前检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	if err := g.chunks.SaveChunks(ctx, chunks); err != nil {
		return err
	}

	// 4. 向量化前检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := g.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	logger.Infow("chunks embedded", "document_id", doc.ID, "vectors", len(embeddings))

	// 5. 写入向量库前检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	if err := g.indexer.IndexChunks(ctx, doc.UserID, chunks, embeddings); err != nil {
		return err
	}

	// 6. 标记就绪前最后一次检查取消标记
	if g.isCancelled(ctx, doc.ID) {
		return nil
	}

	if err := g.docs.UpdateDocument(ctx, doc.ID, map[string]any{
		"status":       model.StatusReady,
		"vector_count": len(chunks),
		"indexed_at":   time.Now(),
	}); err != nil {
		return err
	}

	logger.Infow("document ready", "document_id", doc.ID, "vectors", len(chunks))
	return nil
}

// extract 根据文档类型选择提取方式。
func (g *Ingestor) extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
	if doc.SourceKind == model.SourcePDF {
		path, err := g.blobs.GetPath(doc.StoragePath)
		if err != nil {
			return nil, errors.ErrIngestion.WithCause(err)
		}
		return g.extractor.ExtractPDF(path)
	}
	return g.extractor.ExtractPlainText(doc.Content), nil
}

// isCancelled 重新读取取消标记。文档已不存在也视为取消。
func (g *Ingestor) isCancelled(ctx context.Context, documentID string) bool {
	cancelledAt, err := g.docs.GetCancelRequestedAt(ctx, documentID)
	if err != nil {
		if errors.IsCode(err, errors.ErrDocumentNotFound.Code) {
			logger.Infow("document removed during ingestion, stopping", "document_id", documentID)
			return true
		}
		// 读取失败时继续执行，下一个检查点会再试
		logger.Warnw("failed to read cancel flag", "document_id", documentID, "error", err.Error())
		return false
	}
	if cancelledAt != nil {
		logger.Infow("cancellation requested, stopping ingestion",
			"document_id", documentID,
			"requested_at", cancelledAt,
		)
		return true
	}
	return false
}

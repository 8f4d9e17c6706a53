package biz

import (
	"time"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/textutil"
)

// chunkPreviewLen 文本块预览长度（字符数）。
const chunkPreviewLen = 200

// ChunkerConfig 分块器配置。
type ChunkerConfig struct {
	// ChunkSize 文本块最大字符数。
	ChunkSize int
	// ChunkOverlap 相邻块重叠字符数。
	ChunkOverlap int
}

// Chunker 将按页提取的文本分割为带全局序号的文本块。
type Chunker struct {
	splitter *textutil.RecursiveSplitter
}

// NewChunkerConfig 创建默认分块配置。
func NewChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// NewChunker 创建分块器实例。
func NewChunker(config *ChunkerConfig) *Chunker {
	if config == nil {
		config = NewChunkerConfig()
	}
	return &Chunker{
		splitter: textutil.NewRecursiveSplitter(config.ChunkSize, config.ChunkOverlap),
	}
}

// ChunkPages 逐页分块。块序号在整个文档内连续，从 0 开始，
// 页码记录每个块的来源页。空白页不产生块但不中断序号。
func (c *Chunker) ChunkPages(documentID, userID string, extracted *model.ExtractedText) []*model.TextChunk {
	now := time.Now()
	var chunks []*model.TextChunk

	index := 0
	for _, page := range extracted.Pages {
		for _, text := range c.splitter.Split(page.Text) {
			chunks = append(chunks, &model.TextChunk{
				DocumentID:  documentID,
				UserID:      userID,
				ChunkIndex:  index,
				PageNumber:  page.PageNumber,
				Text:        text,
				TextPreview: textutil.TruncateString(text, chunkPreviewLen),
				CreatedAt:   now,
			})
			index++
		}
	}

	return chunks
}

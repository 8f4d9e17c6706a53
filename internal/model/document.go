// Package model provides data models for the document QA service.
package model

import (
	"time"
)

// DocumentStatus 文档生命周期状态。
type DocumentStatus string

const (
	// StatusProcessing 文档已接收，摄取流水线处理中。
	StatusProcessing DocumentStatus = "processing"
	// StatusReady 向量索引完成，可进行问答。
	StatusReady DocumentStatus = "ready"
	// StatusError 处理失败。
	StatusError DocumentStatus = "error"
)

// SourceKind 文档来源类型。
type SourceKind string

const (
	// SourcePDF 上传的 PDF 文件。
	SourcePDF SourceKind = "pdf"
	// SourceText 用户粘贴的纯文本。
	SourceText SourceKind = "text"
)

// Document represents an uploaded document and its processing state.
type Document struct {
	ID         string     `json:"id" bson:"_id"`
	UserID     string     `json:"userId" bson:"user_id"`
	Title      string     `json:"title" bson:"title"`
	SourceKind SourceKind `json:"sourceKind" bson:"source_kind"`
	FileName   string     `json:"fileName" bson:"file_name"`
	// FileSize PDF 为字节数，纯文本为字符数。
	FileSize  int64          `json:"fileSize" bson:"file_size"`
	PageCount int            `json:"pageCount" bson:"page_count"`
	Status    DocumentStatus `json:"status" bson:"status"`

	// StoragePath 仅 PDF 文档有值，指向 blob 存储中的原始文件。
	StoragePath string `json:"storagePath,omitempty" bson:"storage_path,omitempty"`
	// Content 仅纯文本文档有值。
	Content string `json:"content,omitempty" bson:"content,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty" bson:"error_message,omitempty"`

	// CancelRequestedAt 取消意向时间戳，流水线检查点据此停止。
	CancelRequestedAt *time.Time `json:"cancelRequestedAt,omitempty" bson:"cancel_requested_at,omitempty"`

	ExtractedAt          *time.Time `json:"extractedAt,omitempty" bson:"extracted_at,omitempty"`
	ExtractionDurationMs int64      `json:"extractionDuration,omitempty" bson:"extraction_duration_ms,omitempty"`
	TextPreview          string     `json:"textPreview,omitempty" bson:"text_preview,omitempty"`

	VectorCount int        `json:"vectorCount,omitempty" bson:"vector_count,omitempty"`
	IndexedAt   *time.Time `json:"indexedAt,omitempty" bson:"indexed_at,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// TextChunk represents a single chunk of extracted document text.
type TextChunk struct {
	DocumentID string `json:"documentId" bson:"document_id"`
	UserID     string `json:"userId" bson:"user_id"`
	// ChunkIndex 文档内全局连续序号，从 0 开始。
	ChunkIndex int    `json:"chunkIndex" bson:"chunk_index"`
	PageNumber int    `json:"pageNumber" bson:"page_number"`
	Text       string `json:"text" bson:"text"`
	// TextPreview 前 200 个字符，用于展示和检索来源。
	TextPreview string    `json:"textPreview" bson:"text_preview"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// ExtractedPage 单页提取结果。
type ExtractedPage struct {
	PageNumber int
	Text       string
}

// ExtractedText 按页组织的文档提取结果。
type ExtractedText struct {
	PageCount int
	Pages     []ExtractedPage
}

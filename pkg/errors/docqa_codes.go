package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// ServiceDocQA is the service code for the document QA service.
const ServiceDocQA = 21

func init() {
	RegisterService(ServiceDocQA, "docqa")
}

// ============================================================================
// Document QA Errors (Service: 21)
// ============================================================================

var (
	// ErrValidation indicates invalid request input (bad document, bad
	// question, bad pagination cursor).
	ErrValidation = NewRequestError(ServiceDocQA, 1).
			Message("Validation failed", "请求校验失败").
			MustBuild()

	// ErrDocumentNotFound indicates the document does not exist.
	ErrDocumentNotFound = NewNotFoundError(ServiceDocQA, 1).
				Message("Document not found", "文档不存在").
				MustBuild()

	// ErrDocumentForbidden indicates the document belongs to another user.
	ErrDocumentForbidden = NewPermissionError(ServiceDocQA, 1).
				Message("Document belongs to another user", "无权访问该文档").
				MustBuild()

	// ErrDocumentNotReady indicates the document is not in a state that
	// allows the requested operation (e.g. chat before indexing completed).
	ErrDocumentNotReady = NewConflictError(ServiceDocQA, 1).
				Message("Document is not ready", "文档尚未就绪").
				MustBuild()

	// ErrCancelNotAllowed indicates cancellation was requested for a
	// document that is not processing.
	ErrCancelNotAllowed = NewConflictError(ServiceDocQA, 2).
				Message("Document is not processing", "文档未在处理中，无法取消").
				MustBuild()

	// ErrRateLimited indicates the upstream provider rejected the request
	// due to quota exhaustion.
	ErrRateLimited = NewRateLimitError(ServiceDocQA, 1).
			Message("Rate limit exceeded, please retry later", "请求过于频繁，请稍后重试").
			MustBuild()

	// ErrIngestion indicates the ingestion pipeline failed.
	ErrIngestion = NewInternalError(ServiceDocQA, 1).
			Message("Document processing failed", "文档处理失败").
			MustBuild()

	// ErrPDFExtraction indicates the PDF could not be parsed.
	ErrPDFExtraction = NewBuilder(ServiceDocQA, CategoryInternal, 2).
				HTTP(http.StatusUnprocessableEntity).
				GRPC(codes.Internal).
				Message("Failed to extract text from PDF", "PDF 文本提取失败").
				MustBuild()

	// ErrEmbedding indicates the embedding provider failed after retries.
	ErrEmbedding = NewBuilder(ServiceDocQA, CategoryNetwork, 1).
			HTTP(http.StatusBadGateway).
			GRPC(codes.Unavailable).
			Message("Embedding provider unavailable", "向量化服务不可用").
			MustBuild()

	// ErrGeneration indicates the chat provider failed to produce an answer.
	ErrGeneration = NewBuilder(ServiceDocQA, CategoryNetwork, 2).
			HTTP(http.StatusBadGateway).
			GRPC(codes.Unavailable).
			Message("Answer generation failed", "答案生成失败").
			MustBuild()

	// ErrVectorStore indicates a vector index operation failed.
	ErrVectorStore = NewDatabaseError(ServiceDocQA, 1).
			Message("Vector store operation failed", "向量库操作失败").
			MustBuild()

	// ErrDocQAConfig indicates the docqa service is misconfigured.
	ErrDocQAConfig = NewConfigError(ServiceDocQA, 1).
			Message("Document QA service misconfigured", "服务配置错误").
			MustBuild()
)

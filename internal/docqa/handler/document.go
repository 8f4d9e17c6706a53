// Package handler provides HTTP handlers for the document QA service.
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/pkg/errors"
)

// DocumentHandler 处理文档生命周期相关的 HTTP 请求。
type DocumentHandler struct {
	service *biz.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(service *biz.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload 上传 PDF 文件并触发后台摄取。
// 表单字段：title 文档标题，file PDF 文件。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("file is required"), nil)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithCause(err), nil)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithCause(err), nil)
		return
	}

	doc, err := h.service.UploadPDF(c.Request.Context(), &biz.UploadPDFRequest{
		UserID:   UserID(c),
		Title:    c.PostForm("title"),
		FileName: fileHeader.Filename,
		Data:     data,
	})
	httputils.WriteResponse(c, err, doc)
}

// UploadTextRequest 纯文本上传请求体。
type UploadTextRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// UploadText 上传纯文本内容并触发后台摄取。
func (h *DocumentHandler) UploadText(c *gin.Context) {
	var req UploadTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithCause(err), nil)
		return
	}

	doc, err := h.service.UploadText(c.Request.Context(), &biz.UploadTextRequest{
		UserID:  UserID(c),
		Title:   req.Title,
		Content: req.Content,
	})
	httputils.WriteResponse(c, err, doc)
}

// List 列出当前用户的全部文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), UserID(c))
	httputils.WriteResponse(c, err, docs)
}

// Get 获取单个文档详情。
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"), UserID(c))
	httputils.WriteResponse(c, err, doc)
}

// Cancel 取消处理中的文档并清理中间产物。
func (h *DocumentHandler) Cancel(c *gin.Context) {
	result, err := h.service.CancelIngestion(c.Request.Context(), c.Param("id"), UserID(c))
	httputils.WriteResponse(c, err, result)
}

// Delete 删除文档及其全部关联数据。
func (h *DocumentHandler) Delete(c *gin.Context) {
	err := h.service.DeleteDocument(c.Request.Context(), c.Param("id"), UserID(c))
	httputils.WriteResponse(c, err, nil)
}

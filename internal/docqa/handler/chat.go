package handler

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/pkg/errors"
)

// queryTimeout 单次问答的超时上限。
const queryTimeout = 60 * time.Second

// ChatHandler 处理文档问答和聊天历史相关的 HTTP 请求。
type ChatHandler struct {
	query   *biz.QueryService
	history *biz.HistoryService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(query *biz.QueryService, history *biz.HistoryService) *ChatHandler {
	return &ChatHandler{query: query, history: history}
}

// ChatRequest 问答请求体。ChatID 为空时记入文档默认会话。
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
	ChatID   string `json:"chatId"`
}

// Chat 对文档执行一次检索增强问答。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithCause(err), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	answer, err := h.query.Query(ctx, &biz.QueryRequest{
		UserID:     UserID(c),
		DocumentID: c.Param("id"),
		ChatID:     req.ChatID,
		Question:   req.Question,
	})
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		httputils.WriteResponse(c, errors.ErrRequestTimeout, nil)
		return
	}
	httputils.WriteResponse(c, err, answer)
}

// ChatStream 以 SSE 流式返回问答结果。
// 事件类型：delta 增量文本，done 完整结果，error 生成失败。
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithCause(err), nil)
		return
	}

	events, err := h.query.StreamQuery(c.Request.Context(), &biz.QueryRequest{
		UserID:     UserID(c),
		DocumentID: c.Param("id"),
		ChatID:     req.ChatID,
		Question:   req.Question,
	})
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}

		switch {
		case ev.Err != nil:
			errno := errors.FromError(ev.Err)
			c.SSEvent("error", gin.H{"code": errno.Code, "message": errno.MessageEN})
			return false
		case ev.Done:
			c.SSEvent("done", gin.H{
				"answer":     ev.Answer,
				"sources":    ev.Sources,
				"confidence": ev.Confidence,
			})
			return true
		default:
			c.SSEvent("delta", gin.H{"text": ev.Delta})
			return true
		}
	})
}

// History 获取活跃窗口中最近的消息。
// 查询参数：chatId 会话 ID（可选），limit 返回条数。
func (h *ChatHandler) History(c *gin.Context) {
	history, err := h.history.Recent(
		c.Request.Context(),
		c.Param("id"),
		UserID(c),
		c.Query("chatId"),
		limitParam(c),
	)
	httputils.WriteResponse(c, err, history)
}

// HistoryOlder 从归档翻页读取更早的消息。
// 查询参数：chatId 会话 ID（可选），before RFC3339 时间串，limit 返回条数。
func (h *ChatHandler) HistoryOlder(c *gin.Context) {
	history, err := h.history.Older(
		c.Request.Context(),
		c.Param("id"),
		UserID(c),
		c.Query("chatId"),
		c.Query("before"),
		limitParam(c),
	)
	httputils.WriteResponse(c, err, history)
}

// limitParam 解析 limit 查询参数，非法值交由服务层收敛。
func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return 0
	}
	return limit
}

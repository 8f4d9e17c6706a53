package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// 历史查询限制。
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// HistoryService 管理文档下的聊天历史。
type HistoryService struct {
	chats store.ChatStore
}

// NewHistoryService 创建历史服务实例。
func NewHistoryService(chats store.ChatStore) *HistoryService {
	return &HistoryService{chats: chats}
}

// Append 校验并追加消息，溢出归档由存储层在事务中处理。
// chatID 为空时写入文档默认会话。
func (h *HistoryService) Append(ctx context.Context, documentID, userID, chatID string, messages []*model.ChatMessage) (*store.AppendResult, error) {
	if len(messages) == 0 {
		return nil, errors.ErrValidation.WithMessage("no messages to append")
	}
	now := time.Now()
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			return nil, errors.ErrValidation.WithMessage("message content is required")
		}
		if msg.Role != model.ChatRoleUser && msg.Role != model.ChatRoleAssistant {
			return nil, errors.ErrValidation.WithMessagef("invalid message role %q", msg.Role)
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
	}
	return h.chats.AppendMessages(ctx, documentID, userID, chatID, messages)
}

// Recent 获取活跃窗口中最近的消息。
func (h *HistoryService) Recent(ctx context.Context, documentID, userID, chatID string, limit int) (*model.ChatHistory, error) {
	return h.chats.GetRecentMessages(ctx, documentID, userID, chatID, clampLimit(limit))
}

// Older 从归档翻页读取更早的消息。
// before 为 RFC3339 时间串，空串表示从最新归档页开始。
func (h *HistoryService) Older(ctx context.Context, documentID, userID, chatID, before string, limit int) (*model.ChatHistory, error) {
	var cursor *time.Time
	if before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return nil, errors.ErrValidation.WithMessagef("invalid before cursor %q", before)
		}
		cursor = &t
	}
	return h.chats.GetOlderMessages(ctx, documentID, userID, chatID, cursor, clampLimit(limit))
}

// clampLimit 把分页大小收敛到合法区间。
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

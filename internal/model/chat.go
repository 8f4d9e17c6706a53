package model

import (
	"time"
)

// ChatRole 聊天消息角色。
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSource 回答引用的文档来源。
type ChatSource struct {
	PageNumber int    `json:"pageNumber" bson:"page_number"`
	Snippet    string `json:"snippet" bson:"snippet"`
}

// ChatMessage 聊天历史中的一条消息。
type ChatMessage struct {
	Role      ChatRole     `json:"role" bson:"role"`
	Content   string       `json:"content" bson:"content"`
	Sources   []ChatSource `json:"sources" bson:"sources"`
	Timestamp time.Time    `json:"timestamp" bson:"timestamp"`
}

// ChatSession 某文档下一个会话的活跃消息窗口。
// Messages 最多保留 MaxLiveMessages 条，溢出部分归档到 ArchivePage。
type ChatSession struct {
	ID            string        `json:"chatId" bson:"_id"`
	DocumentID    string        `json:"documentId" bson:"document_id"`
	UserID        string        `json:"userId" bson:"user_id"`
	Messages      []ChatMessage `json:"messages" bson:"messages"`
	CreatedAt     time.Time     `json:"createdAt" bson:"created_at"`
	LastMessageAt time.Time     `json:"lastMessageAt" bson:"last_message_at"`
}

// ArchivePage 归档页：活跃窗口溢出的历史消息按页落盘，每页最多
// ArchivePageSize 条，按 CreatedAt 向前分页。
type ArchivePage struct {
	ID         string        `json:"id" bson:"_id"`
	ChatID     string        `json:"chatId" bson:"chat_id"`
	DocumentID string        `json:"documentId" bson:"document_id"`
	Messages   []ChatMessage `json:"messages" bson:"messages"`
	CreatedAt  time.Time     `json:"createdAt" bson:"created_at"`
}

// 聊天历史容量限制。
const (
	// MaxLiveMessages 活跃窗口的最大消息数。
	MaxLiveMessages = 100
	// ArchivePageSize 每个归档页的最大消息数。
	ArchivePageSize = 100
)

// ChatAnswer 一次问答的完整结果。
type ChatAnswer struct {
	Answer     string       `json:"answer"`
	Sources    []ChatSource `json:"sources"`
	Confidence float64      `json:"confidence"`
}

// ChatHistory 聊天历史查询结果。
type ChatHistory struct {
	ChatID   string        `json:"chatId"`
	Messages []ChatMessage `json:"messages"`
}

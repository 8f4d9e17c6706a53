package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
)

// archivePage 构造一页消息，内容为 "{page}-{seq}" 便于断言顺序。
func archivePage(page, count int) model.ArchivePage {
	messages := make([]model.ChatMessage, count)
	for i := range messages {
		messages[i] = model.ChatMessage{
			Role:    model.ChatRoleUser,
			Content: fmt.Sprintf("%d-%d", page, i),
		}
	}
	return model.ArchivePage{ID: fmt.Sprintf("page-%d", page), Messages: messages}
}

func TestFlattenArchivePagesOrder(t *testing.T) {
	// 查询按时间倒序返回：页 2（最新）在前，页 1 在后
	pages := []model.ArchivePage{archivePage(2, 2), archivePage(1, 2)}

	messages := flattenArchivePages(pages, 10)
	require.Len(t, messages, 4)
	assert.Equal(t, "1-0", messages[0].Content)
	assert.Equal(t, "1-1", messages[1].Content)
	assert.Equal(t, "2-0", messages[2].Content)
	assert.Equal(t, "2-1", messages[3].Content)
}

func TestFlattenArchivePagesTruncatesOldestFirst(t *testing.T) {
	pages := []model.ArchivePage{archivePage(2, 3), archivePage(1, 3)}

	// 超出 limit 时保留最旧的消息，裁掉较新的尾部
	messages := flattenArchivePages(pages, 4)
	require.Len(t, messages, 4)
	assert.Equal(t, "1-0", messages[0].Content)
	assert.Equal(t, "1-2", messages[2].Content)
	assert.Equal(t, "2-0", messages[3].Content)
}

func TestFlattenArchivePagesEmpty(t *testing.T) {
	assert.Empty(t, flattenArchivePages(nil, 10))
	assert.Empty(t, flattenArchivePages([]model.ArchivePage{}, 10))
}

package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOutOfScope(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		outOfScope bool
	}{
		{"天气问题", "What's the weather like today?", true},
		{"降雨问题", "Will it rain tomorrow?", true},
		{"温度问题", "temperature in Beijing", true},
		{"当前时间", "What's the current time?", true},
		{"今日安排", "What's today looking like?", true},
		{"股票行情", "What are the stock prices now?", true},
		{"热门话题", "What's trending on social media?", true},
		{"导航问题", "How do I get to the airport?", true},
		{"附近查询", "What's near me right now?", true},
		{"大小写不敏感", "WILL IT RAIN?", true},

		{"文档内容问题", "What does the document say about revenue?", false},
		{"总结请求", "Summarize chapter 3", false},
		{"文档中提到天气", "Does the report mention weather patterns?", false},
		{"股票出现在句中", "How did the company describe stock performance?", false},
		{"空问题", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outOfScope, IsOutOfScope(tt.question))
		})
	}
}

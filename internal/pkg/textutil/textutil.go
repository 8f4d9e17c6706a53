// Package textutil 提供文档问答相关的文本处理工具函数。
package textutil

import (
	"unicode/utf8"
)

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

package biz

import (
	"regexp"
	"strings"
)

// 固定回答文案。
const (
	// NoContextAnswer 检索不到相关内容时的回答。
	NoContextAnswer = "I don't have information about that in your document."
	// OutOfScopeAnswer 与文档无关的实时信息问题的回答。
	OutOfScopeAnswer = "I can only answer questions about your uploaded document."
)

// outOfScopePatterns 识别明显依赖实时外部信息的问题：
// 天气、时间、新闻、行情、导航等。只拦截开头即可判定的问法，
// 避免误伤文档内容本身涉及这些主题的问题。
var outOfScopePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^what'?s?\s+(the\s+)?weather\b`),
	regexp.MustCompile(`^(will\s+it\s+)?rain\b`),
	regexp.MustCompile(`^(temperature|forecast|snow|wind)\b`),
	regexp.MustCompile(`^what('s|s)?\s+(the\s+)?current\s+(time|date|news|weather)`),
	regexp.MustCompile(`^what'?s?\s+(today|tomorrow|next week|on the news)`),
	regexp.MustCompile(`^(what|where|who|how)\s+are\s+(the\s+)?(stock|crypto|price|exchange)`),
	regexp.MustCompile(`^what'?s?\s+(trending|the\s+latest\s+(news|score|headline))`),
	regexp.MustCompile(`^(how\s+do\s+i\s+)?get\s+(to|directions|a\s+ride)`),
	regexp.MustCompile(`^(what's|what\s+is)\s+near\s+me\b`),
}

// IsOutOfScope 判断问题是否明显超出文档问答范围。
func IsOutOfScope(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, pattern := range outOfScopePatterns {
		if pattern.MatchString(q) {
			return true
		}
	}
	return false
}

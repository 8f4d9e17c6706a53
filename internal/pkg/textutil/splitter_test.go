package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveSplitterShortText(t *testing.T) {
	s := textutil.NewRecursiveSplitter(1000, 200)

	chunks := s.Split("这是一段很短的文本。")
	require.Len(t, chunks, 1)
	assert.Equal(t, "这是一段很短的文本。", chunks[0])
}

func TestRecursiveSplitterEmptyText(t *testing.T) {
	s := textutil.NewRecursiveSplitter(1000, 200)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\n\t  "))
}

func TestRecursiveSplitterParagraphBoundary(t *testing.T) {
	s := textutil.NewRecursiveSplitter(20, 0)

	text := "first paragraph\n\nsecond paragraph\n\nthird one"
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	// 段落边界优先：各块不跨越空行
	for _, chunk := range chunks {
		assert.NotContains(t, chunk, "\n\n")
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 20)
	}
}

func TestRecursiveSplitterChunkSizeLimit(t *testing.T) {
	s := textutil.NewRecursiveSplitter(100, 20)

	// 无任何分隔符的长文本，降级到单字符切分
	text := strings.Repeat("甲", 350)
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100, "chunk %d exceeds size", i)
	}

	// 所有内容都被保留
	total := 0
	for _, chunk := range chunks {
		total += utf8.RuneCountInString(chunk)
	}
	assert.GreaterOrEqual(t, total, 350)
}

func TestRecursiveSplitterOverlap(t *testing.T) {
	s := textutil.NewRecursiveSplitter(30, 10)

	words := make([]string, 20)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	// 相邻块之间存在内容重叠
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[len(prev)-4:]
		assert.Contains(t, chunks[i], tail, "chunk %d should overlap with chunk %d", i, i-1)
	}
}

func TestRecursiveSplitterSentenceBoundary(t *testing.T) {
	s := textutil.NewRecursiveSplitter(40, 0)

	text := "First sentence here. Second sentence follows. Third sentence ends"
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 40)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestRecursiveSplitterNoWhitespaceChunks(t *testing.T) {
	s := textutil.NewRecursiveSplitter(10, 2)

	text := "abc\n\n   \n\ndef\n\n\n\nghi"
	for _, chunk := range s.Split(text) {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestRecursiveSplitterCustomSeparators(t *testing.T) {
	s := textutil.NewRecursiveSplitter(10, 0).WithSeparators([]string{"|", ""})

	chunks := s.Split("aaa|bbb|ccc")
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotContains(t, chunk, "|a")
	}
}

func TestRecursiveSplitterDefaults(t *testing.T) {
	// 非法参数回退到默认值，不 panic
	s := textutil.NewRecursiveSplitter(0, -5)
	chunks := s.Split("hello world")
	require.Len(t, chunks, 1)

	s = textutil.NewRecursiveSplitter(10, 50)
	chunks = s.Split(strings.Repeat("a b ", 20))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 10)
	}
}

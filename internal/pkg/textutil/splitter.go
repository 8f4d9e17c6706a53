package textutil

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 是递归分割时依次尝试的分隔符，从段落到单字符逐级降级。
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveSplitter 按分隔符层级递归分割文本为重叠的语义块。
// 优先在段落、行、句子边界切分，只有在单个片段仍超过块大小时
// 才降级到更细的分隔符。长度均以 Unicode 字符数计。
type RecursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursiveSplitter 创建递归分割器。
// chunkSize 是每个块的最大字符数，overlap 是相邻块的重叠字符数。
func NewRecursiveSplitter(chunkSize, overlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	return &RecursiveSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// WithSeparators 替换默认分隔符层级。
func (s *RecursiveSplitter) WithSeparators(separators []string) *RecursiveSplitter {
	if len(separators) > 0 {
		s.separators = separators
	}
	return s
}

// Split 将文本分割为块，过滤掉纯空白的块。
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for _, chunk := range s.splitText(text, s.separators) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitText 递归分割：选择当前文本中出现的最粗分隔符切开，
// 合并小片段为块，对仍然超长的片段用更细的分隔符继续分割。
func (s *RecursiveSplitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			nextSeparators = separators[i+1:]
			break
		}
	}

	splits := splitOnSeparator(text, separator)

	var finalChunks []string
	var goodSplits []string
	for _, split := range splits {
		if utf8.RuneCountInString(split) < s.chunkSize {
			goodSplits = append(goodSplits, split)
			continue
		}

		if len(goodSplits) > 0 {
			finalChunks = append(finalChunks, s.mergeSplits(goodSplits, separator)...)
			goodSplits = nil
		}

		if len(nextSeparators) == 0 {
			finalChunks = append(finalChunks, split)
		} else {
			finalChunks = append(finalChunks, s.splitText(split, nextSeparators)...)
		}
	}
	if len(goodSplits) > 0 {
		finalChunks = append(finalChunks, s.mergeSplits(goodSplits, separator)...)
	}

	return finalChunks
}

// mergeSplits 贪心合并片段为不超过 chunkSize 的块，
// 新块从上一块尾部保留 overlap 个字符的片段开始。
func (s *RecursiveSplitter) mergeSplits(splits []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)

	var chunks []string
	var current []string
	total := 0

	for _, split := range splits {
		splitLen := utf8.RuneCountInString(split)

		if len(current) > 0 && total+splitLen+sepLen > s.chunkSize {
			if chunk := joinSplits(current, separator); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// 从头部弹出片段直到满足重叠窗口
			for total > s.overlap || (total+splitLen+sepLen > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, split)
		total += splitLen
	}

	if chunk := joinSplits(current, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// splitOnSeparator 按分隔符切分文本并丢弃空片段。
// 空分隔符表示按单个字符切分。
func splitOnSeparator(text, separator string) []string {
	var parts []string
	if separator == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}

	for _, part := range strings.Split(text, separator) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func joinSplits(splits []string, separator string) string {
	return strings.TrimSpace(strings.Join(splits, separator))
}

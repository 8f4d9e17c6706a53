package biz

import (
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// Extractor 负责从原始文档中提取按页组织的文本。
type Extractor struct{}

// NewExtractor 创建提取器实例。
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPDF 从 PDF 文件中逐页提取文本。
// 单页解析失败只跳过该页，整个文档无可用文本时才报错。
func (e *Extractor) ExtractPDF(path string) (*model.ExtractedText, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.ErrPDFExtraction.WithCause(err)
	}
	defer f.Close()

	total := reader.NumPage()
	if total == 0 {
		return nil, errors.ErrPDFExtraction.WithMessage("PDF has no pages")
	}

	pages := make([]model.ExtractedPage, 0, total)
	extracted := 0
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, model.ExtractedPage{PageNumber: num})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warnw("failed to extract page text, skipping",
				"page", num,
				"error", err.Error(),
			)
			pages = append(pages, model.ExtractedPage{PageNumber: num})
			continue
		}

		text = normalizeText(text)
		if text != "" {
			extracted++
		}
		pages = append(pages, model.ExtractedPage{PageNumber: num, Text: text})
	}

	if extracted == 0 {
		return nil, errors.ErrPDFExtraction.WithMessage("no extractable text in PDF")
	}

	return &model.ExtractedText{PageCount: total, Pages: pages}, nil
}

// ExtractPlainText 将纯文本内容组织为单页提取结果。
func (e *Extractor) ExtractPlainText(content string) *model.ExtractedText {
	return &model.ExtractedText{
		PageCount: 1,
		Pages: []model.ExtractedPage{
			{PageNumber: 1, Text: normalizeText(content)},
		},
	}
}

// normalizeText 去除首尾空白并把 Windows 换行统一为 \n。
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

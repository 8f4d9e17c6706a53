package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/component/blob"
	"github.com/kart-io/docqa/pkg/errors"
	blobopts "github.com/kart-io/docqa/pkg/options/blob"
)

type documentFixture struct {
	docs    *fakeDocStore
	chunks  *fakeChunkStore
	chats   *fakeChatStore
	vectors *fakeVectorStore
	ops     *opRecorder
	svc     *DocumentService
}

func newDocumentFixture(t *testing.T, docs ...*model.Document) *documentFixture {
	t.Helper()

	blobs, err := blob.New(&blobopts.Options{BaseDir: t.TempDir(), MaxFileSize: maxPDFSize})
	require.NoError(t, err)

	f := &documentFixture{
		docs:    newFakeDocStore(docs...),
		chunks:  newFakeChunkStore(),
		chats:   newFakeChatStore(),
		vectors: newFakeVectorStore(),
		ops:     &opRecorder{},
	}
	f.docs.ops = f.ops
	f.chunks.ops = f.ops
	f.vectors.ops = f.ops

	ingestor := NewIngestor(
		f.docs,
		f.chunks,
		blobs,
		NewExtractor(),
		NewChunker(nil),
		NewEmbedder(newFakeEmbedProvider(768), fastEmbedderConfig(768)),
		NewIndexer(f.vectors, 768),
	)
	f.svc = NewDocumentService(f.docs, f.chunks, f.chats, f.vectors, blobs, ingestor)
	return f
}

func TestUploadPDFValidation(t *testing.T) {
	f := newDocumentFixture(t)

	tests := []struct {
		name string
		req  *UploadPDFRequest
	}{
		{"缺少标题", &UploadPDFRequest{UserID: "user-1", Title: "", Data: []byte("%PDF-1.7")}},
		{"标题过长", &UploadPDFRequest{UserID: "user-1", Title: strings.Repeat("很", maxTitleLength+1), Data: []byte("%PDF-1.7")}},
		{"空文件", &UploadPDFRequest{UserID: "user-1", Title: "Report", Data: nil}},
		{"超出大小上限", &UploadPDFRequest{UserID: "user-1", Title: "Report", Data: append([]byte("%PDF-"), make([]byte, maxPDFSize)...)}},
		{"缺少魔数", &UploadPDFRequest{UserID: "user-1", Title: "Report", Data: []byte("not a pdf at all")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadPDF(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrValidation.Code))
		})
	}
}

func TestUploadTextValidation(t *testing.T) {
	f := newDocumentFixture(t)

	tests := []struct {
		name    string
		content string
	}{
		{"内容过短", "too short"},
		{"内容过长", strings.Repeat("字", maxTextChars+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadText(context.Background(), &UploadTextRequest{
				UserID: "user-1", Title: "Notes", Content: tt.content,
			})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrValidation.Code))
		})
	}
}

func TestUploadTextCreatesDocument(t *testing.T) {
	f := newDocumentFixture(t)

	content := strings.Repeat("Meeting notes about the product roadmap. ", 10)
	doc, err := f.svc.UploadText(context.Background(), &UploadTextRequest{
		UserID: "user-1", Title: "Roadmap", Content: content,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, "Roadmap", doc.Title)
	assert.Equal(t, model.SourceText, doc.SourceKind)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Equal(t, int64(len([]rune(content))), doc.FileSize)
	assert.Empty(t, doc.StoragePath)
}

func TestGetDocumentOwnership(t *testing.T) {
	f := newDocumentFixture(t, readyDoc())

	doc, err := f.svc.GetDocument(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	// 他人文档按不存在处理
	_, err = f.svc.GetDocument(context.Background(), "doc-1", "user-2")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocumentNotFound.Code))
}

func TestCancelIngestionCleanupOrder(t *testing.T) {
	processing := &model.Document{
		ID:     "doc-1",
		UserID: "user-1",
		Title:  "Report",
		Status: model.StatusProcessing,
	}
	f := newDocumentFixture(t, processing)
	require.NoError(t, f.chunks.SaveChunks(context.Background(), []*model.TextChunk{
		{DocumentID: "doc-1", UserID: "user-1", ChunkIndex: 0, Text: "chunk"},
		{DocumentID: "doc-1", UserID: "user-1", ChunkIndex: 1, Text: "chunk"},
	}))

	result, err := f.svc.CancelIngestion(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, "doc-1", result.DocumentID)

	// 清理顺序：向量、文本块、文档记录
	assert.Equal(t, []string{"delete_vectors", "delete_chunks", "delete_document"}, f.ops.all())

	_, err = f.docs.GetDocument(context.Background(), "doc-1")
	assert.True(t, errors.IsCode(err, errors.ErrDocumentNotFound.Code))
}

func TestCancelIngestionReadyDocument(t *testing.T) {
	f := newDocumentFixture(t, readyDoc())

	_, err := f.svc.CancelIngestion(context.Background(), "doc-1", "user-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCancelNotAllowed.Code))

	// 拒绝取消后文档保持不变
	doc, getErr := f.docs.GetDocument(context.Background(), "doc-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.StatusReady, doc.Status)
	assert.Empty(t, f.ops.all())
}

func TestCancelIngestionWrongOwner(t *testing.T) {
	processing := &model.Document{
		ID:     "doc-1",
		UserID: "user-1",
		Status: model.StatusProcessing,
	}
	f := newDocumentFixture(t, processing)

	_, err := f.svc.CancelIngestion(context.Background(), "doc-1", "user-2")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocumentNotFound.Code))
	assert.Empty(t, f.ops.all())
}

func TestDeleteDocumentRemovesHistory(t *testing.T) {
	f := newDocumentFixture(t, readyDoc())
	_, err := f.chats.AppendMessages(context.Background(), "doc-1", "user-1", "", []*model.ChatMessage{
		{Role: model.ChatRoleUser, Content: "question"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDocument(context.Background(), "doc-1", "user-1"))

	assert.Empty(t, f.chats.appended["doc-1"])
	_, err = f.docs.GetDocument(context.Background(), "doc-1")
	assert.True(t, errors.IsCode(err, errors.ErrDocumentNotFound.Code))
}

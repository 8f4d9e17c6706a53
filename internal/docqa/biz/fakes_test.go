package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm"
)

// fakeDocStore 内存文档存储，记录所有更新以便断言。
type fakeDocStore struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	updates []map[string]any
	ops     *opRecorder
	// cancelAfterUpdates 在第 N 次更新之后写入取消标记，模拟摄取中途取消
	cancelAfterUpdates int
}

func newFakeDocStore(docs ...*model.Document) *fakeDocStore {
	s := &fakeDocStore{docs: make(map[string]*model.Document), cancelAfterUpdates: -1}
	for _, d := range docs {
		copied := *d
		s.docs[d.ID] = &copied
	}
	return s
}

func (s *fakeDocStore) CreateDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *fakeDocStore) GetDocument(_ context.Context, documentID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, errors.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeDocStore) ListDocuments(_ context.Context, userID string) ([]*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []*model.Document
	for _, d := range s.docs {
		if d.UserID == userID {
			copied := *d
			docs = append(docs, &copied)
		}
	}
	return docs, nil
}

func (s *fakeDocStore) UpdateDocument(_ context.Context, documentID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return errors.ErrDocumentNotFound
	}
	s.updates = append(s.updates, fields)
	if status, ok := fields["status"]; ok {
		doc.Status = status.(model.DocumentStatus)
	}
	if msg, ok := fields["error_message"]; ok {
		doc.ErrorMessage = msg.(string)
	}
	if s.cancelAfterUpdates >= 0 && len(s.updates) > s.cancelAfterUpdates {
		now := time.Now()
		doc.CancelRequestedAt = &now
	}
	return nil
}

func (s *fakeDocStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	if s.ops != nil {
		s.ops.record("delete_document")
	}
	return nil
}

func (s *fakeDocStore) RequestCancel(_ context.Context, documentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok || doc.UserID != userID {
		return errors.ErrDocumentNotFound
	}
	if doc.Status == model.StatusReady {
		return errors.ErrCancelNotAllowed
	}
	now := time.Now()
	doc.CancelRequestedAt = &now
	return nil
}

func (s *fakeDocStore) GetCancelRequestedAt(_ context.Context, documentID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, errors.ErrDocumentNotFound
	}
	return doc.CancelRequestedAt, nil
}

// opRecorder 记录跨组件的操作顺序。
type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// fakeChunkStore 内存文本块存储。
type fakeChunkStore struct {
	mu     sync.Mutex
	chunks map[string][]*model.TextChunk
	ops    *opRecorder
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string][]*model.TextChunk)}
}

func (s *fakeChunkStore) SaveChunks(_ context.Context, chunks []*model.TextChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.DocumentID] = append(s.chunks[c.DocumentID], c)
	}
	return nil
}

func (s *fakeChunkStore) GetChunks(_ context.Context, documentID string) ([]*model.TextChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.TextChunk(nil), s.chunks[documentID]...), nil
}

func (s *fakeChunkStore) CountChunks(_ context.Context, documentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.chunks[documentID])), nil
}

func (s *fakeChunkStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	if s.ops != nil {
		s.ops.record("delete_chunks")
	}
	return nil
}

// fakeChatStore 内存聊天历史存储，仅记录追加的消息。
type fakeChatStore struct {
	mu       sync.Mutex
	appended map[string][]*model.ChatMessage
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{appended: make(map[string][]*model.ChatMessage)}
}

func (s *fakeChatStore) AppendMessages(_ context.Context, documentID, _, _ string, messages []*model.ChatMessage) (*store.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended[documentID] = append(s.appended[documentID], messages...)
	return &store.AppendResult{ChatID: "chat-" + documentID, LiveCount: len(s.appended[documentID])}, nil
}

func (s *fakeChatStore) GetRecentMessages(_ context.Context, documentID, _, _ string, limit int) (*model.ChatHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.appended[documentID]
	out := make([]model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return &model.ChatHistory{ChatID: "chat-" + documentID, Messages: out}, nil
}

func (s *fakeChatStore) GetOlderMessages(_ context.Context, documentID, _, _ string, _ *time.Time, _ int) (*model.ChatHistory, error) {
	return &model.ChatHistory{ChatID: "chat-" + documentID, Messages: []model.ChatMessage{}}, nil
}

func (s *fakeChatStore) DeleteHistory(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.appended, documentID)
	return nil
}

// fakeVectorStore 内存向量存储，检索结果可预置。
type fakeVectorStore struct {
	mu      sync.Mutex
	records map[string]*store.VectorRecord
	matches []*store.VectorMatch
	ops     *opRecorder
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]*store.VectorRecord)}
}

func (s *fakeVectorStore) EnsureReady(_ context.Context, _ string) error {
	return nil
}

func (s *fakeVectorStore) UpsertVectors(_ context.Context, _ string, records []*store.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *fakeVectorStore) SearchVectors(_ context.Context, _, _ string, _ []float32, _ int) ([]*store.VectorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*store.VectorMatch(nil), s.matches...), nil
}

func (s *fakeVectorStore) DeleteVectors(_ context.Context, _ string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	if s.ops != nil {
		s.ops.record("delete_vectors")
	}
	return nil
}

func (s *fakeVectorStore) DeleteDocumentVectors(_ context.Context, _, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	if s.ops != nil {
		s.ops.record("delete_vectors")
	}
	return nil
}

// fakeEmbedProvider 返回固定维度向量，记录调用批次。
type fakeEmbedProvider struct {
	mu        sync.Mutex
	dimension int
	batches   [][]string
	// failures 前 N 次调用返回 err
	failures int
	err      error
}

func newFakeEmbedProvider(dimension int) *fakeEmbedProvider {
	return &fakeEmbedProvider{dimension: dimension}
}

func (p *fakeEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	if p.failures > 0 {
		p.failures--
		return nil, p.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, p.dimension)
		vec[0] = float32(i + 1)
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *fakeEmbedProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *fakeEmbedProvider) Name() string { return "fake-embed" }

func (p *fakeEmbedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

// fakeChatProvider 返回固定回答，记录收到的消息。
type fakeChatProvider struct {
	mu       sync.Mutex
	answer   string
	err      error
	messages [][]llm.Message
}

func (p *fakeChatProvider) Chat(_ context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, messages)
	if p.err != nil {
		return "", p.err
	}
	return p.answer, nil
}

func (p *fakeChatProvider) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamDelta, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	p.messages = append(p.messages, messages)
	answer := p.answer
	p.mu.Unlock()

	ch := make(chan llm.StreamDelta, len(answer))
	go func() {
		defer close(ch)
		for _, r := range answer {
			ch <- llm.StreamDelta{Text: string(r)}
		}
	}()
	return ch, nil
}

func (p *fakeChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

func (p *fakeChatProvider) Name() string { return "fake-chat" }

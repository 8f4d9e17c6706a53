package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/pool"
)

// 问题约束。
const (
	maxQuestionChars = 2000
	sourceSnippetLen = 200
)

// QueryRequest 一次问答请求。
// ChatID 为空时本轮对话记入文档默认会话。
type QueryRequest struct {
	UserID     string
	DocumentID string
	ChatID     string
	Question   string
}

// QueryService 组合检索、生成、缓存和历史记录，提供问答能力。
type QueryService struct {
	docs      store.DocumentStore
	chats     store.ChatStore
	retriever *Retriever
	generator *Generator
	cache     *QueryCache
}

// NewQueryService 创建问答服务实例。
func NewQueryService(
	docs store.DocumentStore,
	chats store.ChatStore,
	retriever *Retriever,
	generator *Generator,
	cache *QueryCache,
) *QueryService {
	return &QueryService{
		docs:      docs,
		chats:     chats,
		retriever: retriever,
		generator: generator,
		cache:     cache,
	}
}

// Query 执行一次检索增强问答并持久化到聊天历史。
func (s *QueryService) Query(ctx context.Context, req *QueryRequest) (*model.ChatAnswer, error) {
	if err := s.validateQuestion(req); err != nil {
		return nil, err
	}

	// 1. 范围护栏：实时信息问题直接返回固定回答，不要求文档就绪
	if IsOutOfScope(req.Question) {
		answer := &model.ChatAnswer{Answer: OutOfScopeAnswer, Sources: []model.ChatSource{}}
		if err := s.persist(ctx, req, answer); err != nil {
			return nil, err
		}
		return answer, nil
	}

	doc, err := s.loadReadyDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	// 2. 缓存命中直接返回
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req.UserID, req.DocumentID, req.Question)
		if err == nil && cached != nil {
			if err := s.persist(ctx, req, cached); err != nil {
				return nil, err
			}
			return cached, nil
		}
	}

	// 3. 检索相关文本块
	chunks, err := s.retriever.Retrieve(ctx, req.UserID, req.DocumentID, req.Question)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		answer := &model.ChatAnswer{Answer: NoContextAnswer, Sources: []model.ChatSource{}}
		if err := s.persist(ctx, req, answer); err != nil {
			return nil, err
		}
		return answer, nil
	}

	// 4. 生成答案
	text, err := s.generator.GenerateAnswer(ctx, req.Question, doc.Title, chunks)
	if err != nil {
		return nil, err
	}

	answer := &model.ChatAnswer{
		Answer:     text,
		Sources:    buildSources(chunks),
		Confidence: s.generator.Confidence(chunks),
	}

	// 5. 写缓存并持久化历史
	if s.cache != nil {
		_ = s.cache.Set(ctx, req.UserID, req.DocumentID, req.Question, answer)
	}
	if err := s.persist(ctx, req, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// StreamEvent 流式问答的一个事件。
// Delta 非空表示增量文本；Done 为真表示结束，附带完整结果。
type StreamEvent struct {
	Delta      string
	Done       bool
	Answer     string
	Sources    []model.ChatSource
	Confidence float64
	Err        error
}

// StreamQuery 流式执行问答。验证失败同步返回错误；
// 此后所有结果（包括生成中途的失败）都通过事件通道传递。
func (s *QueryService) StreamQuery(ctx context.Context, req *QueryRequest) (<-chan StreamEvent, error) {
	if err := s.validateQuestion(req); err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 16)

	// 护栏先于文档校验，按单事件流返回
	if IsOutOfScope(req.Question) {
		answer := &model.ChatAnswer{Answer: OutOfScopeAnswer, Sources: []model.ChatSource{}}
		_ = s.persist(ctx, req, answer)
		events <- StreamEvent{Delta: answer.Answer}
		events <- StreamEvent{Done: true, Answer: answer.Answer, Sources: answer.Sources}
		close(events)
		return events, nil
	}

	doc, err := s.loadReadyDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks, err := s.retriever.Retrieve(ctx, req.UserID, req.DocumentID, req.Question)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		answer := &model.ChatAnswer{Answer: NoContextAnswer, Sources: []model.ChatSource{}}
		_ = s.persist(ctx, req, answer)
		events <- StreamEvent{Delta: answer.Answer}
		events <- StreamEvent{Done: true, Answer: answer.Answer, Sources: answer.Sources}
		close(events)
		return events, nil
	}

	deltas, err := s.generator.StreamAnswer(ctx, req.Question, doc.Title, chunks)
	if err != nil {
		return nil, err
	}

	task := func() {
		defer close(events)

		var builder strings.Builder
		for delta := range deltas {
			if delta.Err != nil {
				events <- StreamEvent{Err: errors.ErrGeneration.WithCause(delta.Err)}
				return
			}
			builder.WriteString(delta.Text)
			select {
			case events <- StreamEvent{Delta: delta.Text}:
			case <-ctx.Done():
				return
			}
		}

		answer := &model.ChatAnswer{
			Answer:     strings.TrimSpace(builder.String()),
			Sources:    buildSources(chunks),
			Confidence: s.generator.Confidence(chunks),
		}
		if err := s.persist(ctx, req, answer); err != nil {
			logger.Warnw("failed to persist streamed answer",
				"document_id", req.DocumentID,
				"error", err.Error(),
			)
		}
		events <- StreamEvent{
			Done:       true,
			Answer:     answer.Answer,
			Sources:    answer.Sources,
			Confidence: answer.Confidence,
		}
	}

	if err := pool.Submit(task); err != nil {
		go task()
	}
	return events, nil
}

// validateQuestion 规范化并校验问题文本。
func (s *QueryService) validateQuestion(req *QueryRequest) error {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return errors.ErrValidation.WithMessage("question is required")
	}
	if len([]rune(question)) > maxQuestionChars {
		return errors.ErrValidation.WithMessagef("question exceeds %d characters", maxQuestionChars)
	}
	req.Question = question
	return nil
}

// loadReadyDocument 校验归属并返回就绪的文档。
func (s *QueryService) loadReadyDocument(ctx context.Context, req *QueryRequest) (*model.Document, error) {
	doc, err := s.docs.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != req.UserID {
		return nil, errors.ErrDocumentForbidden
	}
	if doc.Status != model.StatusReady {
		return nil, errors.ErrDocumentNotReady.WithMessagef("document status is %q", doc.Status)
	}
	return doc, nil
}

// persist 把一轮问答写入聊天历史。
func (s *QueryService) persist(ctx context.Context, req *QueryRequest, answer *model.ChatAnswer) error {
	now := time.Now()
	messages := []*model.ChatMessage{
		{Role: model.ChatRoleUser, Content: req.Question, Timestamp: now},
		{Role: model.ChatRoleAssistant, Content: answer.Answer, Sources: answer.Sources, Timestamp: now},
	}
	_, err := s.chats.AppendMessages(ctx, req.DocumentID, req.UserID, req.ChatID, messages)
	return err
}

// buildSources 把检索命中转换为回答来源。
func buildSources(chunks []*RetrievedChunk) []model.ChatSource {
	sources := make([]model.ChatSource, len(chunks))
	for i, chunk := range chunks {
		snippet := chunk.Preview
		if snippet == "" {
			snippet = textutil.TruncateString(chunk.Text, sourceSnippetLen)
		}
		sources[i] = model.ChatSource{
			PageNumber: chunk.PageNumber,
			Snippet:    snippet,
		}
	}
	return sources
}

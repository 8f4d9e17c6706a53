package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// EmbedderConfig 向量化配置。
type EmbedderConfig struct {
	// Dimension 期望的向量维度。
	Dimension int
	// BatchSize 单次请求的最大文本数。
	BatchSize int
	// Retry 重试配置，nil 时使用默认值。
	Retry *resilience.RetryConfig
}

// NewEmbedderConfig 创建默认向量化配置。
func NewEmbedderConfig() *EmbedderConfig {
	return &EmbedderConfig{
		Dimension: 768,
		BatchSize: 100,
		Retry:     embedRetryConfig(),
	}
}

// embedRetryConfig 构造嵌入请求的重试配置。
// 维度或数量不匹配是确定性错误，不重试；限流和网络错误重试。
func embedRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableErrors = func(err error) bool {
		if errors.IsCode(err, errors.ErrValidation.Code) {
			return false
		}
		if isRateLimitError(err) {
			return true
		}
		return resilience.IsRetryableError(err)
	}
	return cfg
}

// isRateLimitError 判断是否为上游限流错误。
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// Embedder 负责将文本块批量向量化。
// 全部批次成功才算成功，任一批次失败即整体失败，避免半成品索引。
type Embedder struct {
	provider llm.EmbeddingProvider
	config   *EmbedderConfig
}

// NewEmbedder 创建向量化器实例。
func NewEmbedder(provider llm.EmbeddingProvider, config *EmbedderConfig) *Embedder {
	if config == nil {
		config = NewEmbedderConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Retry == nil {
		config.Retry = embedRetryConfig()
	}
	return &Embedder{provider: provider, config: config}
}

// EmbedTexts 为所有文本生成向量，返回顺序与输入一致。
// 批次并行执行，每个批次独立重试。
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}

	batches := make([]batch, 0, (len(texts)+e.config.BatchSize-1)/e.config.BatchSize)
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	results := make([][]float32, len(texts))
	batchErrs := make([]error, len(batches))
	var wg sync.WaitGroup

	for i, b := range batches {
		wg.Add(1)
		i, b := i, b
		task := func() {
			defer wg.Done()
			vectors, err := e.embedBatch(ctx, b.texts)
			if err != nil {
				batchErrs[i] = err
				return
			}
			copy(results[b.start:], vectors)
		}

		// 提交到工作池，池不可用时降级为直接创建 goroutine
		if err := pool.Submit(task); err != nil {
			go task()
		}
	}
	wg.Wait()

	for _, err := range batchErrs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// embedBatch 带重试地向量化单个批次，并校验返回结果。
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	err := resilience.RetryWithBackoff(ctx, e.config.Retry, func() error {
		result, err := e.provider.Embed(ctx, texts)
		if err != nil {
			if isRateLimitError(err) {
				logger.Warnw("embedding provider rate limited", "batch_size", len(texts))
			}
			return err
		}

		if len(result) != len(texts) {
			return errors.ErrValidation.WithMessagef(
				"embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(result))
		}
		for i, vec := range result {
			if len(vec) != e.config.Dimension {
				return errors.ErrValidation.WithMessagef(
					"embedding %d has dimension %d, expected %d", i, len(vec), e.config.Dimension)
			}
		}

		vectors = result
		return nil
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrValidation.Code) {
			return nil, err
		}
		if isRateLimitError(err) {
			return nil, errors.ErrRateLimited.WithCause(err)
		}
		return nil, errors.ErrEmbedding.WithCause(err)
	}

	return vectors, nil
}

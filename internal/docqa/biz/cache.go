package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/model"
	jsonutil "github.com/kart-io/docqa/pkg/utils/json"
)

// QueryCacheConfig 问答缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 缓存问答结果。Redis 不可用时静默退化为直连流程。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建问答缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "docqa:query:",
		}
	}
	return &QueryCache{redis: redis, config: config}
}

// cacheKey 基于用户、文档和问题生成缓存键。
// 同一问题对不同文档或不同用户互不串扰。
func (c *QueryCache) cacheKey(userID, documentID, question string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", userID, documentID, question)))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 从缓存获取问答结果，未命中返回 nil。
func (c *QueryCache) Get(ctx context.Context, userID, documentID, question string) (*model.ChatAnswer, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, nil
	}

	key := c.cacheKey(userID, documentID, question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("query cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var answer model.ChatAnswer
	if err := jsonutil.Unmarshal(data, &answer); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("query cache hit", "key", key, "answer_length", len(answer.Answer))
	return &answer, nil
}

// Set 将问答结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, userID, documentID, question string, answer *model.ChatAnswer) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	data, err := jsonutil.Marshal(answer)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return err
	}

	key := c.cacheKey(userID, documentID, question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

package docqa

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/component/blob"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/component/mongodb"
	"github.com/kart-io/docqa/pkg/component/storage"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/deepseek"
	_ "github.com/kart-io/docqa/pkg/llm/gemini"
	_ "github.com/kart-io/docqa/pkg/llm/huggingface"
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	_ "github.com/kart-io/docqa/pkg/llm/openai"
	_ "github.com/kart-io/docqa/pkg/llm/siliconflow"
)

// Run runs the document QA service with the given options.
func Run(ctx context.Context, opts *Options) error {
	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document QA service...")

	// 2. 初始化全局工作池
	if err := pool.InitGlobal(); err != nil {
		return fmt.Errorf("failed to initialize worker pools: %w", err)
	}
	defer func() { _ = pool.CloseGlobal() }()

	// 3. 初始化存储组件
	storageMgr := storage.NewManager()
	defer func() { _ = storageMgr.CloseAll() }()

	mongoClient, err := mongodb.NewWithContext(ctx, opts.Mongo.ToClientOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	storageMgr.MustRegister("mongodb", mongoClient)
	logger.Info("MongoDB client initialized")

	milvusClient, err := milvus.New(opts.Milvus)
	if err != nil {
		return fmt.Errorf("failed to initialize milvus: %w", err)
	}
	storageMgr.MustRegister("milvus", milvusClient)
	logger.Info("Milvus client initialized")

	blobStore, err := blob.New(opts.Blob)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	storageMgr.MustRegister("blob", blobStore)
	logger.Infow("Blob store initialized", "base_dir", opts.Blob.BaseDir)

	// 4. 初始化 Store 层
	mongoStore := store.NewMongoStore(mongoClient)
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure mongodb indexes: %w", err)
	}
	vectorStore := store.NewMilvusVectorStore(milvusClient, opts.QA.Collection, opts.QA.EmbeddingDim)
	logger.Info("Store layer initialized")

	// 5. 初始化缓存
	redisClient := newRedisClient(ctx, opts)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	queryCache := newQueryCache(redisClient, opts)

	// 6. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Embedding.Provider,
		"model", opts.Embedding.Model,
	)
	if redisClient != nil {
		// 相同文本的向量结果稳定，缓存可以显著减少重复摄取的供应商调用
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, nil)
	}

	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", opts.Chat.Provider,
		"model", opts.Chat.Model,
	)

	// 检索和生成路径没有自己的重试，用韧性包装器兜底；
	// 摄取路径的批量向量化自带重试语义，使用原始供应商
	resilientEmbed := resilience.NewResilientEmbeddingProvider(embedProvider, nil, nil)
	resilientChat := resilience.NewResilientChatProvider(chatProvider, nil, nil)

	// 7. 初始化 Biz 层
	embedderConfig := biz.NewEmbedderConfig()
	embedderConfig.Dimension = opts.QA.EmbeddingDim
	embedderConfig.BatchSize = opts.QA.EmbedBatchSize

	ingestor := biz.NewIngestor(
		mongoStore,
		mongoStore,
		blobStore,
		biz.NewExtractor(),
		biz.NewChunker(&biz.ChunkerConfig{
			ChunkSize:    opts.QA.ChunkSize,
			ChunkOverlap: opts.QA.ChunkOverlap,
		}),
		biz.NewEmbedder(embedProvider, embedderConfig),
		biz.NewIndexer(vectorStore, opts.QA.EmbeddingDim),
	)

	documentService := biz.NewDocumentService(
		mongoStore, mongoStore, mongoStore, vectorStore, blobStore, ingestor)

	retriever := biz.NewRetriever(vectorStore, mongoStore, resilientEmbed, &biz.RetrieverConfig{
		TopK:                opts.QA.TopK,
		SimilarityThreshold: float32(opts.QA.SimilarityThreshold),
	})
	generator := biz.NewGenerator(resilientChat, &biz.GeneratorConfig{
		SimilarityThreshold: float32(opts.QA.SimilarityThreshold),
	})
	queryService := biz.NewQueryService(mongoStore, mongoStore, retriever, generator, queryCache)
	historyService := biz.NewHistoryService(mongoStore)
	logger.Info("Biz layer initialized")

	// 8. 初始化 Handler 层并注册路由
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(
		engine,
		handler.NewDocumentHandler(documentService),
		handler.NewChatHandler(queryService, historyService),
		storageMgr,
	)

	// 9. 启动 HTTP 服务器
	srv := &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", opts.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down document QA service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("Document QA service stopped")
	return nil
}

// newRedisClient 按配置连接 Redis，连接失败时降级为 nil，缓存随之关闭。
func newRedisClient(ctx context.Context, opts *Options) *goredis.Client {
	if !opts.Cache.Enabled {
		logger.Info("Cache is disabled")
		return nil
	}
	redisOpts := opts.Cache.Redis
	if redisOpts == nil {
		logger.Warn("Cache is enabled but no Redis configuration provided")
		return nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisOpts.Host, redisOpts.Port),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil
	}

	logger.Infow("Redis cache initialized", "host", redisOpts.Host, "port", redisOpts.Port)
	return redisClient
}

// newQueryCache 基于共享 Redis 客户端构建查询缓存。
func newQueryCache(redisClient *goredis.Client, opts *Options) *biz.QueryCache {
	if redisClient == nil {
		return nil
	}
	return biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       opts.Cache.TTL,
		KeyPrefix: opts.Cache.KeyPrefix,
	})
}

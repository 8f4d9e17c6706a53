// Package docqa provides the document QA service application.
package docqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
	blobopts "github.com/kart-io/docqa/pkg/options/blob"
	cacheopts "github.com/kart-io/docqa/pkg/options/cache"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	mongoopts "github.com/kart-io/docqa/pkg/options/mongodb"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
)

// Options contains all document QA service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Mongo contains MongoDB configuration.
	Mongo *mongoopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Blob contains local blob store configuration.
	Blob *blobopts.Options `json:"blob" mapstructure:"blob"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// QA contains QA pipeline configuration.
	QA *QAOptions `json:"qa" mapstructure:"qa"`

	// Cache contains query cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// QAOptions QA 流水线配置。
type QAOptions struct {
	// Collection Milvus 集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// ChunkSize 文本块最大字符数。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻块重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 检索返回的候选数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SimilarityThreshold 相关性阈值。
	SimilarityThreshold float64 `json:"similarity-threshold" mapstructure:"similarity-threshold"`

	// EmbeddingDim 向量维度。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// EmbedBatchSize 单次向量化请求的最大文本数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`
}

// NewQAOptions 创建默认 QA 配置。
func NewQAOptions() *QAOptions {
	return &QAOptions{
		Collection:          "docqa_chunks",
		ChunkSize:           1000,
		ChunkOverlap:        200,
		TopK:                3,
		SimilarityThreshold: 0.7,
		EmbeddingDim:        768,
		EmbedBatchSize:      100,
	}
}

// AddFlags adds QA pipeline flags to the specified FlagSet.
func (o *QAOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"qa.collection", o.Collection, "Milvus collection for chunk vectors.")
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"qa.chunk-size", o.ChunkSize, "Maximum characters per text chunk.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"qa.chunk-overlap", o.ChunkOverlap, "Characters of overlap between adjacent chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"qa.top-k", o.TopK, "Number of candidates to retrieve.")
	fs.Float64Var(&o.SimilarityThreshold, options.Join(prefixes...)+"qa.similarity-threshold", o.SimilarityThreshold, "Minimum similarity score for a retrieval hit.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"qa.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.EmbedBatchSize, options.Join(prefixes...)+"qa.embed-batch-size", o.EmbedBatchSize, "Maximum texts per embedding request.")
}

// Validate validates the QA options.
func (o *QAOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("qa collection is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, chunk size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity threshold must be in [0, 1]"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embed batch size must be positive"))
	}
	return errs
}

var _ options.IOptions = (*QAOptions)(nil)

// NewOptions 创建带默认值的服务配置。
func NewOptions() *Options {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8085"

	mongoOpts := mongoopts.NewOptions()
	mongoOpts.Database = "docqa"

	embedOpts := llmopts.NewEmbeddingOptions()
	chatOpts := llmopts.NewChatOptions()

	return &Options{
		HTTP:            httpOpts,
		Log:             logopts.NewOptions(),
		Mongo:           mongoOpts,
		Milvus:          milvusopts.NewOptions(),
		Blob:            blobopts.NewOptions(),
		Embedding:       embedOpts,
		Chat:            chatOpts,
		QA:              NewQAOptions(),
		Cache:           cacheopts.NewOptions(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// AddFlags 注册全部命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Mongo.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Blob.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.QA.AddFlags(fs)
	o.Cache.AddFlags(fs)

	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
}

// Complete completes all the required options.
func (o *Options) Complete() error {
	if err := o.Mongo.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := o.Embedding.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.Chat.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.Cache.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options are valid.
func (o *Options) Validate() error {
	var errs []error

	errs = append(errs, o.HTTP.Validate()...)
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Mongo.Validate()...)
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Blob.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.QA.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	if len(errs) == 0 {
		return nil
	}

	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return fmt.Errorf("invalid options: %s", msg)
}

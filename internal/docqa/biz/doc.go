// Package biz 提供文档问答服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Extractor: 负责文本提取（PDF 按页解析、纯文本）
//   - Chunker: 负责文本分块（递归分割、全局块序号）
//   - Embedder: 负责向量化（批量、并行、重试）
//   - Indexer: 负责向量索引写入
//   - Ingestor: 组合以上组件执行摄取流水线，支持协作式取消
//   - Retriever / Generator: 负责检索增强问答
//   - HistoryService: 负责聊天历史的追加与翻页
package biz

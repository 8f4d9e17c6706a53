// Package store 提供文档问答服务的数据存储层。
//
// 该包定义了文档元数据、文本块、聊天历史和向量索引的接口抽象，
// 并提供 MongoDB 与 Milvus 的具体实现。
package store

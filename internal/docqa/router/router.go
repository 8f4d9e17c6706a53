// Package router provides document QA service routing.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/pkg/component/storage"
)

// healthCheckTimeout 单次健康检查的超时上限。
const healthCheckTimeout = 5 * time.Second

// Register registers the document QA service routes.
func Register(
	engine *gin.Engine,
	docHandler *handler.DocumentHandler,
	chatHandler *handler.ChatHandler,
	storageMgr *storage.Manager,
) {
	logger.Info("Registering docqa routes...")

	engine.GET("/healthz", healthz(storageMgr))

	v1 := engine.Group("/api/v1", handler.RequireUser())
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", docHandler.Upload)
			documents.POST("/text", docHandler.UploadText)
			documents.GET("", docHandler.List)
			documents.GET("/:id", docHandler.Get)
			documents.DELETE("/:id", docHandler.Delete)
			documents.POST("/:id/cancel", docHandler.Cancel)

			documents.POST("/:id/chat", chatHandler.Chat)
			documents.POST("/:id/chat/stream", chatHandler.ChatStream)
			documents.GET("/:id/chat/history", chatHandler.History)
			documents.GET("/:id/chat/history/older", chatHandler.HistoryOlder)
		}
	}

	logger.Info("HTTP routes registered")
}

// healthz 汇总所有存储后端的健康状态。
// 任一后端不健康时返回 503。
func healthz(mgr *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		statuses := mgr.HealthCheckAll(ctx)

		healthy := true
		backends := make(map[string]any, len(statuses))
		for name, status := range statuses {
			entry := map[string]any{
				"healthy":    status.Healthy,
				"latency_ms": status.Latency.Milliseconds(),
			}
			if status.Error != nil {
				entry["error"] = status.Error.Error()
				healthy = false
			}
			backends[name] = entry
		}

		code := http.StatusOK
		status := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			status = "degraded"
		}
		c.JSON(code, gin.H{"status": status, "backends": backends})
	}
}

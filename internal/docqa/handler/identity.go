package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/pkg/errors"
)

// userIDKey 请求上下文中的用户标识键。
const userIDKey = "docqa/user-id"

// RequireUser 从 X-User-ID 请求头解析用户标识。
// 网关完成认证后注入该头，缺失时拒绝请求。
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			httputils.WriteResponse(c, errors.ErrUnauthorized.WithMessage("missing X-User-ID header"), nil)
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID 读取当前请求的用户标识。
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

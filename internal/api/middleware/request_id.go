package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求追踪 ID 的传递头
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestIDMaxLen 限制外部传入的 Request-ID 最大长度，防止日志注入
const requestIDMaxLen = 64

// RequestID 请求追踪 ID 中间件：沿用调用方传入的 ID，缺失或超长时生成 UUID。
// ID 注入 gin.Context 供日志中间件读取，并回写到响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Header(RequestIDHeader, rid)

		c.Next()
	}
}

// RequestIDFrom 读取当前请求的追踪 ID，中间件未启用时返回空串
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

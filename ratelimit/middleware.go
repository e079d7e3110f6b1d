package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinMiddlewareOptions Gin 限流中间件选项
type GinMiddlewareOptions struct {
	// KeyFunc 提取限流键，默认使用客户端 IP；返回空字符串时放行
	KeyFunc func(*gin.Context) string

	// LimitFunc 返回限流规则，规则无效时放行
	LimitFunc func(*gin.Context) Limit

	// WithHeaders 是否写入 X-RateLimit-* 响应头
	WithHeaders bool
}

// GinMiddleware 创建 Gin 限流中间件，超限时返回 429
//
// 限流器出错时放行。
func GinMiddleware(limiter Limiter, opts *GinMiddlewareOptions) gin.HandlerFunc {
	o := GinMiddlewareOptions{}
	if opts != nil {
		o = *opts
	}
	if o.KeyFunc == nil {
		o.KeyFunc = func(c *gin.Context) string {
			return c.ClientIP()
		}
	}

	return func(c *gin.Context) {
		if limiter == nil || o.LimitFunc == nil {
			c.Next()
			return
		}

		key := o.KeyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		limit := o.LimitFunc(c)
		if limit.Rate <= 0 || limit.Burst <= 0 {
			c.Next()
			return
		}
		if o.WithHeaders {
			c.Header("X-RateLimit-Limit", formatLimit(limit))
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			if o.WithHeaders {
				c.Header("X-RateLimit-Remaining", "0")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

func formatLimit(limit Limit) string {
	return fmt.Sprintf("rate=%.2f, burst=%d", limit.Rate, limit.Burst)
}

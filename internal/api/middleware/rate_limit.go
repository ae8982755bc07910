package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/pkg/redis"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// rdb 为 nil 时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), rateLimitKey(c), limit, window)
		if err != nil {
			// Redis 出错时降级放行
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimitKey 登录用户按用户计数，访客按 IP 计数
func rateLimitKey(c *gin.Context) string {
	if v, ok := c.Get(ContextIdentity); ok {
		if identity, ok := v.(plugin.Identity); ok && !identity.IsGuest() {
			return fmt.Sprintf("rate_limit:user:%d:%s", identity.UserID, c.FullPath())
		}
	}
	return fmt.Sprintf("rate_limit:ip:%s:%s", c.ClientIP(), c.FullPath())
}

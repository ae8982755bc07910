package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 声明了 Content-Length 的请求超限直接 413；分块传输的请求由 MaxBytesReader 截断，
// 之后的 JSON 绑定会失败并按参数错误返回
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}

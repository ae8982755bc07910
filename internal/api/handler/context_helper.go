package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/api/middleware"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	return id, true
}

// GetIdentity 提取当前调用者身份，未经过身份中间件时视为访客
func GetIdentity(c *gin.Context) plugin.Identity {
	if v, ok := c.Get(middleware.ContextIdentity); ok {
		if identity, ok := v.(plugin.Identity); ok {
			return identity
		}
	}
	return plugin.GuestIdentity()
}

// MustGetIDParam 解析路径中的正整数 ID，失败时写入 400 响应
func MustGetIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, name+" 必须为正整数")
		return 0, false
	}
	return id, true
}

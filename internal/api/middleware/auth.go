package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/pkg/jwt"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextRole     = "role"
	ContextIdentity = "identity"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证宿主签发的 Access Token，访客 Token 不予通过
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		claims, ok := parseBearer(c, jwtMgr, authHeader)
		if !ok {
			return
		}
		if claims.IsGuest() {
			response.Unauthorized(c, 10002, "请先登录")
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// Identity 可选认证中间件
// 未携带 Token 时以访客身份继续；携带了无效 Token 则拒绝
func Identity(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ContextIdentity, plugin.GuestIdentity())
			c.Next()
			return
		}

		claims, ok := parseBearer(c, jwtMgr, authHeader)
		if !ok {
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		userRole := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}

func parseBearer(c *gin.Context, jwtMgr *jwt.Manager, authHeader string) (*jwt.Claims, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Unauthorized(c, 10002, "认证头格式无效")
		c.Abort()
		return nil, false
	}

	claims, err := jwtMgr.ParseToken(parts[1])
	if err != nil {
		response.Unauthorized(c, 10002, "Token 无效或已过期")
		c.Abort()
		return nil, false
	}

	if claims.TokenType != "access" {
		response.Unauthorized(c, 10002, "Token 类型无效")
		c.Abort()
		return nil, false
	}
	return claims, true
}

// setClaims 将身份信息注入上下文
func setClaims(c *gin.Context, claims *jwt.Claims) {
	identity := plugin.Identity{UserID: claims.UserID, Guest: claims.IsGuest()}
	c.Set(ContextIdentity, identity)
	c.Set(ContextRole, claims.Role)
	if !identity.IsGuest() {
		c.Set(ContextUserID, claims.UserID)
	}
}

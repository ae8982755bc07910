package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/api/handler"
	"github.com/donyariesta/prerequisite/internal/api/middleware"
	"github.com/donyariesta/prerequisite/pkg/jwt"
	"github.com/donyariesta/prerequisite/pkg/redis"
)

// maxBodyBytes 请求体上限，选课与实例配置请求都很小
const maxBodyBytes = 1 << 20

// adminRoles 可管理课程选课方式的宿主角色
var adminRoles = []string{"admin", "manager", "editingteacher"}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		v1.GET("/enrol-plugins", h.Enrol.ListPlugins)

		// 学习者选课（访客可查询资格，选课时由 Service 拒绝）
		enrol := v1.Group("/enrol/:plugin/instances/:id")
		enrol.Use(middleware.Identity(jwtMgr))
		{
			enrol.GET("/eligibility", h.Enrol.CheckEligibility)
			enrol.POST("/enrol",
				middleware.RateLimit(rdb, cfg.Enrol.SelfEnrolRateLimit, cfg.Enrol.SelfEnrolWindow),
				h.Enrol.SelfEnrol,
			)
		}

		me := v1.Group("/me")
		me.Use(middleware.JWTAuth(jwtMgr))
		{
			me.GET("/enrolments/:instance_id/calendar.ics", h.Enrol.MyEnrolmentCalendar)
		}

		// 实例管理
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtMgr), middleware.RoleAuth(adminRoles...))
		{
			courses := admin.Group("/courses/:course_id")
			{
				courses.GET("/prerequisite-instances", h.Instance.ListInstances)
				courses.POST("/prerequisite-instances", h.Instance.CreateInstance)
				courses.GET("/prerequisite-candidates", h.Instance.CandidateCourses)
			}

			instances := admin.Group("/prerequisite-instances/:id")
			{
				instances.GET("", h.Instance.GetInstance)
				instances.PUT("", h.Instance.UpdateInstance)
				instances.DELETE("", h.Instance.DeleteInstance)
				instances.PUT("/status", h.Instance.UpdateStatus)
				instances.GET("/enrolments", h.Instance.ListEnrolments)
				instances.POST("/enrolments", h.Instance.EnrolUser)
				instances.DELETE("/enrolments/:user_id", h.Instance.Unenrol)
				instances.GET("/export", h.Instance.ExportInstance)
			}
		}
	}

	return r
}

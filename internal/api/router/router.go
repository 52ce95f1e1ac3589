package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"praise/backend/config"
	"praise/backend/internal/api/handler"
	"praise/backend/internal/api/middleware"
	"praise/backend/pkg/jwt"
	"praise/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证，登录注册额外限流）
		auth := v1.Group("/auth")
		{
			loginLimit := middleware.RateLimit(rdb, 10, time.Minute)
			auth.POST("/login", loginLimit, h.Auth.Login)
			auth.POST("/register", loginLimit, h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("", middleware.RoleAuth("admin"), h.User.ListUsers)
				users.GET("/quantifiers", middleware.RoleAuth("admin"), h.User.ListQuantifiers)
				users.GET("/:id", middleware.RoleAuth("admin"), h.User.GetUser)
				users.POST("", middleware.RoleAuth("admin"), h.User.CreateUser)
				users.PUT("/:id", middleware.RoleAuth("admin"), h.User.UpdateUser)
				users.DELETE("/:id", middleware.RoleAuth("admin"), h.User.DeleteUser)
			}

			// 周期模块
			periods := authorized.Group("/periods")
			{
				periods.GET("", h.Period.ListPeriods)
				periods.GET("/:id", h.Period.GetPeriod)
				periods.POST("", middleware.RoleAuth("admin"), h.Period.CreatePeriod)
				periods.PUT("/:id", middleware.RoleAuth("admin"), h.Period.UpdatePeriod)
				periods.POST("/:id/start-quantification", middleware.RoleAuth("admin"), h.Period.StartQuantification)
				periods.POST("/:id/close", middleware.RoleAuth("admin"), h.Period.ClosePeriod)
				periods.GET("/:id/verify-pool", middleware.RoleAuth("admin"), h.Period.VerifyPool)
				periods.POST("/:id/replace-quantifier", middleware.RoleAuth("admin"), h.Period.ReplaceQuantifier)

				periods.GET("/:id/praises", h.Praise.ListPeriodPraises)
				periods.GET("/:id/scores", h.Praise.GetReceiverScores)
				periods.GET("/:id/tasks", middleware.RoleAuth("admin", "quantifier"), h.Quantification.ListMyTasks)
				periods.GET("/:id/settings", h.Settings.GetPeriodSettings)
				periods.PUT("/:id/settings", middleware.RoleAuth("admin"), h.Settings.UpdatePeriodSettings)
				periods.GET("/:id/events", middleware.RoleAuth("admin"), h.Event.ListPeriodEvents)
			}

			// 赞扬模块
			praises := authorized.Group("/praises")
			{
				praises.POST("", h.Praise.CreatePraise)
				praises.GET("/received", h.Praise.ListMyPraises)
				praises.GET("/:id", h.Praise.GetPraise)
				praises.PUT("/:id/quantify", middleware.RoleAuth("admin", "quantifier"), h.Quantification.Quantify)
			}

			// 全局量化设置
			settings := authorized.Group("/settings")
			{
				settings.GET("", h.Settings.GetGlobalSettings)
				settings.PUT("", middleware.RoleAuth("admin"), h.Settings.UpdateGlobalSettings)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/periods/:id", middleware.RoleAuth("admin"), h.Export.ExportPeriod)
				export.GET("/calendar", h.Export.ExportCalendar)
			}
		}
	}

	return r
}

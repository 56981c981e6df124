package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/api/handler"
	"github.com/qs3c/driveunity_server/internal/api/middleware"
	"github.com/qs3c/driveunity_server/internal/pkg/ratelimit"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
	"github.com/qs3c/driveunity_server/internal/service"
)

// Limiters 各类接口使用的限流器
type Limiters struct {
	Auth      ratelimit.Limiter
	API       ratelimit.Limiter
	Read      ratelimit.Limiter
	Expensive ratelimit.Limiter
}

type Router struct {
	authHandler         *handler.AuthHandler
	driveHandler        *handler.DriveHandler
	fileHandler         *handler.FileHandler
	subscriptionHandler *handler.SubscriptionHandler
	webhookHandler      *handler.WebhookHandler
	websocketHandler    *handler.WebSocketHandler
	sessions            *session.Manager
	quotaService        *service.QuotaService
	limiters            Limiters
	cfg                 *config.Config
	logger              *zap.Logger
}

func NewRouter(
	authHandler *handler.AuthHandler,
	driveHandler *handler.DriveHandler,
	fileHandler *handler.FileHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	webhookHandler *handler.WebhookHandler,
	websocketHandler *handler.WebSocketHandler,
	sessions *session.Manager,
	quotaService *service.QuotaService,
	limiters Limiters,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		authHandler:         authHandler,
		driveHandler:        driveHandler,
		fileHandler:         fileHandler,
		subscriptionHandler: subscriptionHandler,
		webhookHandler:      webhookHandler,
		websocketHandler:    websocketHandler,
		sessions:            sessions,
		quotaService:        quotaService,
		limiters:            limiters,
		cfg:                 cfg,
		logger:              logger,
	}
}

func (r *Router) limit(l ratelimit.Limiter, n int) gin.HandlerFunc {
	return middleware.RateLimit(l, n, r.logger)
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	rl := r.cfg.RateLimit

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/send-otp", r.limit(r.limiters.Auth, rl.Routes.SendOTP), r.authHandler.SendOTP)
			auth.POST("/verify-otp", r.limit(r.limiters.Auth, rl.Routes.VerifyOTP), r.authHandler.VerifyOTP)
			auth.POST("/check-email", r.limit(r.limiters.Auth, rl.Routes.CheckEmail), r.authHandler.CheckEmail)
			auth.POST("/signup", r.limit(r.limiters.Auth, rl.Auth.Limit), r.authHandler.Signup)
			auth.POST("/signin", r.limit(r.limiters.Auth, rl.Routes.Signin), r.authHandler.Signin)
			auth.GET("/session", r.authHandler.Session)
			auth.POST("/logout", r.authHandler.Logout)
			auth.GET("/logout", r.authHandler.LogoutRedirect)
		}

		// 公开接口 - 套餐与支付回调
		api.GET("/plans", r.limit(r.limiters.Read, rl.Read.Limit), r.subscriptionHandler.Plans)
		api.POST("/webhooks/paddle", r.webhookHandler.Paddle)

		// 授权回调：有会话时校验与 state 中的用户一致
		callbacks := api.Group("")
		callbacks.Use(middleware.OptionalSession(r.sessions))
		{
			callbacks.GET("/drives/:provider/callback", r.limit(r.limiters.API, rl.API.Limit), r.driveHandler.Callback)
			callbacks.GET("/oauth/:provider/callback", r.limit(r.limiters.API, rl.API.Limit), r.driveHandler.Callback)
		}

		// 需要登录的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Session(r.sessions))
		{
			authenticated.GET("/ws", r.websocketHandler.Handle)

			authenticated.GET("/subscription", r.limit(r.limiters.Read, rl.Read.Limit), r.subscriptionHandler.Get)

			drives := authenticated.Group("/drives")
			{
				drives.GET("", r.limit(r.limiters.Read, rl.Read.Limit), r.driveHandler.List)
				drives.GET("/status", r.limit(r.limiters.Read, rl.Read.Limit), r.driveHandler.Status)
				drives.GET("/dashboard", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.Dashboard)
				drives.GET("/:provider/auth",
					r.limit(r.limiters.API, rl.API.Limit),
					middleware.DriveQuotaCheck(r.quotaService),
					r.driveHandler.Auth,
				)
				drives.GET("/:provider/:id/info", r.limit(r.limiters.Expensive, rl.Expensive.Limit), r.driveHandler.Info)
				drives.POST("/:provider/:id/sync", r.limit(r.limiters.Expensive, rl.Expensive.Limit), r.driveHandler.Sync)
				drives.DELETE("/:provider/:id", r.limit(r.limiters.API, rl.API.Limit), r.driveHandler.Delete)

				// 文件元数据浏览
				drives.GET("/:provider/:id/files", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.List)
				filters := drives.Group("/:provider/:id/filters")
				{
					filters.GET("/mimetypes", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.MimeTypes)
					filters.POST("/size", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.FilterBySize)
					filters.GET("/date-range", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.DateBounds)
					filters.POST("/date-range", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.FilterByDate)
					filters.POST("/search", r.limit(r.limiters.Read, rl.Read.Limit), r.fileHandler.Search)
					filters.GET("/duplicates", r.limit(r.limiters.Expensive, rl.Expensive.Limit), r.fileHandler.Duplicates)
				}
			}
		}
	}

	return engine
}

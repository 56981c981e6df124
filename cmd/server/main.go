package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/api"
	"github.com/qs3c/driveunity_server/internal/api/handler"
	"github.com/qs3c/driveunity_server/internal/database"
	"github.com/qs3c/driveunity_server/internal/pkg/cron"
	"github.com/qs3c/driveunity_server/internal/pkg/email"
	"github.com/qs3c/driveunity_server/internal/pkg/logger"
	"github.com/qs3c/driveunity_server/internal/pkg/metasync"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/pubsub"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
	"github.com/qs3c/driveunity_server/internal/pkg/ratelimit"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
	"github.com/qs3c/driveunity_server/internal/pkg/webhook"
	"github.com/qs3c/driveunity_server/internal/pkg/ws"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/service"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}
	zl.Info("database connected")

	// 初始化 Redis（可选）
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			if cfg.RateLimit.Backend == "redis" || cfg.Sync.Mode == "queue" {
				zl.Fatal("failed to connect redis", zap.Error(err))
			}
			zl.Warn("redis unavailable, continuing without it", zap.Error(err))
			rdb = nil
		} else {
			zl.Info("redis connected")
		}
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	driveRepo := repository.NewDriveAccountRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	fileRepo := repository.NewDriveFileRepository(db)

	// OAuth
	httpClient := &http.Client{Timeout: time.Duration(cfg.OAuth.HTTPTimeoutSeconds) * time.Second}
	var onedriveOpts []oauth.OneDriveOption
	if rdb != nil {
		onedriveOpts = append(onedriveOpts, oauth.WithNonceStore(oauth.NewNonceStore(rdb)))
	}
	registry := oauth.NewRegistry(
		oauth.NewGoogleBroker(cfg.OAuth.Google, httpClient),
		oauth.NewOneDriveBroker(cfg.OAuth.OneDrive, httpClient, onedriveOpts...),
	)

	// 元数据同步
	syncClient := metasync.NewClient(&cfg.Sync)
	var notifier metasync.Notifier = metasync.NewDirectNotifier(syncClient, zl)
	if cfg.Sync.Mode == "queue" && rdb != nil {
		notifier = metasync.NewQueueNotifier(
			queue.NewQueue(rdb, cfg.Queue.SyncQueue),
			pubsub.NewPublisher(rdb, cfg.Queue.StatusChannel),
			zl,
		)
	}

	// 初始化 Service
	otpService := service.NewOTPService(otpRepo, &cfg.OTP, zl)
	authService := service.NewAuthService(userRepo, otpService, email.NewSender(&cfg.Email, cfg.Server.Mode, zl), zl)
	subscriptionService := service.NewSubscriptionService(subRepo, &cfg.Subscription, zl)
	if err := subscriptionService.EnsurePlans(); err != nil {
		zl.Fatal("failed to seed subscription plans", zap.Error(err))
	}
	quotaService := service.NewQuotaService(driveRepo, subscriptionService, cfg.Subscription.DefaultMaxDrives)
	tokenService := service.NewTokenService(driveRepo, registry, zl)
	connectionService := service.NewConnectionService(driveRepo, userRepo, registry, quotaService, tokenService, notifier, syncClient, zl)
	fileService := service.NewFileService(driveRepo, fileRepo, zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket Hub，同步状态经 Redis 订阅推送
	wsHub := ws.NewHub(zl)
	if rdb != nil {
		subscriber := pubsub.NewSubscriber(rdb, cfg.Queue.StatusChannel)
		go func() {
			err := subscriber.Subscribe(ctx, func(s *pubsub.SyncStatus) {
				if err := wsHub.SendToUser(s.UserID, &ws.Message{Type: s.Type, Data: s}); err != nil {
					zl.Warn("failed to push sync status", zap.String("user_id", s.UserID), zap.Error(err))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("sync status subscriber stopped", zap.Error(err))
			}
		}()
	}

	// 定时任务
	cronService := cron.NewService(
		otpService,
		tokenService,
		time.Duration(cfg.Cron.OTPCleanupMinutes)*time.Minute,
		time.Duration(cfg.Cron.TokenRefreshMinutes)*time.Minute,
		zl,
	)
	cronService.Start()

	// 初始化 Handler
	sessions := session.NewManager(cfg.Session)
	authHandler := handler.NewAuthHandler(authService, sessions, cfg.Session, zl)
	driveHandler := handler.NewDriveHandler(connectionService, cfg.Server.AppURL, zl)
	fileHandler := handler.NewFileHandler(fileService, zl)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, quotaService, zl)
	webhookHandler := handler.NewWebhookHandler(webhook.Policy{Secret: cfg.Webhook.Secret, Strict: cfg.Webhook.Strict}, zl)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.CORS.AllowedOrigins, zl)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		driveHandler,
		fileHandler,
		subscriptionHandler,
		webhookHandler,
		websocketHandler,
		sessions,
		quotaService,
		newLimiters(cfg.RateLimit, rdb),
		cfg,
		zl,
	)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		zl.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	zl.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	cancel()
	cronService.Stop()
	if rdb != nil {
		_ = rdb.Close()
	}
	zl.Info("server shutdown complete")
}

// newLimiters 按配置选择内存或 Redis 限流器
func newLimiters(cfg config.RateLimitConfig, rdb *redis.Client) api.Limiters {
	build := func(name string, class config.LimiterClass) ratelimit.Limiter {
		if cfg.Backend == "redis" && rdb != nil {
			return ratelimit.NewRedisLimiter(rdb, name, class.Interval())
		}
		return ratelimit.NewMemoryLimiter(class.Interval(), class.Capacity)
	}
	return api.Limiters{
		Auth:      build("auth", cfg.Auth),
		API:       build("api", cfg.API),
		Read:      build("read", cfg.Read),
		Expensive: build("expensive", cfg.Expensive),
	}
}

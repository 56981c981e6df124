package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/database"
	"github.com/qs3c/driveunity_server/internal/pkg/cron"
	"github.com/qs3c/driveunity_server/internal/pkg/logger"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Only report what would be cleaned")
	refresh = flag.Bool("refresh", false, "Refresh drive tokens that are about to expire")
	timeout = flag.Duration("timeout", 5*time.Minute, "Overall timeout")
)

func main() {
	flag.Parse()
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

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect database", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	otpService := service.NewOTPService(repository.NewOTPRepository(db), &cfg.OTP, zl)
	driveRepo := repository.NewDriveAccountRepository(db)

	zl.Info("cleanup started", zap.Bool("dry_run", *dryRun), zap.Bool("refresh", *refresh))

	// 1. 验证码
	if *dryRun {
		n, err := otpService.CountExpired(ctx)
		if err != nil {
			zl.Fatal("failed to count stale otp codes", zap.Error(err))
		}
		zl.Info("stale otp codes found", zap.Int64("count", n))
	}

	// 2. 即将过期的令牌
	stale, err := driveRepo.ListExpiringBefore(time.Now().UTC().Add(5 * time.Minute))
	if err != nil {
		zl.Fatal("failed to list expiring tokens", zap.Error(err))
	}
	zl.Info("drive tokens expiring soon", zap.Int("count", len(stale)))

	if *dryRun {
		zl.Info("dry run finished, run with -dry-run=false to apply")
		return
	}

	var tokenService *service.TokenService
	if *refresh {
		httpClient := &http.Client{Timeout: time.Duration(cfg.OAuth.HTTPTimeoutSeconds) * time.Second}
		registry := oauth.NewRegistry(
			oauth.NewGoogleBroker(cfg.OAuth.Google, httpClient),
			oauth.NewOneDriveBroker(cfg.OAuth.OneDrive, httpClient),
		)
		tokenService = service.NewTokenService(driveRepo, registry, zl)
	}

	// 复用定时任务的执行逻辑，不启动调度
	tasks := cron.NewService(otpService, tokenService, 0, 0, zl)

	deleted, err := tasks.CleanupOTPs(ctx)
	if err != nil {
		zl.Fatal("otp cleanup failed", zap.Error(err))
	}
	zl.Info("otp cleanup done", zap.Int64("deleted", deleted))

	if tokenService == nil {
		return
	}
	outcomes, err := tasks.RefreshTokens(ctx)
	if err != nil {
		zl.Error("token refresh sweep interrupted", zap.Error(err))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			zl.Warn("token refresh failed",
				zap.String("account_id", o.AccountID),
				zap.String("provider", o.Provider),
				zap.String("email", o.Email),
				zap.Bool("reconnect_required", o.Permanent),
				zap.Error(o.Err),
			)
		}
	}
}

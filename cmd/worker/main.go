package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/database"
	"github.com/qs3c/driveunity_server/internal/pkg/logger"
	"github.com/qs3c/driveunity_server/internal/pkg/metasync"
	"github.com/qs3c/driveunity_server/internal/pkg/pubsub"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/worker"
)

func main() {
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
	zl.Info("database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zl.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	zl.Info("redis connected")

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.SyncQueue)
	publisher := pubsub.NewPublisher(rdb, cfg.Queue.StatusChannel)

	processor := worker.NewProcessor(
		repository.NewDriveAccountRepository(db),
		metasync.NewClient(&cfg.Sync),
		publisher,
		jobQueue,
		zl,
	)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zl.Info("received shutdown signal")
		cancel()
	}()

	zl.Info("worker started", zap.Int("max_workers", cfg.Queue.MaxWorkers), zap.String("queue", cfg.Queue.SyncQueue))
	worker.Run(ctx, jobQueue, processor, cfg.Queue.MaxWorkers, zl)
	zl.Info("worker shutdown complete")
}

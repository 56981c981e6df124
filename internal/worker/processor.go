package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/pkg/metasync"
	"github.com/qs3c/driveunity_server/internal/pkg/pubsub"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
	"github.com/qs3c/driveunity_server/internal/repository"
)

// defaultMaxAttempts 同步失败后的最大尝试次数（含首次）
const defaultMaxAttempts = 3

// popRetryDelay 取任务出错（如 Redis 不可用）后的等待时间
var popRetryDelay = time.Second

// Processor 元数据同步任务处理器
type Processor struct {
	driveRepo   *repository.DriveAccountRepository
	client      *metasync.Client
	publisher   *pubsub.Publisher
	queue       *queue.Queue
	maxAttempts int
	logger      *zap.Logger
}

// NewProcessor q 用于失败重试，为 nil 时不重试
func NewProcessor(
	driveRepo *repository.DriveAccountRepository,
	client *metasync.Client,
	publisher *pubsub.Publisher,
	q *queue.Queue,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		driveRepo:   driveRepo,
		client:      client,
		publisher:   publisher,
		queue:       q,
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
}

// Process 处理一个同步任务。账号已断开或平台不支持时直接丢弃
func (p *Processor) Process(ctx context.Context, job *queue.SyncJob) error {
	account, err := p.driveRepo.GetByID(job.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Info("sync job dropped, account no longer connected", zap.String("account_id", job.AccountID))
			return nil
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	if !p.client.Supports(account.Provider) {
		p.publish(ctx, job, pubsub.StatusFailed, "Metadata sync is not available for this provider")
		return nil
	}

	p.publish(ctx, job, pubsub.StatusRunning, "")

	if _, err := p.client.Trigger(ctx, account.Provider, account.UserID, account.ID); err != nil {
		return p.retry(ctx, job, err)
	}

	p.publish(ctx, job, pubsub.StatusDone, "")
	p.logger.Info("metadata sync completed",
		zap.String("account_id", account.ID),
		zap.String("provider", account.Provider),
		zap.Int("attempt", job.Attempt+1),
	)
	return nil
}

// retry 未超过次数时重新入队，否则推送失败状态
func (p *Processor) retry(ctx context.Context, job *queue.SyncJob, cause error) error {
	next := *job
	next.Attempt++
	next.EnqueuedAt = time.Time{}

	if p.queue == nil || next.Attempt >= p.maxAttempts {
		p.publish(ctx, job, pubsub.StatusFailed, "")
		return fmt.Errorf("sync account %s: %w", job.AccountID, cause)
	}

	if err := p.queue.Push(ctx, &next); err != nil {
		p.publish(ctx, job, pubsub.StatusFailed, "")
		return fmt.Errorf("requeue account %s: %w", job.AccountID, err)
	}

	p.logger.Warn("metadata sync failed, requeued",
		zap.String("account_id", job.AccountID),
		zap.Int("attempt", next.Attempt),
		zap.Error(cause),
	)
	p.publish(ctx, job, pubsub.StatusQueued, "")
	return nil
}

func (p *Processor) publish(ctx context.Context, job *queue.SyncJob, status, message string) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.PublishStatus(ctx, &pubsub.SyncStatus{
		UserID:    job.UserID,
		AccountID: job.AccountID,
		Provider:  job.Provider,
		Status:    status,
		Message:   message,
	})
	if err != nil {
		p.logger.Warn("failed to publish sync status", zap.String("account_id", job.AccountID), zap.Error(err))
	}
}

// Run 启动 workers 个消费者，阻塞直到 ctx 取消
func Run(ctx context.Context, q *queue.Queue, processor *Processor, workers int, logger *zap.Logger) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					logger.Info("worker shutting down", zap.Int("worker", workerID))
					return
				}

				job, err := q.Pop(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("failed to pop job", zap.Int("worker", workerID), zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(popRetryDelay):
					}
					continue
				}
				if job == nil {
					continue
				}

				if err := processor.Process(ctx, job); err != nil {
					logger.Error("sync job failed",
						zap.Int("worker", workerID),
						zap.String("account_id", job.AccountID),
						zap.Error(err),
					)
				}
			}
		}(i)
	}
	wg.Wait()
}

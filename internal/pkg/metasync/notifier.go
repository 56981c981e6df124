package metasync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/pkg/pubsub"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
)

// Notifier 首次连接后通知同步服务，失败只记录日志，不影响连接结果
type Notifier interface {
	NotifyConnected(ctx context.Context, job *queue.SyncJob)
}

// DirectNotifier 在后台 goroutine 中直接调用同步服务
type DirectNotifier struct {
	client  *Client
	logger  *zap.Logger
	timeout time.Duration
}

func NewDirectNotifier(client *Client, logger *zap.Logger) *DirectNotifier {
	return &DirectNotifier{client: client, logger: logger, timeout: 30 * time.Second}
}

func (n *DirectNotifier) NotifyConnected(ctx context.Context, job *queue.SyncJob) {
	if !n.client.Supports(job.Provider) {
		return
	}
	// 请求结束后仍需完成通知
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		if _, err := n.client.Trigger(ctx, job.Provider, job.UserID, job.AccountID); err != nil {
			n.logger.Warn("initial metadata sync failed",
				zap.String("account_id", job.AccountID),
				zap.String("provider", job.Provider),
				zap.Error(err),
			)
			return
		}
		n.logger.Info("initial metadata sync triggered",
			zap.String("account_id", job.AccountID),
			zap.String("provider", job.Provider),
		)
	}()
}

// QueueNotifier 把任务放入 Redis 队列，由 worker 消费
type QueueNotifier struct {
	queue     *queue.Queue
	publisher *pubsub.Publisher
	logger    *zap.Logger
}

func NewQueueNotifier(q *queue.Queue, publisher *pubsub.Publisher, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{queue: q, publisher: publisher, logger: logger}
}

func (n *QueueNotifier) NotifyConnected(ctx context.Context, job *queue.SyncJob) {
	if err := n.queue.Push(ctx, job); err != nil {
		n.logger.Warn("failed to enqueue metadata sync",
			zap.String("account_id", job.AccountID),
			zap.Error(err),
		)
		return
	}
	if n.publisher == nil {
		return
	}
	err := n.publisher.PublishStatus(ctx, &pubsub.SyncStatus{
		UserID:    job.UserID,
		AccountID: job.AccountID,
		Provider:  job.Provider,
		Status:    pubsub.StatusQueued,
	})
	if err != nil {
		n.logger.Debug("failed to publish sync status", zap.Error(err))
	}
}

// NopNotifier 未配置同步服务时使用
type NopNotifier struct{}

func (NopNotifier) NotifyConnected(context.Context, *queue.SyncJob) {}

// IsNotSupported 判断是否为未配置同步接口
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

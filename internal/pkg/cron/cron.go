package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/service"
)

// Service 后台定时任务：清理失效验证码、刷新即将过期的云盘令牌
type Service struct {
	otpService      *service.OTPService
	tokenService    *service.TokenService
	otpInterval     time.Duration
	refreshInterval time.Duration
	logger          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 间隔不大于 0 的任务不启动
func NewService(
	otpService *service.OTPService,
	tokenService *service.TokenService,
	otpInterval time.Duration,
	refreshInterval time.Duration,
	logger *zap.Logger,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		otpService:      otpService,
		tokenService:    tokenService,
		otpInterval:     otpInterval,
		refreshInterval: refreshInterval,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	if s.otpService != nil && s.otpInterval > 0 {
		s.every(s.otpInterval, s.cleanupOTPs)
	}
	if s.tokenService != nil && s.refreshInterval > 0 {
		s.every(s.refreshInterval, s.refreshTokens)
	}
	s.logger.Info("cron service started",
		zap.Duration("otp_cleanup_interval", s.otpInterval),
		zap.Duration("token_refresh_interval", s.refreshInterval),
	)
}

// Stop 停止定时任务并等待正在执行的任务结束
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("cron service stopped")
}

func (s *Service) every(interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				task(s.ctx)
			}
		}
	}()
}

func (s *Service) cleanupOTPs(ctx context.Context) {
	if _, err := s.CleanupOTPs(ctx); err != nil {
		s.logger.Error("otp cleanup failed", zap.Error(err))
	}
}

func (s *Service) refreshTokens(ctx context.Context) {
	if _, err := s.RefreshTokens(ctx); err != nil {
		s.logger.Error("token refresh sweep failed", zap.Error(err))
	}
}

// CleanupOTPs 立即清理过期、已使用或尝试次数耗尽的验证码
func (s *Service) CleanupOTPs(ctx context.Context) (int64, error) {
	return s.otpService.CleanupExpired(ctx)
}

// RefreshTokens 立即刷新即将过期的令牌，返回每个账号的结果
func (s *Service) RefreshTokens(ctx context.Context) ([]service.RefreshOutcome, error) {
	outcomes, err := s.tokenService.RefreshAll(ctx)

	failed, permanent := 0, 0
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		failed++
		if o.Permanent {
			permanent++
		}
	}
	if len(outcomes) > 0 {
		s.logger.Info("token refresh sweep finished",
			zap.Int("accounts", len(outcomes)),
			zap.Int("failed", failed),
			zap.Int("reconnect_required", permanent),
		)
	}
	return outcomes, err
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/repository"
)

const (
	// tokenRefreshSkew 距过期不足该时长即刷新
	tokenRefreshSkew = 5 * time.Minute

	defaultRefreshConcurrency = 4
)

var errNoRefreshToken = errors.New("no refresh token stored, reconnect required")

// RefreshOutcome 单个账号的刷新结果
type RefreshOutcome struct {
	AccountID string
	Provider  string
	Email     string
	Err       error
	Permanent bool // 刷新令牌已失效，需要用户重新授权
}

// TokenService 管理平台访问令牌，过期前自动刷新并落库
type TokenService struct {
	driveRepo   *repository.DriveAccountRepository
	registry    *oauth.Registry
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewTokenService(driveRepo *repository.DriveAccountRepository, registry *oauth.Registry, logger *zap.Logger) *TokenService {
	return &TokenService{
		driveRepo:   driveRepo,
		registry:    registry,
		logger:      logger,
		concurrency: defaultRefreshConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NeedsRefresh 令牌在 5 分钟内过期
func (s *TokenService) NeedsRefresh(account *model.DriveAccount) bool {
	return !account.ExpiresAt.After(s.now().Add(tokenRefreshSkew))
}

// AccessToken 返回可用的访问令牌。刷新失败时返回错误但保留账号
func (s *TokenService) AccessToken(ctx context.Context, account *model.DriveAccount) (string, error) {
	if !s.NeedsRefresh(account) {
		return account.AccessToken, nil
	}
	if err := s.refresh(ctx, account); err != nil {
		return "", err
	}
	return account.AccessToken, nil
}

// AccessTokenFor 校验归属后返回访问令牌
func (s *TokenService) AccessTokenFor(ctx context.Context, userID string, provider oauth.Provider, accountID string) (*model.DriveAccount, string, error) {
	account, err := s.driveRepo.GetForUser(accountID, userID, string(provider))
	if err != nil {
		return nil, "", notFoundOr(err, "Drive account")
	}
	token, err := s.AccessToken(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// GetByEmail 按平台账号邮箱查找
func (s *TokenService) GetByEmail(email string) ([]model.DriveAccount, error) {
	return s.driveRepo.GetByEmail(email)
}

// RefreshAll 刷新所有即将过期的令牌，单个失败不影响其他账号
func (s *TokenService) RefreshAll(ctx context.Context) ([]RefreshOutcome, error) {
	accounts, err := s.driveRepo.ListExpiringBefore(s.now().Add(tokenRefreshSkew))
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		outcomes = make([]RefreshOutcome, 0, len(accounts))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range accounts {
		account := &accounts[i]
		g.Go(func() error {
			err := s.refresh(gctx, account)
			outcome := RefreshOutcome{
				AccountID: account.ID,
				Provider:  account.Provider,
				Email:     account.Email,
				Err:       err,
				Permanent: err != nil && (oauth.IsPermanent(err) || errors.Is(err, errNoRefreshToken)),
			}
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	return outcomes, ctx.Err()
}

func (s *TokenService) refresh(ctx context.Context, account *model.DriveAccount) error {
	provider, err := oauth.ParseProvider(account.Provider)
	if err != nil {
		return err
	}
	if account.RefreshToken == "" {
		return apperr.Upstream(account.Provider, errNoRefreshToken)
	}
	broker, err := s.registry.Get(provider)
	if err != nil {
		return err
	}

	tok, err := broker.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed",
			zap.String("account_id", account.ID),
			zap.String("provider", account.Provider),
			zap.Bool("reconnect_required", oauth.IsPermanent(err)),
			zap.Error(err),
		)
		return err
	}

	if err := s.driveRepo.UpdateTokens(account.ID, tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, tok.ExpiresAt, tok.Scope); err != nil {
		return err
	}

	account.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		account.RefreshToken = tok.RefreshToken
	}
	account.ExpiresIn = tok.ExpiresIn
	account.ExpiresAt = tok.ExpiresAt
	if tok.Scope != "" {
		account.Scope = tok.Scope
	}

	s.logger.Debug("token refreshed",
		zap.String("account_id", account.ID),
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return nil
}

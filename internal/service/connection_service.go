package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/metasync"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
	"github.com/qs3c/driveunity_server/internal/repository"
)

// 回调失败时重定向携带的错误码
const (
	CallbackInvalidState     = "invalid_state"
	CallbackUserNotFound     = "user_not_found"
	CallbackLimitReached     = "limit_reached"
	CallbackAlreadyConnected = "already_connected"
	CallbackConnectionFailed = "connection_failed"
	CallbackNotConfigured    = "not_configured"
)

var (
	ErrCallbackState        = apperr.New(apperr.KindValidation, CallbackInvalidState, "Invalid or expired state")
	ErrCallbackUser         = apperr.New(apperr.KindNotFound, CallbackUserNotFound, "User not found")
	ErrDriveOwnedByAnother  = apperr.New(apperr.KindConflict, CallbackAlreadyConnected, "This drive is already connected to another account")
	ErrSyncNotSupported     = apperr.New(apperr.KindValidation, "SYNC_NOT_SUPPORTED", "Metadata sync is not available for this provider")
	errMissingProviderEmail = errors.New("provider returned no email")
)

// ConnectResult 回调处理结果
type ConnectResult struct {
	Account     *model.DriveAccount
	Reconnected bool
}

// ConnectionService 云盘连接：授权、回调入库、列表与断开
type ConnectionService struct {
	driveRepo  *repository.DriveAccountRepository
	userRepo   *repository.UserRepository
	registry   *oauth.Registry
	quota      *QuotaService
	tokens     *TokenService
	notifier   metasync.Notifier
	syncClient *metasync.Client
	logger     *zap.Logger
}

func NewConnectionService(
	driveRepo *repository.DriveAccountRepository,
	userRepo *repository.UserRepository,
	registry *oauth.Registry,
	quota *QuotaService,
	tokens *TokenService,
	notifier metasync.Notifier,
	syncClient *metasync.Client,
	logger *zap.Logger,
) *ConnectionService {
	if notifier == nil {
		notifier = metasync.NopNotifier{}
	}
	return &ConnectionService{
		driveRepo:  driveRepo,
		userRepo:   userRepo,
		registry:   registry,
		quota:      quota,
		tokens:     tokens,
		notifier:   notifier,
		syncClient: syncClient,
		logger:     logger,
	}
}

// BeginConnect 生成授权地址，已达上限时直接拒绝
func (s *ConnectionService) BeginConnect(ctx context.Context, userID string, provider oauth.Provider) (string, error) {
	broker, err := s.broker(provider)
	if err != nil {
		return "", err
	}
	if _, err := s.quota.CheckDriveQuota(userID); err != nil {
		return "", err
	}

	state, err := broker.NewState(ctx, userID)
	if err != nil {
		return "", err
	}
	return broker.AuthURL(state)
}

// CompleteConnect 处理授权回调：换取令牌、获取身份、按 (provider, email) 写入账号。
// sessionUserID 非空时必须与 state 中的用户一致。
func (s *ConnectionService) CompleteConnect(ctx context.Context, provider oauth.Provider, sessionUserID, code, state string) (*ConnectResult, error) {
	broker, err := s.broker(provider)
	if err != nil {
		return nil, err
	}

	userID, err := broker.ParseState(ctx, state)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, CallbackInvalidState, ErrCallbackState.Message, err)
	}
	if sessionUserID != "" && sessionUserID != userID {
		return nil, ErrCallbackState
	}
	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallbackUser
		}
		return nil, err
	}

	tok, err := broker.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	identity, err := broker.FetchIdentity(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, apperr.Upstream(string(provider), errMissingProviderEmail)
	}

	existing, err := s.driveRepo.GetByProviderEmail(string(provider), identity.Email)
	switch {
	case err == nil:
		return s.reconnect(existing, userID, tok, identity)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	usage, err := s.quota.DriveUsage(userID)
	if err != nil {
		return nil, err
	}
	if !usage.CanAddMore {
		return nil, apperr.New(apperr.KindConflict, CallbackLimitReached,
			fmt.Sprintf("%s account limit reached. Maximum allowed: %d", provider.DisplayName(), usage.MaxDrives))
	}

	account := &model.DriveAccount{
		UserID:            userID,
		Provider:          string(provider),
		Email:             identity.Email,
		ProviderAccountID: identity.ID,
		DisplayName:       identity.Name,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		ExpiresIn:         tok.ExpiresIn,
		ExpiresAt:         tok.ExpiresAt,
		Scope:             tok.Scope,
	}
	if err := s.driveRepo.Create(account); err != nil {
		// 唯一索引冲突：并发回调已写入
		if existing, getErr := s.driveRepo.GetByProviderEmail(string(provider), identity.Email); getErr == nil {
			return s.reconnect(existing, userID, tok, identity)
		}
		return nil, err
	}

	s.logger.Info("drive connected",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
		zap.String("account_id", account.ID),
	)

	s.notifier.NotifyConnected(ctx, &queue.SyncJob{
		AccountID: account.ID,
		UserID:    userID,
		Provider:  string(provider),
		Email:     account.Email,
	})

	return &ConnectResult{Account: account, Reconnected: false}, nil
}

// reconnect 同一用户重新授权时更新令牌，其他用户的账号拒绝绑定
func (s *ConnectionService) reconnect(existing *model.DriveAccount, userID string, tok *oauth.Token, identity *oauth.Identity) (*ConnectResult, error) {
	if existing.UserID != userID {
		s.logger.Warn("drive already owned by another user",
			zap.String("provider", existing.Provider),
			zap.String("account_id", existing.ID),
		)
		return nil, ErrDriveOwnedByAnother
	}

	if err := s.driveRepo.UpdateTokens(existing.ID, tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, tok.ExpiresAt, tok.Scope); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if identity.Name != "" {
		fields["display_name"] = identity.Name
	}
	if identity.ID != "" {
		fields["provider_account_id"] = identity.ID
	}
	if len(fields) > 0 {
		if err := s.driveRepo.UpdateFields(existing.ID, fields); err != nil {
			return nil, err
		}
	}

	account, err := s.driveRepo.GetByID(existing.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("drive reconnected", zap.String("user_id", userID), zap.String("account_id", account.ID))
	return &ConnectResult{Account: account, Reconnected: true}, nil
}

// List 所有平台的云盘及套餐用量
func (s *ConnectionService) List(userID string) (*dto.DriveListResponse, error) {
	accounts, err := s.driveRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	usage, err := s.quota.DriveUsage(userID)
	if err != nil {
		return nil, err
	}

	drives := make([]dto.DriveAccountInfo, 0, len(accounts))
	for _, a := range accounts {
		drives = append(drives, dto.DriveAccountInfo{
			ID:          a.ID,
			Provider:    a.Provider,
			Email:       a.Email,
			DisplayName: a.DisplayName,
			ExpiresAt:   a.ExpiresAt,
			ConnectedAt: a.CreatedAt,
		})
	}
	return &dto.DriveListResponse{Drives: drives, Usage: usage}, nil
}

// Status 各平台是否已连接
func (s *ConnectionService) Status(userID string) (*dto.DriveStatusResponse, error) {
	google, err := s.driveRepo.CountByUserAndProvider(userID, string(oauth.ProviderGoogle))
	if err != nil {
		return nil, err
	}
	onedrive, err := s.driveRepo.CountByUserAndProvider(userID, string(oauth.ProviderOneDrive))
	if err != nil {
		return nil, err
	}
	return &dto.DriveStatusResponse{
		Google:   google > 0,
		OneDrive: onedrive > 0,
		Total:    google + onedrive,
	}, nil
}

// Disconnect 只能删除自己的云盘
func (s *ConnectionService) Disconnect(userID string, provider oauth.Provider, accountID string) error {
	account, err := s.driveRepo.GetForUser(accountID, userID, string(provider))
	if err != nil {
		return notFoundOr(err, "Drive account")
	}
	n, err := s.driveRepo.DeleteForUser(account.ID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Drive account")
	}
	s.logger.Info("drive disconnected", zap.String("user_id", userID), zap.String("account_id", accountID))
	return nil
}

// DriveInfo 实时查询云盘空间，令牌即将过期时先刷新
func (s *ConnectionService) DriveInfo(ctx context.Context, userID string, provider oauth.Provider, accountID string) (*dto.DriveInfoResponse, error) {
	broker, err := s.broker(provider)
	if err != nil {
		return nil, err
	}
	account, token, err := s.tokens.AccessTokenFor(ctx, userID, provider, accountID)
	if err != nil {
		return nil, err
	}
	info, err := broker.FetchDriveInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	return &dto.DriveInfoResponse{
		AccountID: account.ID,
		Provider:  account.Provider,
		Email:     account.Email,
		Total:     info.Total,
		Used:      info.Used,
		Remaining: info.Remaining,
	}, nil
}

// TriggerSync 同步调用元数据同步服务
func (s *ConnectionService) TriggerSync(ctx context.Context, userID string, provider oauth.Provider, accountID string) (*dto.SyncResponse, error) {
	account, err := s.driveRepo.GetForUser(accountID, userID, string(provider))
	if err != nil {
		return nil, notFoundOr(err, "Drive account")
	}
	if s.syncClient == nil || !s.syncClient.Supports(account.Provider) {
		return nil, ErrSyncNotSupported
	}

	if _, err := s.syncClient.Trigger(ctx, account.Provider, userID, account.ID); err != nil {
		return nil, apperr.Upstream("sync", err)
	}
	return &dto.SyncResponse{Status: "success", Message: "Metadata sync triggered"}, nil
}

func (s *ConnectionService) broker(provider oauth.Provider) (oauth.Broker, error) {
	broker, err := s.registry.Get(provider)
	if err != nil {
		return nil, apperr.NotFound("Provider")
	}
	return broker, nil
}

// CallbackErrorCode 回调失败时可以暴露给前端的错误码
func CallbackErrorCode(err error) string {
	e, ok := apperr.As(err)
	if !ok {
		return CallbackConnectionFailed
	}
	switch e.Code {
	case CallbackInvalidState, CallbackUserNotFound, CallbackLimitReached, CallbackAlreadyConnected:
		return e.Code
	case codeDriveLimitReached:
		return CallbackLimitReached
	}
	if e.Kind == apperr.KindConfiguration {
		return CallbackNotConfigured
	}
	return CallbackConnectionFailed
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

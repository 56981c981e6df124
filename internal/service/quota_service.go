package service

import (
	"fmt"

	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/repository"
)

const codeDriveLimitReached = "DRIVE_LIMIT_REACHED"

// QuotaService 按订阅套餐限制可连接的云盘数量（所有平台合计）
type QuotaService struct {
	driveRepo     *repository.DriveAccountRepository
	subscriptions *SubscriptionService
	defaultMax    int
}

func NewQuotaService(driveRepo *repository.DriveAccountRepository, subscriptions *SubscriptionService, defaultMax int) *QuotaService {
	if defaultMax <= 0 {
		defaultMax = 2
	}
	return &QuotaService{
		driveRepo:     driveRepo,
		subscriptions: subscriptions,
		defaultMax:    defaultMax,
	}
}

// DriveUsage 当前套餐和已连接数量
func (s *QuotaService) DriveUsage(userID string) (*dto.DriveUsage, error) {
	sub, err := s.subscriptions.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	connected, err := s.driveRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	usage := &dto.DriveUsage{
		MaxDrives: s.defaultMax,
		Connected: connected,
	}
	if sub.Plan != nil {
		usage.Tier = sub.Plan.Tier
		usage.PackageName = sub.Plan.PackageName
		usage.MaxDrives = sub.Plan.MaxConnectedDrives
	}
	usage.RemainingSlots = usage.MaxDrives - int(connected)
	if usage.RemainingSlots < 0 {
		usage.RemainingSlots = 0
	}
	usage.CanAddMore = connected < int64(usage.MaxDrives)
	return usage, nil
}

// CheckDriveQuota 已达上限时返回 DRIVE_LIMIT_REACHED
func (s *QuotaService) CheckDriveQuota(userID string) (*dto.DriveUsage, error) {
	usage, err := s.DriveUsage(userID)
	if err != nil {
		return nil, err
	}
	if !usage.CanAddMore {
		return usage, DriveLimitError(usage.MaxDrives)
	}
	return usage, nil
}

// DriveLimitError 云盘数量达到套餐上限
func DriveLimitError(max int) error {
	return apperr.New(apperr.KindConflict, codeDriveLimitReached,
		fmt.Sprintf("Drive limit reached. Maximum allowed: %d", max))
}

// IsDriveLimit 判断是否为云盘数量超限
func IsDriveLimit(err error) bool {
	e, ok := apperr.As(err)
	return ok && e.Code == codeDriveLimitReached
}

package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/repository"
)

type SubscriptionService struct {
	subRepo *repository.SubscriptionRepository
	cfg     *config.SubscriptionConfig
	logger  *zap.Logger
}

func NewSubscriptionService(subRepo *repository.SubscriptionRepository, cfg *config.SubscriptionConfig, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		subRepo: subRepo,
		cfg:     cfg,
		logger:  logger,
	}
}

// EnsurePlans 按配置写入套餐，启动时调用
func (s *SubscriptionService) EnsurePlans() error {
	seeds := s.cfg.Plans
	if len(seeds) == 0 {
		seeds = config.DefaultPlans()
	}
	for _, seed := range seeds {
		plan := &model.SubscriptionPlan{
			PackageName:        seed.PackageName,
			Tier:               seed.Tier,
			MaxConnectedDrives: seed.MaxConnectedDrives,
			MonthlyPrice:       seed.MonthlyPrice,
			YearlyPrice:        seed.YearlyPrice,
			Description:        seed.Description,
		}
		if err := s.subRepo.UpsertPlan(plan); err != nil {
			return fmt.Errorf("seed plan %s: %w", seed.PackageName, err)
		}
	}
	s.logger.Info("subscription plans ensured", zap.Int("count", len(seeds)))
	return nil
}

// GetOrCreate 用户没有订阅时自动绑定默认套餐
func (s *SubscriptionService) GetOrCreate(userID string) (*model.SubscribedUser, error) {
	sub, err := s.subRepo.GetByUser(userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	plan, err := s.defaultPlan()
	if err != nil {
		return nil, err
	}

	sub = &model.SubscribedUser{UserID: userID, PlanID: plan.ID}
	if err := s.subRepo.Create(sub); err != nil {
		// 并发请求已创建，重新读取
		if existing, getErr := s.subRepo.GetByUser(userID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	sub.Plan = plan

	s.logger.Info("default subscription created",
		zap.String("user_id", userID),
		zap.String("plan", plan.PackageName),
	)
	return sub, nil
}

// GetSubscription 当前订阅及云盘用量
func (s *SubscriptionService) GetSubscription(userID string, usage *dto.DriveUsage) (*dto.SubscriptionResponse, error) {
	sub, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{
		Plan:               toPlanInfo(sub.Plan),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		Usage:              usage,
	}, nil
}

func (s *SubscriptionService) ListPlans() ([]dto.PlanInfo, error) {
	plans, err := s.subRepo.ListPlans()
	if err != nil {
		return nil, err
	}
	out := make([]dto.PlanInfo, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanInfo(&plans[i]))
	}
	return out, nil
}

// defaultPlan 默认套餐不存在时先写入配置中的套餐
func (s *SubscriptionService) defaultPlan() (*model.SubscriptionPlan, error) {
	name := s.cfg.DefaultPlan
	if name == "" {
		name = "Free"
	}
	plan, err := s.subRepo.GetPlanByName(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.EnsurePlans(); err != nil {
			return nil, err
		}
		plan, err = s.subRepo.GetPlanByName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("default plan %s: %w", name, err)
	}
	return plan, nil
}

func toPlanInfo(p *model.SubscriptionPlan) dto.PlanInfo {
	if p == nil {
		return dto.PlanInfo{}
	}
	return dto.PlanInfo{
		ID:                 p.ID,
		PackageName:        p.PackageName,
		Tier:               p.Tier,
		MaxConnectedDrives: p.MaxConnectedDrives,
		MonthlyPrice:       p.MonthlyPrice,
		YearlyPrice:        p.YearlyPrice,
		Description:        p.Description,
	}
}

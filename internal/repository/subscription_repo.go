package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// UpsertPlan 按套餐名创建或更新套餐
func (r *SubscriptionRepository) UpsertPlan(plan *model.SubscriptionPlan) error {
	var existing model.SubscriptionPlan
	err := r.db.Where("package_name = ?", plan.PackageName).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(plan).Error
	}
	if err != nil {
		return err
	}

	plan.ID = existing.ID
	return r.db.Model(&existing).Updates(map[string]interface{}{
		"tier":                 plan.Tier,
		"max_connected_drives": plan.MaxConnectedDrives,
		"monthly_price":        plan.MonthlyPrice,
		"yearly_price":         plan.YearlyPrice,
		"description":          plan.Description,
	}).Error
}

func (r *SubscriptionRepository) GetPlanByName(name string) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.Where("package_name = ?", name).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *SubscriptionRepository) ListPlans() ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	err := r.db.Order("max_connected_drives ASC").Find(&plans).Error
	return plans, err
}

// GetByUser 查询用户订阅，同时加载套餐
func (r *SubscriptionRepository) GetByUser(userID string) (*model.SubscribedUser, error) {
	var sub model.SubscribedUser
	err := r.db.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Create(sub *model.SubscribedUser) error {
	return r.db.Create(sub).Error
}

package model

import (
	"time"
)

const (
	TierFree = "FREE"
	TierBase = "BASE"
	TierPro  = "PRO"
)

type SubscriptionPlan struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	PackageName        string    `gorm:"size:50;uniqueIndex;not null" json:"package_name"`
	Tier               string    `gorm:"size:20;not null" json:"tier"`
	MaxConnectedDrives int       `gorm:"not null" json:"max_connected_drives"`
	MonthlyPrice       float64   `gorm:"type:decimal(10,2)" json:"monthly_price"`
	YearlyPrice        float64   `gorm:"type:decimal(10,2)" json:"yearly_price"`
	Description        string    `gorm:"size:255" json:"description"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

type SubscribedUser struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	UserID             string     `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	PlanID             string     `gorm:"size:36;not null;index" json:"plan_id"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Plan *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (SubscribedUser) TableName() string {
	return "subscribed_users"
}

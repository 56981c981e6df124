package dto

import "time"

// PlanInfo 套餐信息
type PlanInfo struct {
	ID                 string  `json:"id"`
	PackageName        string  `json:"package_name"`
	Tier               string  `json:"tier"`
	MaxConnectedDrives int     `json:"max_connected_drives"`
	MonthlyPrice       float64 `json:"monthly_price"`
	YearlyPrice        float64 `json:"yearly_price"`
	Description        string  `json:"description"`
}

// SubscriptionResponse 当前订阅
type SubscriptionResponse struct {
	Plan               PlanInfo    `json:"plan"`
	CurrentPeriodStart *time.Time  `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time  `json:"current_period_end,omitempty"`
	Usage              *DriveUsage `json:"usage"`
}

// WebhookAck 支付回调确认
type WebhookAck struct {
	Status string `json:"status"`
	Event  string `json:"event"`
}

package dto

import "time"

// AuthURLResponse 授权地址
type AuthURLResponse struct {
	Provider string `json:"provider"`
	AuthURL  string `json:"auth_url"`
}

// DriveAccountInfo 已连接的云盘
type DriveAccountInfo struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	ConnectedAt time.Time `json:"connected_at"`
}

// DriveUsage 套餐下的云盘用量
type DriveUsage struct {
	Tier           string `json:"tier"`
	PackageName    string `json:"package_name"`
	MaxDrives      int    `json:"max_drives"`
	Connected      int64  `json:"connected"`
	RemainingSlots int    `json:"remaining_slots"`
	CanAddMore     bool   `json:"can_add_more"`
}

// DriveListResponse 云盘列表
type DriveListResponse struct {
	Drives []DriveAccountInfo `json:"drives"`
	Usage  *DriveUsage        `json:"usage"`
}

// DriveStatusResponse 各平台连接状态
type DriveStatusResponse struct {
	Google   bool  `json:"google"`
	OneDrive bool  `json:"onedrive"`
	Total    int64 `json:"total"`
}

// DriveInfoResponse 云盘空间信息
type DriveInfoResponse struct {
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`
	Email     string `json:"email"`
	Total     int64  `json:"total"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}

// SyncResponse 元数据同步结果
type SyncResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

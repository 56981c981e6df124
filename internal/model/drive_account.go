package model

import (
	"time"
)

// DriveAccount 用户连接的云盘账号，Google Drive 与 OneDrive 共用一张表
type DriveAccount struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	UserID            string    `gorm:"size:36;not null;index" json:"user_id"`
	Provider          string    `gorm:"size:20;not null;uniqueIndex:idx_provider_email" json:"provider"`
	Email             string    `gorm:"size:191;not null;uniqueIndex:idx_provider_email" json:"email"`
	ProviderAccountID string    `gorm:"size:191" json:"provider_account_id,omitempty"`
	DisplayName       string    `gorm:"size:191" json:"display_name,omitempty"`
	AccessToken       string    `gorm:"type:text;not null" json:"-"`
	RefreshToken      string    `gorm:"type:text" json:"-"`
	ExpiresIn         int       `json:"-"`
	ExpiresAt         time.Time `gorm:"index" json:"expires_at"`
	Scope             string    `gorm:"size:500" json:"scope,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (DriveAccount) TableName() string {
	return "drive_accounts"
}

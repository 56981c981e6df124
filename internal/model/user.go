package model

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Name            string     `gorm:"size:100" json:"name"`
	Email           string     `gorm:"size:191;uniqueIndex;not null" json:"email"`
	PasswordHash    *string    `gorm:"size:255" json:"-"` // 仅 OTP 登录的账号为空
	Role            string     `gorm:"size:20;default:USER" json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

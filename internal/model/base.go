package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// newID 生成字符串主键
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error {
	newID(&u.ID)
	return nil
}

func (o *OTPCode) BeforeCreate(*gorm.DB) error {
	newID(&o.ID)
	return nil
}

func (a *DriveAccount) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}

func (p *SubscriptionPlan) BeforeCreate(*gorm.DB) error {
	newID(&p.ID)
	return nil
}

func (s *SubscribedUser) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

func (f *DriveFile) BeforeCreate(*gorm.DB) error {
	newID(&f.ID)
	return nil
}

func (f *DriveFolder) BeforeCreate(*gorm.DB) error {
	newID(&f.ID)
	return nil
}

package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
)

type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) Create(code *model.OTPCode) error {
	return r.db.Create(code).Error
}

// DeleteUnusedByUser 删除用户所有未使用的验证码
func (r *OTPRepository) DeleteUnusedByUser(userID string) (int64, error) {
	result := r.db.Where("user_id = ? AND used = ?", userID, false).Delete(&model.OTPCode{})
	return result.RowsAffected, result.Error
}

// GetByCode 按验证码查找，同时加载所属用户
func (r *OTPRepository) GetByCode(code string) (*model.OTPCode, error) {
	var otp model.OTPCode
	err := r.db.Preload("User").Where("code = ?", code).First(&otp).Error
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

// MarkUsed 标记为已使用，返回 false 表示已被并发请求抢先使用
func (r *OTPRepository) MarkUsed(id string) (bool, error) {
	result := r.db.Model(&model.OTPCode{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	return result.RowsAffected > 0, result.Error
}

// IncrementAttempts 未使用的验证码尝试次数 +1
func (r *OTPRepository) IncrementAttempts(code string) (int64, error) {
	result := r.db.Model(&model.OTPCode{}).
		Where("code = ? AND used = ?", code, false).
		Update("attempts", gorm.Expr("attempts + 1"))
	return result.RowsAffected, result.Error
}

func (r *OTPRepository) staleScope(now time.Time, maxAttempts int) *gorm.DB {
	return r.db.Model(&model.OTPCode{}).
		Where("expires_at < ? OR used = ? OR attempts >= ?", now, true, maxAttempts)
}

// CountStale 统计已过期、已使用或尝试次数耗尽的验证码
func (r *OTPRepository) CountStale(now time.Time, maxAttempts int) (int64, error) {
	var count int64
	err := r.staleScope(now, maxAttempts).Count(&count).Error
	return count, err
}

// DeleteStale 删除已过期、已使用或尝试次数耗尽的验证码
func (r *OTPRepository) DeleteStale(now time.Time, maxAttempts int) (int64, error) {
	result := r.db.
		Where("expires_at < ? OR used = ? OR attempts >= ?", now, true, maxAttempts).
		Delete(&model.OTPCode{})
	return result.RowsAffected, result.Error
}

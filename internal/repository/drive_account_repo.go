package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
)

type DriveAccountRepository struct {
	db *gorm.DB
}

func NewDriveAccountRepository(db *gorm.DB) *DriveAccountRepository {
	return &DriveAccountRepository{db: db}
}

func (r *DriveAccountRepository) Create(account *model.DriveAccount) error {
	account.Email = normalizeEmail(account.Email)
	return r.db.Create(account).Error
}

func (r *DriveAccountRepository) GetByID(id string) (*model.DriveAccount, error) {
	var account model.DriveAccount
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetForUser 按 ID 查找并校验归属
func (r *DriveAccountRepository) GetForUser(id, userID, provider string) (*model.DriveAccount, error) {
	var account model.DriveAccount
	err := r.db.Where("id = ? AND user_id = ? AND provider = ?", id, userID, provider).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByProviderEmail 按平台账号邮箱查找，一个平台账号只属于一个用户
func (r *DriveAccountRepository) GetByProviderEmail(provider, email string) (*model.DriveAccount, error) {
	var account model.DriveAccount
	err := r.db.Where("provider = ? AND email = ?", provider, normalizeEmail(email)).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail 不区分平台按邮箱查找
func (r *DriveAccountRepository) GetByEmail(email string) ([]model.DriveAccount, error) {
	var accounts []model.DriveAccount
	err := r.db.Where("email = ?", normalizeEmail(email)).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *DriveAccountRepository) ListByUser(userID string) ([]model.DriveAccount, error) {
	var accounts []model.DriveAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

// CountByUser 用户在所有平台已连接的云盘数
func (r *DriveAccountRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.DriveAccount{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *DriveAccountRepository) CountByUserAndProvider(userID, provider string) (int64, error) {
	var count int64
	err := r.db.Model(&model.DriveAccount{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Count(&count).Error
	return count, err
}

// UpdateTokens 写入新的令牌，refreshToken 为空时保留原值
func (r *DriveAccountRepository) UpdateTokens(id, accessToken, refreshToken string, expiresIn int, expiresAt time.Time, scope string) error {
	fields := map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"expires_at":   expiresAt,
	}
	if refreshToken != "" {
		fields["refresh_token"] = refreshToken
	}
	if scope != "" {
		fields["scope"] = scope
	}
	return r.db.Model(&model.DriveAccount{}).Where("id = ?", id).Updates(fields).Error
}

func (r *DriveAccountRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.db.Model(&model.DriveAccount{}).Where("id = ?", id).Updates(fields).Error
}

// ListExpiringBefore 令牌在 t 之前过期的账号
func (r *DriveAccountRepository) ListExpiringBefore(t time.Time) ([]model.DriveAccount, error) {
	var accounts []model.DriveAccount
	err := r.db.Where("expires_at <= ? AND refresh_token <> ''", t).Find(&accounts).Error
	return accounts, err
}

// DeleteForUser 删除用户自己的云盘账号
func (r *DriveAccountRepository) DeleteForUser(id, userID string) (int64, error) {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.DriveAccount{})
	return result.RowsAffected, result.Error
}

package testutil

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Name:  fmt.Sprintf("Test User %d", time.Now().UnixNano()%10000),
		Email: fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Role:  model.RoleUser,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithName 设置用户名
func WithName(name string) func(*model.User) {
	return func(u *model.User) {
		u.Name = name
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithPassword 设置密码（bcrypt 最低成本）
func WithPassword(password string) func(*model.User) {
	return func(u *model.User) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		h := string(hash)
		u.PasswordHash = &h
	}
}

// WithVerified 设置邮箱已验证
func WithVerified() func(*model.User) {
	return func(u *model.User) {
		now := time.Now().UTC()
		u.EmailVerifiedAt = &now
	}
}

// TestOTP 创建测试验证码
func TestOTP(t *testing.T, db *gorm.DB, userID, code string, opts ...func(*model.OTPCode)) *model.OTPCode {
	t.Helper()

	otp := &model.OTPCode{
		Code:      code,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}

	for _, opt := range opts {
		opt(otp)
	}

	if err := db.Create(otp).Error; err != nil {
		t.Fatalf("Failed to create test otp: %v", err)
	}

	return otp
}

// WithExpiresAt 设置验证码过期时间
func WithExpiresAt(at time.Time) func(*model.OTPCode) {
	return func(o *model.OTPCode) {
		o.ExpiresAt = at
	}
}

// WithAttempts 设置已尝试次数
func WithAttempts(n int) func(*model.OTPCode) {
	return func(o *model.OTPCode) {
		o.Attempts = n
	}
}

// WithUsed 设置为已使用
func WithUsed() func(*model.OTPCode) {
	return func(o *model.OTPCode) {
		o.Used = true
	}
}

// TestDriveAccount 创建测试云盘账号
func TestDriveAccount(t *testing.T, db *gorm.DB, userID, provider string, opts ...func(*model.DriveAccount)) *model.DriveAccount {
	t.Helper()

	account := &model.DriveAccount{
		UserID:       userID,
		Provider:     provider,
		Email:        fmt.Sprintf("drive_%d@example.com", time.Now().UnixNano()),
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}

	for _, opt := range opts {
		opt(account)
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create test drive account: %v", err)
	}

	return account
}

// WithAccountEmail 设置云盘账号邮箱
func WithAccountEmail(email string) func(*model.DriveAccount) {
	return func(a *model.DriveAccount) {
		a.Email = email
	}
}

// WithTokenExpiry 设置令牌过期时间
func WithTokenExpiry(at time.Time) func(*model.DriveAccount) {
	return func(a *model.DriveAccount) {
		a.ExpiresAt = at
	}
}

// TestPlan 创建测试套餐
func TestPlan(t *testing.T, db *gorm.DB, name, tier string, maxDrives int) *model.SubscriptionPlan {
	t.Helper()

	plan := &model.SubscriptionPlan{
		PackageName:        name,
		Tier:               tier,
		MaxConnectedDrives: maxDrives,
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// TestSubscription 为用户绑定套餐
func TestSubscription(t *testing.T, db *gorm.DB, userID, planID string) *model.SubscribedUser {
	t.Helper()

	sub := &model.SubscribedUser{
		UserID: userID,
		PlanID: planID,
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// TestDriveFile 创建测试文件元数据
func TestDriveFile(t *testing.T, db *gorm.DB, account *model.DriveAccount, name string, opts ...func(*model.DriveFile)) *model.DriveFile {
	t.Helper()

	file := &model.DriveFile{
		AccountID:       account.ID,
		UserID:          account.UserID,
		FileID:          fmt.Sprintf("file_%d", time.Now().UnixNano()),
		FileName:        name,
		MimeType:        "application/octet-stream",
		FileCreatedTime: time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(file)
	}

	if err := db.Create(file).Error; err != nil {
		t.Fatalf("Failed to create test drive file: %v", err)
	}

	return file
}

// WithFileSize 设置文件大小
func WithFileSize(size int64) func(*model.DriveFile) {
	return func(f *model.DriveFile) {
		f.FileSize = &size
	}
}

// WithMimeType 设置文件类型
func WithMimeType(mimeType string) func(*model.DriveFile) {
	return func(f *model.DriveFile) {
		f.MimeType = mimeType
	}
}

// WithCreatedTime 设置文件创建时间
func WithCreatedTime(at time.Time) func(*model.DriveFile) {
	return func(f *model.DriveFile) {
		f.FileCreatedTime = at
	}
}

// WithChecksum 设置 MD5
func WithChecksum(sum string) func(*model.DriveFile) {
	return func(f *model.DriveFile) {
		f.MD5Checksum = &sum
	}
}

// WithFilePath 设置文件路径
func WithFilePath(path string) func(*model.DriveFile) {
	return func(f *model.DriveFile) {
		f.FilePath = path
	}
}

// TestDriveFolder 创建测试文件夹元数据
func TestDriveFolder(t *testing.T, db *gorm.DB, account *model.DriveAccount, name string) *model.DriveFolder {
	t.Helper()

	folder := &model.DriveFolder{
		AccountID:  account.ID,
		UserID:     account.UserID,
		FolderID:   fmt.Sprintf("folder_%d", time.Now().UnixNano()),
		FolderName: name,
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("Failed to create test drive folder: %v", err)
	}
	return folder
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/repository"
)

const codeInvalidOTP = "INVALID_OTP"

// 校验失败的原因，按检查顺序排列
var (
	ErrOTPNotFound        = apperr.New(apperr.KindUnauthorized, codeInvalidOTP, "Invalid verification code")
	ErrOTPUsed            = apperr.New(apperr.KindUnauthorized, codeInvalidOTP, "Code already used")
	ErrOTPExpired         = apperr.New(apperr.KindUnauthorized, codeInvalidOTP, "Code expired. Please request a new one.")
	ErrOTPTooManyAttempts = apperr.New(apperr.KindUnauthorized, codeInvalidOTP, "Too many attempts. Please request a new code.")
)

// 生成验证码时遇到重复的最大重试次数
const maxCodeGenerateRetries = 5

type OTPService struct {
	otpRepo     *repository.OTPRepository
	ttl         time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewOTPService(otpRepo *repository.OTPRepository, cfg *config.OTPConfig, logger *zap.Logger) *OTPService {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPService{
		otpRepo:     otpRepo,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TTL 验证码有效期
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// CreateCode 生成新验证码，同时作废该用户之前未使用的验证码
func (s *OTPService) CreateCode(_ context.Context, userID string) (string, error) {
	code, err := s.uniqueCode()
	if err != nil {
		return "", err
	}

	if _, err := s.otpRepo.DeleteUnusedByUser(userID); err != nil {
		return "", fmt.Errorf("delete previous codes: %w", err)
	}

	otp := &model.OTPCode{
		Code:      code,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.otpRepo.Create(otp); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	s.logger.Info("otp code created", zap.String("user_id", userID))
	return code, nil
}

// VerifyCode 校验成功后标记为已使用并返回所属用户
func (s *OTPService) VerifyCode(_ context.Context, code string) (*model.User, error) {
	return s.verify(code, "")
}

// VerifyCodeForEmail 同 VerifyCode，另外要求验证码属于该邮箱
func (s *OTPService) VerifyCodeForEmail(_ context.Context, email, code string) (*model.User, error) {
	return s.verify(code, normalizeEmail(email))
}

func (s *OTPService) verify(code, email string) (*model.User, error) {
	otp, err := s.otpRepo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}

	if otp.Used {
		return nil, ErrOTPUsed
	}
	if s.now().After(otp.ExpiresAt) {
		return nil, ErrOTPExpired
	}
	if otp.Attempts >= s.maxAttempts {
		return nil, ErrOTPTooManyAttempts
	}
	if otp.User == nil || (email != "" && normalizeEmail(otp.User.Email) != email) {
		return nil, ErrOTPNotFound
	}

	marked, err := s.otpRepo.MarkUsed(otp.ID)
	if err != nil {
		return nil, err
	}
	if !marked {
		// 并发请求已抢先使用
		return nil, ErrOTPUsed
	}

	s.logger.Info("otp code verified", zap.String("user_id", otp.UserID))
	return otp.User, nil
}

// IncrementAttempts 验证码不存在或已使用时不做任何事
func (s *OTPService) IncrementAttempts(_ context.Context, code string) error {
	n, err := s.otpRepo.IncrementAttempts(code)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("otp attempt recorded")
	}
	return nil
}

// CleanupExpired 删除已过期、已使用或尝试次数耗尽的验证码
func (s *OTPService) CleanupExpired(_ context.Context) (int64, error) {
	n, err := s.otpRepo.DeleteStale(s.now(), s.maxAttempts)
	if err != nil {
		return 0, err
	}
	s.logger.Info("otp cleanup finished", zap.Int64("deleted", n))
	return n, nil
}

// CountExpired 统计可清理的验证码数量，不做删除
func (s *OTPService) CountExpired(_ context.Context) (int64, error) {
	return s.otpRepo.CountStale(s.now(), s.maxAttempts)
}

func (s *OTPService) uniqueCode() (string, error) {
	for i := 0; i < maxCodeGenerateRetries; i++ {
		code, err := generateOTPCode()
		if err != nil {
			return "", err
		}
		_, err = s.otpRepo.GetByCode(code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("failed to generate unique otp code")
}

// generateOTPCode 均匀分布的 6 位数字，保留前导 0
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

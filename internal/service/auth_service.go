package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/email"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
	"github.com/qs3c/driveunity_server/internal/repository"
)

var (
	ErrEmailExists        = apperr.Conflict("Email already registered")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid email or password")
	ErrUserNotFound       = apperr.NotFound("User")
)

type AuthService struct {
	userRepo *repository.UserRepository
	otp      *OTPService
	sender   email.Sender
	logger   *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, otp *OTPService, sender email.Sender, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		otp:      otp,
		sender:   sender,
		logger:   logger,
	}
}

// SendOTP 发送登录验证码，新用户需要提供姓名并在此时创建账号
func (s *AuthService) SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error) {
	isNewUser := false
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, apperr.Validation("Validation failed", map[string][]string{
				"name": {"Name is required for new users"},
			})
		}
		user = &model.User{
			Name:  name,
			Email: req.Email,
			Role:  model.RoleUser,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, err
		}
		isNewUser = true
		s.logger.Info("user created via otp", zap.String("user_id", user.ID))
	}

	code, err := s.otp.CreateCode(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sender.SendVerificationCode(ctx, user.Email, user.Name, code, s.otp.TTL()); err != nil {
		s.logger.Error("failed to send otp email", zap.String("user_id", user.ID), zap.Error(err))
		if errors.Is(err, email.ErrDisabled) {
			return nil, apperr.Wrap(apperr.KindConfiguration, "EMAIL_NOT_CONFIGURED", "Email delivery is not configured", err)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "EMAIL_SEND_ERROR", "Unable to send email. Please try again.", err)
	}

	return &dto.SendOTPResponse{
		Email:     user.Email,
		IsNewUser: isNewUser,
		ExpiresIn: int(s.otp.TTL().Seconds()),
	}, nil
}

// VerifyOTP 校验失败时累加尝试次数；成功时记录邮箱验证时间
func (s *AuthService) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*session.Principal, error) {
	user, err := s.otp.VerifyCodeForEmail(ctx, req.Email, req.Code)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			if incErr := s.otp.IncrementAttempts(ctx, req.Code); incErr != nil {
				s.logger.Warn("failed to record otp attempt", zap.Error(incErr))
			}
		}
		return nil, err
	}

	if user.EmailVerifiedAt == nil {
		if err := s.userRepo.MarkEmailVerified(user.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	return toPrincipal(user), nil
}

// CheckEmail 邮箱是否已注册
func (s *AuthService) CheckEmail(emailAddr string) (*dto.CheckEmailResponse, error) {
	user, err := s.userRepo.GetByEmail(emailAddr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.CheckEmailResponse{Exists: false}, nil
		}
		return nil, err
	}
	return &dto.CheckEmailResponse{Exists: true, Name: user.Name}, nil
}

// Signup 密码注册
func (s *AuthService) Signup(_ context.Context, req *dto.SignupRequest) (*session.Principal, error) {
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: &hashStr,
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return toPrincipal(user), nil
}

// Signin 密码登录，仅 OTP 注册的账号没有密码
func (s *AuthService) Signin(_ context.Context, req *dto.SigninRequest) (*session.Principal, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return toPrincipal(user), nil
}

// CreateSession 读取会话需要的用户信息
func (s *AuthService) CreateSession(_ context.Context, userID string) (*session.Principal, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toPrincipal(user), nil
}

func toPrincipal(u *model.User) *session.Principal {
	return &session.Principal{ID: u.ID, Name: u.Name, Email: u.Email}
}

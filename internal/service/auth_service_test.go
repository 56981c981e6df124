package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/email"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

// captureSender 记录最后一封验证码邮件
type captureSender struct {
	to, name, code string
	err            error
}

func (s *captureSender) SendVerificationCode(_ context.Context, to, name, code string, _ time.Duration) error {
	s.to, s.name, s.code = to, name, code
	return s.err
}

func setupAuthService(t *testing.T) (*AuthService, *captureSender, *repository.UserRepository) {
	t.Helper()

	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	otp := NewOTPService(repository.NewOTPRepository(db), testOTPConfig, zap.NewNop())
	sender := &captureSender{}

	return NewAuthService(userRepo, otp, sender, zap.NewNop()), sender, userRepo
}

func TestAuthService_SendOTP_NewUser(t *testing.T) {
	svc, sender, userRepo := setupAuthService(t)
	ctx := context.Background()

	resp, err := svc.SendOTP(ctx, &dto.SendOTPRequest{Email: "new@example.com", Name: "  Ada  "})
	require.NoError(t, err)
	assert.True(t, resp.IsNewUser)
	assert.Equal(t, "new@example.com", resp.Email)
	assert.Equal(t, 600, resp.ExpiresIn)

	user, err := userRepo.GetByEmail("new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Nil(t, user.PasswordHash)
	assert.Equal(t, "USER", user.Role)

	assert.Equal(t, "new@example.com", sender.to)
	assert.Equal(t, "Ada", sender.name)
	assert.Len(t, sender.code, 6)
}

func TestAuthService_SendOTP_NewUserRequiresName(t *testing.T) {
	svc, _, _ := setupAuthService(t)

	_, err := svc.SendOTP(context.Background(), &dto.SendOTPRequest{Email: "new@example.com"})
	require.Error(t, err)

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, []string{"Name is required for new users"}, e.Fields["name"])
}

func TestAuthService_SendOTP_ExistingUser(t *testing.T) {
	svc, sender, _ := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.SendOTP(ctx, &dto.SendOTPRequest{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)

	resp, err := svc.SendOTP(ctx, &dto.SendOTPRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, resp.IsNewUser)
	assert.Equal(t, "Ada", sender.name)
}

func TestAuthService_SendOTP_EmailFailure(t *testing.T) {
	svc, sender, _ := setupAuthService(t)
	sender.err = errors.New("smtp down")

	_, err := svc.SendOTP(context.Background(), &dto.SendOTPRequest{Email: "ada@example.com", Name: "Ada"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "EMAIL_SEND_ERROR", e.Code)
}

func TestAuthService_SendOTP_EmailNotConfigured(t *testing.T) {
	svc, sender, _ := setupAuthService(t)
	sender.err = email.NewDisabledSender("smtp not configured").SendVerificationCode(context.Background(), "", "", "", 0)

	_, err := svc.SendOTP(context.Background(), &dto.SendOTPRequest{Email: "ada@example.com", Name: "Ada"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConfiguration, e.Kind)
	assert.Equal(t, "EMAIL_NOT_CONFIGURED", e.Code)
}

// new@example.com 首次请求验证码并登录
func TestAuthService_OTPLoginScenario(t *testing.T) {
	svc, sender, userRepo := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.SendOTP(ctx, &dto.SendOTPRequest{Email: "new@example.com", Name: "Ada"})
	require.NoError(t, err)

	p, err := svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Email: "new@example.com", Code: sender.code})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "new@example.com", p.Email)

	user, err := userRepo.GetByID(p.ID)
	require.NoError(t, err)
	assert.NotNil(t, user.EmailVerifiedAt)

	_, err = svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Email: "new@example.com", Code: sender.code})
	assert.ErrorIs(t, err, ErrOTPUsed)
}

func TestAuthService_VerifyOTP_FailureIncrementsAttempts(t *testing.T) {
	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	svc := NewAuthService(userRepo, NewOTPService(otpRepo, testOTPConfig, zap.NewNop()), email.NewDisabledSender(""), zap.NewNop())

	user := testutil.TestUser(t, db, testutil.WithEmail("ada@example.com"))
	testutil.TestOTP(t, db, user.ID, "123456")

	for i := 0; i < 5; i++ {
		_, err := svc.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{Email: "other@example.com", Code: "123456"})
		assert.ErrorIs(t, err, ErrOTPNotFound)
	}

	_, err := svc.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{Email: "ada@example.com", Code: "123456"})
	assert.ErrorIs(t, err, ErrOTPTooManyAttempts)

	otp, err := otpRepo.GetByCode("123456")
	require.NoError(t, err)
	assert.Equal(t, 6, otp.Attempts)
}

func TestAuthService_CheckEmail(t *testing.T) {
	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	svc := NewAuthService(userRepo, nil, nil, zap.NewNop())
	testutil.TestUser(t, db, testutil.WithEmail("ada@example.com"), testutil.WithName("Ada"))

	resp, err := svc.CheckEmail("ada@example.com")
	require.NoError(t, err)
	assert.True(t, resp.Exists)
	assert.Equal(t, "Ada", resp.Name)

	resp, err = svc.CheckEmail("nobody@example.com")
	require.NoError(t, err)
	assert.False(t, resp.Exists)
	assert.Empty(t, resp.Name)
}

func TestAuthService_SignupAndSignin(t *testing.T) {
	svc, _, _ := setupAuthService(t)
	ctx := context.Background()

	p, err := svc.Signup(ctx, &dto.SignupRequest{Name: "Admin", Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = svc.Signup(ctx, &dto.SignupRequest{Name: "Admin", Email: "admin@example.com", Password: "another-one"})
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := svc.Signin(ctx, &dto.SigninRequest{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Signin(ctx, &dto.SigninRequest{Email: "admin@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Signin(ctx, &dto.SigninRequest{Email: "missing@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Signin_OTPOnlyAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(repository.NewUserRepository(db), nil, nil, zap.NewNop())
	testutil.TestUser(t, db, testutil.WithEmail("otp@example.com"))

	_, err := svc.Signin(context.Background(), &dto.SigninRequest{Email: "otp@example.com", Password: "anything"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_CreateSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(repository.NewUserRepository(db), nil, nil, zap.NewNop())
	user := testutil.TestUser(t, db, testutil.WithName("Ada"))

	p, err := svc.CreateSession(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.ID)
	assert.Equal(t, "Ada", p.Name)

	_, err = svc.CreateSession(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/pkg/metasync"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/service"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAppURL = "http://app.test"

// stubBroker state 直接使用 "state:" 前缀加用户 ID
type stubBroker struct {
	provider oauth.Provider
	email    string
}

func (b *stubBroker) Provider() oauth.Provider { return b.provider }

func (b *stubBroker) NewState(_ context.Context, userID string) (string, error) {
	return "state:" + userID, nil
}

func (b *stubBroker) ParseState(_ context.Context, raw string) (string, error) {
	userID, ok := strings.CutPrefix(raw, "state:")
	if !ok || userID == "" {
		return "", oauth.ErrInvalidState
	}
	return userID, nil
}

func (b *stubBroker) AuthURL(state string) (string, error) {
	return "https://auth.test/authorize?state=" + url.QueryEscape(state), nil
}

func (b *stubBroker) ExchangeCode(context.Context, string) (*oauth.Token, error) {
	return &oauth.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}, nil
}

func (b *stubBroker) RefreshToken(context.Context, string) (*oauth.Token, error) {
	return b.ExchangeCode(context.Background(), "")
}

func (b *stubBroker) FetchIdentity(context.Context, string) (*oauth.Identity, error) {
	return &oauth.Identity{ID: "pid", Email: b.email, Name: "Drive Owner"}, nil
}

func (b *stubBroker) FetchDriveInfo(context.Context, string) (*oauth.DriveInfo, error) {
	return &oauth.DriveInfo{Total: 1000, Used: 250, Remaining: 750}, nil
}

// captureSender 记录最后一次发送的验证码
type captureSender struct {
	code string
}

func (s *captureSender) SendVerificationCode(_ context.Context, _, _, code string, _ time.Duration) error {
	s.code = code
	return nil
}

type testEnv struct {
	db            *gorm.DB
	sessions      *session.Manager
	sessionCfg    config.SessionConfig
	sender        *captureSender
	google        *stubBroker
	auth          *service.AuthService
	subscriptions *service.SubscriptionService
	quota         *service.QuotaService
	connections   *service.ConnectionService
	driveRepo     *repository.DriveAccountRepository
}

func setupEnv(t *testing.T, syncClient *metasync.Client) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	logger := zap.NewNop()
	sessionCfg := config.SessionConfig{CookieName: "USER_INFO", MaxAgeHours: 168, AdminMaxAgeHours: 24}
	userRepo := repository.NewUserRepository(db)
	driveRepo := repository.NewDriveAccountRepository(db)

	sender := &captureSender{}
	otp := service.NewOTPService(repository.NewOTPRepository(db), &config.OTPConfig{TTLMinutes: 10, MaxAttempts: 5}, logger)
	subs := service.NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		&config.SubscriptionConfig{DefaultPlan: "Free", Plans: config.DefaultPlans()},
		logger,
	)
	quota := service.NewQuotaService(driveRepo, subs, 2)

	google := &stubBroker{provider: oauth.ProviderGoogle, email: "drive@gmail.com"}
	onedrive := &stubBroker{provider: oauth.ProviderOneDrive, email: "me@outlook.com"}
	registry := oauth.NewRegistry(google, onedrive)
	tokens := service.NewTokenService(driveRepo, registry, logger)

	return &testEnv{
		db:            db,
		sessions:      session.NewManager(sessionCfg),
		sessionCfg:    sessionCfg,
		sender:        sender,
		google:        google,
		auth:          service.NewAuthService(userRepo, otp, sender, logger),
		subscriptions: subs,
		quota:         quota,
		connections:   service.NewConnectionService(driveRepo, userRepo, registry, quota, tokens, nil, syncClient, logger),
		driveRepo:     driveRepo,
	}
}

func performRequest(r http.Handler, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// dataMap 把响应的 data 转为 map
func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func sessionCookieFor(u *model.User) *http.Cookie {
	raw, _ := json.Marshal(session.Principal{ID: u.ID, Name: u.Name, Email: u.Email})
	return &http.Cookie{Name: "USER_INFO", Value: url.QueryEscape(string(raw))}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

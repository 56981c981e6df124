package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/queue"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

// fakeBroker 可编程的平台授权实现，state 直接使用用户 ID
type fakeBroker struct {
	provider oauth.Provider

	mu          sync.Mutex
	token       *oauth.Token
	identity    *oauth.Identity
	driveInfo   *oauth.DriveInfo
	exchangeErr error
	refreshErr  error
	refreshes   int
}

func newFakeBroker(p oauth.Provider, email string) *fakeBroker {
	return &fakeBroker{
		provider: p,
		token: &oauth.Token{
			AccessToken:  "fresh-access",
			RefreshToken: "fresh-refresh",
			ExpiresIn:    3600,
			ExpiresAt:    time.Now().UTC().Add(time.Hour),
			Scope:        "drive",
		},
		identity:  &oauth.Identity{ID: "pid-1", Email: email, Name: "Drive Owner"},
		driveInfo: &oauth.DriveInfo{Total: 100, Used: 40, Remaining: 60},
	}
}

func (b *fakeBroker) Provider() oauth.Provider { return b.provider }

func (b *fakeBroker) NewState(_ context.Context, userID string) (string, error) {
	return "state:" + userID, nil
}

func (b *fakeBroker) ParseState(_ context.Context, raw string) (string, error) {
	if len(raw) <= len("state:") || raw[:len("state:")] != "state:" {
		return "", oauth.ErrInvalidState
	}
	return raw[len("state:"):], nil
}

func (b *fakeBroker) AuthURL(state string) (string, error) {
	return "https://auth.example.com/?state=" + state, nil
}

func (b *fakeBroker) ExchangeCode(context.Context, string) (*oauth.Token, error) {
	if b.exchangeErr != nil {
		return nil, b.exchangeErr
	}
	t := *b.token
	return &t, nil
}

func (b *fakeBroker) RefreshToken(_ context.Context, refreshToken string) (*oauth.Token, error) {
	b.mu.Lock()
	b.refreshes++
	b.mu.Unlock()
	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	return &oauth.Token{
		AccessToken: "refreshed-access",
		ExpiresIn:   3600,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil
}

func (b *fakeBroker) FetchIdentity(context.Context, string) (*oauth.Identity, error) {
	id := *b.identity
	return &id, nil
}

func (b *fakeBroker) FetchDriveInfo(_ context.Context, accessToken string) (*oauth.DriveInfo, error) {
	if accessToken == "" {
		return nil, apperr.Upstream(string(b.provider), errors.New("no token"))
	}
	info := *b.driveInfo
	return &info, nil
}

func (b *fakeBroker) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// recordingNotifier 记录首次连接通知
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []*queue.SyncJob
}

func (n *recordingNotifier) NotifyConnected(_ context.Context, job *queue.SyncJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

var testOTPConfig = &config.OTPConfig{TTLMinutes: 10, MaxAttempts: 5}

func newTestSubscriptionService(db *gorm.DB) *SubscriptionService {
	return NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		&config.SubscriptionConfig{DefaultPlan: "Free", Plans: config.DefaultPlans()},
		zap.NewNop(),
	)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return db
}

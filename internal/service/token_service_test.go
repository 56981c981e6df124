package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/repository"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

func TestTokenService_AccessToken_Fresh(t *testing.T) {
	db := setupTestDB(t)
	broker := newFakeBroker(oauth.ProviderGoogle, "drive@gmail.com")
	svc := NewTokenService(repository.NewDriveAccountRepository(db), oauth.NewRegistry(broker), zap.NewNop())
	user := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "google")

	token, err := svc.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
	assert.Equal(t, 0, broker.refreshCount())
}

func TestTokenService_AccessToken_RefreshesWithinSkew(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDriveAccountRepository(db)
	broker := newFakeBroker(oauth.ProviderOneDrive, "me@outlook.com")
	svc := NewTokenService(repo, oauth.NewRegistry(broker), zap.NewNop())
	user := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "onedrive",
		testutil.WithTokenExpiry(time.Now().UTC().Add(4*time.Minute)))

	token, err := svc.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", token)
	assert.Equal(t, 1, broker.refreshCount())

	stored, err := repo.GetByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", stored.AccessToken)
	// 平台未返回新的 refresh_token，保留原值
	assert.Equal(t, "refresh-token", stored.RefreshToken)
	assert.True(t, stored.ExpiresAt.After(time.Now().Add(50*time.Minute)))
}

func TestTokenService_RefreshFailureKeepsAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDriveAccountRepository(db)
	broker := newFakeBroker(oauth.ProviderGoogle, "drive@gmail.com")
	broker.refreshErr = apperr.Upstream("google", errors.New("invalid_grant"))
	svc := NewTokenService(repo, oauth.NewRegistry(broker), zap.NewNop())
	user := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "google",
		testutil.WithTokenExpiry(time.Now().UTC().Add(-time.Hour)))

	_, err := svc.AccessToken(context.Background(), account)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamProvider, apperr.KindOf(err))

	stored, err := repo.GetByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-token", stored.AccessToken)
}

func TestTokenService_AccessTokenFor_Ownership(t *testing.T) {
	db := setupTestDB(t)
	broker := newFakeBroker(oauth.ProviderGoogle, "drive@gmail.com")
	svc := NewTokenService(repository.NewDriveAccountRepository(db), oauth.NewRegistry(broker), zap.NewNop())
	owner := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, owner.ID, "google")

	_, token, err := svc.AccessTokenFor(context.Background(), owner.ID, oauth.ProviderGoogle, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)

	_, _, err = svc.AccessTokenFor(context.Background(), other.ID, oauth.ProviderGoogle, account.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, _, err = svc.AccessTokenFor(context.Background(), owner.ID, oauth.ProviderOneDrive, account.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTokenService_RefreshAll(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDriveAccountRepository(db)
	google := newFakeBroker(oauth.ProviderGoogle, "drive@gmail.com")
	onedrive := newFakeBroker(oauth.ProviderOneDrive, "me@outlook.com")
	onedrive.refreshErr = errors.New("boom")
	svc := NewTokenService(repo, oauth.NewRegistry(google, onedrive), zap.NewNop())
	user := testutil.TestUser(t, db)

	stale := time.Now().UTC().Add(-time.Minute)
	g1 := testutil.TestDriveAccount(t, db, user.ID, "google", testutil.WithTokenExpiry(stale))
	testutil.TestDriveAccount(t, db, user.ID, "google", testutil.WithTokenExpiry(stale))
	o1 := testutil.TestDriveAccount(t, db, user.ID, "onedrive", testutil.WithTokenExpiry(stale))
	testutil.TestDriveAccount(t, db, user.ID, "google")

	outcomes, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, 2, google.refreshCount())

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			assert.Equal(t, o1.ID, o.AccountID)
		}
	}
	assert.Equal(t, 1, failed)

	stored, err := repo.GetByID(g1.ID)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", stored.AccessToken)
}

func TestTokenService_GetByEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTokenService(repository.NewDriveAccountRepository(db), oauth.NewRegistry(), zap.NewNop())
	user := testutil.TestUser(t, db)
	testutil.TestDriveAccount(t, db, user.ID, "google", testutil.WithAccountEmail("shared@example.com"))
	testutil.TestDriveAccount(t, db, user.ID, "onedrive", testutil.WithAccountEmail("shared@example.com"))

	accounts, err := svc.GetByEmail("Shared@Example.com")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/testutil"
)

func TestUserRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	user := &model.User{Name: "Ada", Email: "  Ada@Example.com ", Role: model.RoleUser}
	require.NoError(t, repo.Create(user))

	assert.Len(t, user.ID, 36)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Nil(t, user.PasswordHash)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(&model.User{Name: "A", Email: "dup@example.com"}))
	assert.Error(t, repo.Create(&model.User{Name: "B", Email: "dup@example.com"}))
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	created := testutil.TestUser(t, db)

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Name, found.Name)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	_, err := repo.GetByID("missing")
	assert.Error(t, err)
}

func TestUserRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	testutil.TestUser(t, db, testutil.WithEmail("unique@example.com"))

	found, err := repo.GetByEmail("UNIQUE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "unique@example.com", found.Email)
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	testutil.TestUser(t, db, testutil.WithEmail("exists@example.com"))

	exists, err := repo.ExistsByEmail("exists@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	notExists, err := repo.ExistsByEmail("notexists@example.com")
	require.NoError(t, err)
	assert.False(t, notExists)
}

func TestUserRepository_MarkEmailVerified_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db)

	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, repo.MarkEmailVerified(user.ID, first))
	require.NoError(t, repo.MarkEmailVerified(user.ID, time.Now().UTC()))

	found, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.EmailVerifiedAt)
	assert.True(t, found.EmailVerifiedAt.Equal(first))
}

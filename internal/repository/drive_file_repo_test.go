package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/driveunity_server/internal/testutil"
)

func TestDriveFileRepository_CountByAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDriveFileRepository(db)
	user := testutil.TestUser(t, db)
	a := testutil.TestDriveAccount(t, db, user.ID, "google")
	b := testutil.TestDriveAccount(t, db, user.ID, "onedrive")

	testutil.TestDriveFile(t, db, a, "a.txt")
	testutil.TestDriveFile(t, db, b, "b.txt")
	testutil.TestDriveFolder(t, db, a, "Photos")

	files, folders, err := repo.CountByAccounts([]string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), files)
	assert.Equal(t, int64(1), folders)

	files, folders, err = repo.CountByAccounts(nil)
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, folders)
}

func TestDriveFileRepository_ListFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDriveFileRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "google")
	foreign := testutil.TestDriveAccount(t, db, other.ID, "google")

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	testutil.TestDriveFile(t, db, account, "Report 2024.pdf", testutil.WithFileSize(100), testutil.WithCreatedTime(base), testutil.WithMimeType("application/pdf"))
	testutil.TestDriveFile(t, db, account, "holiday.jpg", testutil.WithFileSize(5000), testutil.WithCreatedTime(base.AddDate(0, 0, 10)), testutil.WithMimeType("image/jpeg"))
	testutil.TestDriveFile(t, db, account, "100%_done.txt", testutil.WithCreatedTime(base.AddDate(0, 0, 20)), testutil.WithMimeType("text/plain"))
	testutil.TestDriveFile(t, db, foreign, "report.pdf", testutil.WithFileSize(100))

	all, err := repo.List(user.ID, account.ID, FileQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "100%_done.txt", all[0].FileName)

	// 其他用户的云盘不可见
	none, err := repo.List(user.ID, foreign.ID, FileQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)

	minSize := int64(1000)
	big, err := repo.List(user.ID, account.ID, FileQuery{MinSize: &minSize})
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, "holiday.jpg", big[0].FileName)

	from, to := base.AddDate(0, 0, 5), base.AddDate(0, 0, 15)
	ranged, err := repo.List(user.ID, account.ID, FileQuery{CreatedFrom: &from, CreatedTo: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "holiday.jpg", ranged[0].FileName)

	found, err := repo.List(user.ID, account.ID, FileQuery{Search: "REPORT"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Report 2024.pdf", found[0].FileName)

	// 通配符按字面匹配
	literal, err := repo.List(user.ID, account.ID, FileQuery{Search: "0%_"})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "100%_done.txt", literal[0].FileName)

	byMime, err := repo.List(user.ID, account.ID, FileQuery{Search: "image/"})
	require.NoError(t, err)
	assert.Len(t, byMime, 1)
}

func TestDriveFileRepository_MimeTypesAndBounds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDriveFileRepository(db)
	user := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "google")

	_, _, count, err := repo.CreatedBounds(user.ID, account.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	oldest := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	newest := time.Date(2025, 6, 7, 8, 0, 0, 0, time.UTC)
	testutil.TestDriveFile(t, db, account, "a.pdf", testutil.WithMimeType("application/pdf"), testutil.WithCreatedTime(newest))
	testutil.TestDriveFile(t, db, account, "b.pdf", testutil.WithMimeType("application/pdf"), testutil.WithCreatedTime(oldest))
	testutil.TestDriveFile(t, db, account, "c.png", testutil.WithMimeType("image/png"), testutil.WithCreatedTime(oldest.AddDate(0, 1, 0)))

	types, err := repo.DistinctMimeTypes(user.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"application/pdf", "image/png"}, types)

	gotOldest, gotNewest, count, err := repo.CreatedBounds(user.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.True(t, oldest.Equal(gotOldest))
	assert.True(t, newest.Equal(gotNewest))
}

func TestDriveFileRepository_ListWithChecksum(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDriveFileRepository(db)
	user := testutil.TestUser(t, db)
	account := testutil.TestDriveAccount(t, db, user.ID, "google")

	testutil.TestDriveFile(t, db, account, "a.bin", testutil.WithChecksum("abc"))
	testutil.TestDriveFile(t, db, account, "doc")

	files, err := repo.ListWithChecksum(user.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.bin", files[0].FileName)
}

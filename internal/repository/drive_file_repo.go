package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/driveunity_server/internal/model"
)

// FileQuery 文件列表筛选条件，零值表示不过滤
type FileQuery struct {
	MinSize     *int64
	MaxSize     *int64
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      string
	OrderBy     string
}

type DriveFileRepository struct {
	db *gorm.DB
}

func NewDriveFileRepository(db *gorm.DB) *DriveFileRepository {
	return &DriveFileRepository{db: db}
}

func (r *DriveFileRepository) scope(userID, accountID string) *gorm.DB {
	return r.db.Model(&model.DriveFile{}).Where("user_id = ? AND account_id = ?", userID, accountID)
}

// CountByAccounts 统计多个云盘的文件和文件夹数量
func (r *DriveFileRepository) CountByAccounts(accountIDs []string) (files, folders int64, err error) {
	if len(accountIDs) == 0 {
		return 0, 0, nil
	}
	if err = r.db.Model(&model.DriveFile{}).Where("account_id IN ?", accountIDs).Count(&files).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.Model(&model.DriveFolder{}).Where("account_id IN ?", accountIDs).Count(&folders).Error; err != nil {
		return 0, 0, err
	}
	return files, folders, nil
}

func (r *DriveFileRepository) List(userID, accountID string, q FileQuery) ([]model.DriveFile, error) {
	db := r.scope(userID, accountID)
	if q.MinSize != nil {
		db = db.Where("file_size >= ?", *q.MinSize)
	}
	if q.MaxSize != nil {
		db = db.Where("file_size <= ?", *q.MaxSize)
	}
	if q.CreatedFrom != nil {
		db = db.Where("file_created_time >= ?", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		db = db.Where("file_created_time <= ?", *q.CreatedTo)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		db = db.Where(
			"LOWER(file_name) LIKE ? ESCAPE '!' OR LOWER(mime_type) LIKE ? ESCAPE '!' OR LOWER(file_path) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern,
		)
	}

	order := q.OrderBy
	if order == "" {
		order = "file_created_time DESC"
	}

	var files []model.DriveFile
	err := db.Order(order).Find(&files).Error
	return files, err
}

// DistinctMimeTypes 云盘中出现过的 MIME 类型
func (r *DriveFileRepository) DistinctMimeTypes(userID, accountID string) ([]string, error) {
	var types []string
	err := r.scope(userID, accountID).
		Where("mime_type <> ''").
		Distinct("mime_type").
		Order("mime_type").
		Pluck("mime_type", &types).Error
	return types, err
}

// CreatedBounds 最早和最晚创建的文件，没有文件时返回 count 为 0
func (r *DriveFileRepository) CreatedBounds(userID, accountID string) (oldest, newest time.Time, count int64, err error) {
	if err = r.scope(userID, accountID).Count(&count).Error; err != nil || count == 0 {
		return oldest, newest, count, err
	}
	var first, last model.DriveFile
	if err = r.scope(userID, accountID).Order("file_created_time ASC").Limit(1).Find(&first).Error; err != nil {
		return oldest, newest, 0, err
	}
	if err = r.scope(userID, accountID).Order("file_created_time DESC").Limit(1).Find(&last).Error; err != nil {
		return oldest, newest, 0, err
	}
	return first.FileCreatedTime, last.FileCreatedTime, count, nil
}

// ListWithChecksum 带校验和的文件，用于查重
func (r *DriveFileRepository) ListWithChecksum(userID, accountID string) ([]model.DriveFile, error) {
	var files []model.DriveFile
	err := r.scope(userID, accountID).
		Where("md5_checksum IS NOT NULL AND md5_checksum <> ''").
		Order("file_created_time ASC").
		Find(&files).Error
	return files, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

package model

import (
	"time"
)

// DriveFile 同步服务写入的文件元数据，本服务只读
type DriveFile struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID       string     `gorm:"size:36;not null;index;uniqueIndex:idx_account_file" json:"account_id"`
	UserID          string     `gorm:"size:36;not null;index" json:"user_id"`
	FileID          string     `gorm:"size:191;not null;uniqueIndex:idx_account_file" json:"file_id"`
	FileName        string     `gorm:"size:500;not null" json:"file_name"`
	MimeType        string     `gorm:"size:191;index" json:"mime_type"`
	FileSize        *int64     `json:"file_size"`
	FileCreatedTime time.Time  `gorm:"index" json:"file_created_time"`
	ViewedByMeTime  *time.Time `json:"viewed_by_me_time,omitempty"`
	FilePath        string     `gorm:"type:text" json:"file_path,omitempty"`
	WebViewLink     string     `gorm:"type:text" json:"web_view_link,omitempty"`
	ThumbnailLink   string     `gorm:"type:text" json:"thumbnail_link,omitempty"`
	MD5Checksum     *string    `gorm:"column:md5_checksum;size:64;index" json:"md5_checksum,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (DriveFile) TableName() string {
	return "drive_files"
}

// Size 未知大小按 0 计
func (f *DriveFile) Size() int64 {
	if f.FileSize == nil {
		return 0
	}
	return *f.FileSize
}

// DriveFolder 同步服务写入的文件夹元数据
type DriveFolder struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID  string    `gorm:"size:36;not null;index;uniqueIndex:idx_account_folder" json:"account_id"`
	UserID     string    `gorm:"size:36;not null;index" json:"user_id"`
	FolderID   string    `gorm:"size:191;not null;uniqueIndex:idx_account_folder" json:"folder_id"`
	FolderName string    `gorm:"size:500;not null" json:"folder_name"`
	FolderPath string    `gorm:"type:text" json:"folder_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DriveFolder) TableName() string {
	return "drive_folders"
}

package dto

import (
	"time"

	"github.com/qs3c/driveunity_server/internal/model"
)

// DashboardResponse 用户所有云盘的文件统计
type DashboardResponse struct {
	FileCount              int64 `json:"file_count"`
	FolderCount            int64 `json:"folder_count"`
	HasConnectedAccount    bool  `json:"has_connected_account"`
	ConnectedAccountsCount int   `json:"connected_accounts_count"`
}

type FileListResponse struct {
	Files []model.DriveFile `json:"files"`
	Count int               `json:"count"`
}

// FileStatistics 结果集的大小统计
type FileStatistics struct {
	TotalFiles           int        `json:"total_files"`
	TotalSize            int64      `json:"total_size"`
	TotalSizeFormatted   string     `json:"total_size_formatted"`
	AverageSize          float64    `json:"average_size"`
	AverageSizeFormatted string     `json:"average_size_formatted"`
	OldestFile           *time.Time `json:"oldest_file,omitempty"`
	NewestFile           *time.Time `json:"newest_file,omitempty"`
}

type MimeTypeOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

type MimeTypesResponse struct {
	MimeTypes         []MimeTypeOption            `json:"mime_types"`
	GroupedByCategory map[string][]MimeTypeOption `json:"grouped_by_category"`
	TotalTypes        int                         `json:"total_types"`
}

// SizeFilterRequest 大小单位为字节
type SizeFilterRequest struct {
	MinSize *int64 `json:"min_size" binding:"omitempty,min=0"`
	MaxSize *int64 `json:"max_size" binding:"omitempty,min=0"`
}

type SizeFilter struct {
	MinSize          *int64 `json:"min_size"`
	MaxSize          *int64 `json:"max_size"`
	MinSizeFormatted string `json:"min_size_formatted,omitempty"`
	MaxSizeFormatted string `json:"max_size_formatted,omitempty"`
}

// SizeDistribution <1MB / <10MB / <100MB / <1GB / 更大
type SizeDistribution struct {
	Tiny   int `json:"tiny"`
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
	Huge   int `json:"huge"`
}

type SizeFilterResponse struct {
	Files            []model.DriveFile `json:"files"`
	Count            int               `json:"count"`
	Filter           SizeFilter        `json:"filter"`
	Statistics       FileStatistics    `json:"statistics"`
	SizeDistribution SizeDistribution  `json:"size_distribution"`
}

type DateBounds struct {
	Oldest string `json:"oldest"`
	Newest string `json:"newest"`
}

type DateBoundsResponse struct {
	DateRanges *DateBounds `json:"date_ranges"`
	TotalFiles int64       `json:"total_files"`
}

// DateFilterRequest 日期格式 YYYY-MM-DD，结束日期包含当天
type DateFilterRequest struct {
	StartDate string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

type DateFilter struct {
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	DaysInRange *int   `json:"days_in_range"`
}

type PeriodCounts struct {
	Today     int `json:"today"`
	Yesterday int `json:"yesterday"`
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
	Older     int `json:"older"`
}

type DateFilterResponse struct {
	Files           []model.DriveFile `json:"files"`
	Count           int               `json:"count"`
	Filter          DateFilter        `json:"filter"`
	Statistics      FileStatistics    `json:"statistics"`
	GroupedByPeriod PeriodCounts      `json:"grouped_by_period"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required,max=200"`
}

type SearchResponse struct {
	Query       string            `json:"query"`
	SearchTerms []string          `json:"search_terms"`
	Files       []model.DriveFile `json:"files"`
	Count       int               `json:"count"`
	Statistics  FileStatistics    `json:"statistics"`
}

type DuplicateGroup struct {
	MD5Checksum string            `json:"md5_checksum"`
	Count       int               `json:"count"`
	Files       []model.DriveFile `json:"files"`
}

// DuplicatesResponse 每组保留一个文件后可释放的空间
type DuplicatesResponse struct {
	Files             []model.DriveFile `json:"files"`
	Count             int               `json:"count"`
	DuplicateGroups   []DuplicateGroup  `json:"duplicate_groups"`
	TotalSavingsBytes int64             `json:"total_savings_bytes"`
	TotalSavingsGB    float64           `json:"total_savings_gb"`
}

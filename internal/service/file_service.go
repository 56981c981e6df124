package service

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/model"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/repository"
)

const dateLayout = "2006-01-02"

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileService 浏览同步服务写入的文件元数据，所有查询都先校验云盘归属
type FileService struct {
	driveRepo *repository.DriveAccountRepository
	fileRepo  *repository.DriveFileRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewFileService(driveRepo *repository.DriveAccountRepository, fileRepo *repository.DriveFileRepository, logger *zap.Logger) *FileService {
	return &FileService{
		driveRepo: driveRepo,
		fileRepo:  fileRepo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard 用户所有云盘的文件和文件夹数量
func (s *FileService) Dashboard(userID string) (*dto.DashboardResponse, error) {
	accounts, err := s.driveRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return &dto.DashboardResponse{}, nil
	}

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	files, folders, err := s.fileRepo.CountByAccounts(ids)
	if err != nil {
		return nil, err
	}
	return &dto.DashboardResponse{
		FileCount:              files,
		FolderCount:            folders,
		HasConnectedAccount:    true,
		ConnectedAccountsCount: len(accounts),
	}, nil
}

func (s *FileService) List(userID string, provider oauth.Provider, accountID string) (*dto.FileListResponse, error) {
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}
	files, err := s.fileRepo.List(userID, accountID, repository.FileQuery{})
	if err != nil {
		return nil, err
	}
	return &dto.FileListResponse{Files: files, Count: len(files)}, nil
}

// MimeTypes 云盘中的文件类型及分类
func (s *FileService) MimeTypes(userID string, provider oauth.Provider, accountID string) (*dto.MimeTypesResponse, error) {
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}
	types, err := s.fileRepo.DistinctMimeTypes(userID, accountID)
	if err != nil {
		return nil, err
	}

	resp := &dto.MimeTypesResponse{
		MimeTypes:         make([]dto.MimeTypeOption, 0, len(types)),
		GroupedByCategory: map[string][]dto.MimeTypeOption{},
	}
	for _, t := range types {
		opt := dto.MimeTypeOption{Value: t, Label: MimeTypeLabel(t), Category: MimeTypeCategory(t)}
		resp.MimeTypes = append(resp.MimeTypes, opt)
		resp.GroupedByCategory[opt.Category] = append(resp.GroupedByCategory[opt.Category], opt)
	}
	resp.TotalTypes = len(resp.MimeTypes)
	return resp, nil
}

// FilterBySize 按大小筛选，结果从大到小
func (s *FileService) FilterBySize(userID string, provider oauth.Provider, accountID string, req *dto.SizeFilterRequest) (*dto.SizeFilterResponse, error) {
	if req.MinSize != nil && req.MaxSize != nil && *req.MinSize > *req.MaxSize {
		return nil, apperr.Validation("Validation failed", map[string][]string{"min_size": {"Must not exceed max_size"}})
	}
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}

	files, err := s.fileRepo.List(userID, accountID, repository.FileQuery{
		MinSize: req.MinSize,
		MaxSize: req.MaxSize,
		OrderBy: "file_size DESC",
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.SizeFilterResponse{
		Files:      files,
		Count:      len(files),
		Filter:     dto.SizeFilter{MinSize: req.MinSize, MaxSize: req.MaxSize},
		Statistics: statistics(files),
	}
	if req.MinSize != nil {
		resp.Filter.MinSizeFormatted = FormatFileSize(float64(*req.MinSize))
	}
	if req.MaxSize != nil {
		resp.Filter.MaxSizeFormatted = FormatFileSize(float64(*req.MaxSize))
	}
	for i := range files {
		switch size := files[i].Size(); {
		case size < 1<<20:
			resp.SizeDistribution.Tiny++
		case size < 10<<20:
			resp.SizeDistribution.Small++
		case size < 100<<20:
			resp.SizeDistribution.Medium++
		case size < 1<<30:
			resp.SizeDistribution.Large++
		default:
			resp.SizeDistribution.Huge++
		}
	}
	return resp, nil
}

// DateBounds 最早和最晚的文件创建日期
func (s *FileService) DateBounds(userID string, provider oauth.Provider, accountID string) (*dto.DateBoundsResponse, error) {
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}
	oldest, newest, count, err := s.fileRepo.CreatedBounds(userID, accountID)
	if err != nil {
		return nil, err
	}
	resp := &dto.DateBoundsResponse{TotalFiles: count}
	if count > 0 {
		resp.DateRanges = &dto.DateBounds{
			Oldest: oldest.UTC().Format(dateLayout),
			Newest: newest.UTC().Format(dateLayout),
		}
	}
	return resp, nil
}

// FilterByDate 按创建日期筛选，并按今天/昨天/近一周/近一月/更早分组
func (s *FileService) FilterByDate(userID string, provider oauth.Provider, accountID string, req *dto.DateFilterRequest) (*dto.DateFilterResponse, error) {
	q := repository.FileQuery{}
	var start, end time.Time
	if req.StartDate != "" {
		t, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return nil, apperr.Validation("Validation failed", map[string][]string{"start_date": {"Must be a date in YYYY-MM-DD format"}})
		}
		start = t
		q.CreatedFrom = &start
	}
	if req.EndDate != "" {
		t, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return nil, apperr.Validation("Validation failed", map[string][]string{"end_date": {"Must be a date in YYYY-MM-DD format"}})
		}
		end = t.Add(24*time.Hour - time.Millisecond)
		q.CreatedTo = &end
	}
	if q.CreatedFrom != nil && q.CreatedTo != nil && start.After(end) {
		return nil, apperr.Validation("Validation failed", map[string][]string{"start_date": {"Must not be after end_date"}})
	}
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}

	files, err := s.fileRepo.List(userID, accountID, q)
	if err != nil {
		return nil, err
	}

	resp := &dto.DateFilterResponse{
		Files:      files,
		Count:      len(files),
		Filter:     dto.DateFilter{StartDate: req.StartDate, EndDate: req.EndDate},
		Statistics: statistics(files),
	}
	if req.StartDate != "" && req.EndDate != "" {
		days := int(math.Ceil(end.Sub(start).Hours() / 24))
		resp.Filter.DaysInRange = &days
	}

	today := s.now().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	lastWeek := today.AddDate(0, 0, -7)
	lastMonth := today.AddDate(0, -1, 0)
	for i := range files {
		switch created := files[i].FileCreatedTime; {
		case !created.Before(today):
			resp.GroupedByPeriod.Today++
		case !created.Before(yesterday):
			resp.GroupedByPeriod.Yesterday++
		case !created.Before(lastWeek):
			resp.GroupedByPeriod.LastWeek++
		case !created.Before(lastMonth):
			resp.GroupedByPeriod.LastMonth++
		default:
			resp.GroupedByPeriod.Older++
		}
	}
	return resp, nil
}

// Search 文件名、类型或路径包含关键字，不区分大小写
func (s *FileService) Search(userID string, provider oauth.Provider, accountID string, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperr.Validation("Validation failed", map[string][]string{"query": {"Search query is required"}})
	}
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}

	files, err := s.fileRepo.List(userID, accountID, repository.FileQuery{Search: query})
	if err != nil {
		return nil, err
	}
	return &dto.SearchResponse{
		Query:       query,
		SearchTerms: strings.Fields(strings.ToLower(query)),
		Files:       files,
		Count:       len(files),
		Statistics:  statistics(files),
	}, nil
}

// Duplicates 按 MD5 分组查找重复文件，每组最早的文件视为原件
func (s *FileService) Duplicates(userID string, provider oauth.Provider, accountID string) (*dto.DuplicatesResponse, error) {
	if err := s.authorize(userID, provider, accountID); err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListWithChecksum(userID, accountID)
	if err != nil {
		return nil, err
	}

	groups := map[string][]model.DriveFile{}
	var order []string
	for _, f := range files {
		sum := *f.MD5Checksum
		if _, ok := groups[sum]; !ok {
			order = append(order, sum)
		}
		groups[sum] = append(groups[sum], f)
	}

	resp := &dto.DuplicatesResponse{
		Files:           []model.DriveFile{},
		DuplicateGroups: []dto.DuplicateGroup{},
	}
	for _, sum := range order {
		group := groups[sum]
		if len(group) < 2 {
			continue
		}
		resp.DuplicateGroups = append(resp.DuplicateGroups, dto.DuplicateGroup{MD5Checksum: sum, Count: len(group), Files: group})
		resp.Files = append(resp.Files, group...)
		for _, f := range group[1:] {
			resp.TotalSavingsBytes += f.Size()
		}
	}
	sort.SliceStable(resp.DuplicateGroups, func(i, j int) bool {
		return resp.DuplicateGroups[i].Count > resp.DuplicateGroups[j].Count
	})
	resp.Count = len(resp.Files)
	resp.TotalSavingsGB = math.Round(float64(resp.TotalSavingsBytes)/(1<<30)*100) / 100
	return resp, nil
}

func (s *FileService) authorize(userID string, provider oauth.Provider, accountID string) error {
	if _, err := s.driveRepo.GetForUser(accountID, userID, string(provider)); err != nil {
		return notFoundOr(err, "Drive account")
	}
	return nil
}

func statistics(files []model.DriveFile) dto.FileStatistics {
	st := dto.FileStatistics{TotalFiles: len(files)}
	for i := range files {
		st.TotalSize += files[i].Size()
		created := files[i].FileCreatedTime
		if st.OldestFile == nil || created.Before(*st.OldestFile) {
			st.OldestFile = &created
		}
		if st.NewestFile == nil || created.After(*st.NewestFile) {
			st.NewestFile = &created
		}
	}
	if len(files) > 0 {
		st.AverageSize = float64(st.TotalSize) / float64(len(files))
	}
	st.TotalSizeFormatted = FormatFileSize(float64(st.TotalSize))
	st.AverageSizeFormatted = FormatFileSize(st.AverageSize)
	return st
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize 1024 进制，保留两位小数
func FormatFileSize(bytes float64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := 0
	for bytes >= 1024 && i < len(sizeUnits)-1 {
		bytes /= 1024
		i++
	}
	v := math.Round(bytes*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// MimeTypeLabel 展示用的类型名称
func MimeTypeLabel(mimeType string) string {
	sub := ""
	if parts := strings.SplitN(mimeType, "/", 2); len(parts) == 2 {
		sub = parts[1]
	}
	switch {
	case strings.Contains(mimeType, "google-apps.document"):
		return "Google Doc"
	case strings.Contains(mimeType, "google-apps.spreadsheet"):
		return "Google Sheet"
	case strings.Contains(mimeType, "google-apps.presentation"):
		return "Google Slides"
	case strings.Contains(mimeType, "google-apps.folder"):
		return "Folder"
	case strings.Contains(mimeType, "pdf"):
		return "PDF"
	case strings.Contains(sub, "word"):
		return "Word"
	case strings.Contains(sub, "excel"):
		return "Excel"
	case strings.Contains(sub, "powerpoint"):
		return "PowerPoint"
	}
	return nonAlnum.ReplaceAllString(strings.ToUpper(sub), " ")
}

// MimeTypeCategory 类型分组
func MimeTypeCategory(mimeType string) string {
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(mimeType, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("image"):
		return "Images"
	case has("video"):
		return "Videos"
	case has("audio"):
		return "Audio"
	case has("pdf", "document", "word"):
		return "Documents"
	case has("spreadsheet", "excel"):
		return "Spreadsheets"
	case has("presentation", "powerpoint"):
		return "Presentations"
	case has("zip", "rar", "compressed"):
		return "Archives"
	case has("text"):
		return "Text Files"
	}
	return "Other"
}

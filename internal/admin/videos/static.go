package videos

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// StaticService keeps an in-memory library for local development and tests. Any input
// without a BVID is rejected the way the backend rejects unparseable URLs.
type StaticService struct {
	mu          sync.Mutex
	role        rbac.Role
	used        int
	videos      []Video
	permissions map[string]bool
	nextID      int
	now         func() time.Time
}

// NewStaticService returns a StaticService whose quota follows role.
func NewStaticService(role rbac.Role) *StaticService {
	now := time.Now().UTC()
	s := &StaticService{
		role:        rbac.NormaliseRole(string(role)),
		permissions: make(map[string]bool),
		nextID:      1,
		now:         time.Now,
	}
	for i, seed := range []struct {
		bvid, title, owner, status string
		quality                    Quality
		size, duration             int64
	}{
		{"BV1GJ411x7h7", "Never Gonna Give You Up", "RickAstleyOfficial", StatusCompleted, Quality1080P, 52_428_800, 213},
		{"BV1xx411c7mD", "Go concurrency patterns", "gopher-talks", StatusCompleted, Quality720P, 104_857_600, 1_860},
		{"BV1yy411c7mE", "Mountain timelapse 4K", "skyline", StatusDownloading, Quality4K, 0, 300},
	} {
		s.videos = append(s.videos, Video{
			ID:           backend.ID(strconv.Itoa(s.nextID)),
			BVID:         seed.bvid,
			Title:        seed.title,
			OwnerName:    seed.owner,
			Pic:          "https://i0.hdslb.com/bfs/archive/" + seed.bvid + ".jpg",
			Status:       seed.status,
			Quality:      seed.quality,
			DownloadMode: ModeAuto,
			FileSize:     backend.Int(seed.size),
			Duration:     backend.Int(seed.duration),
			FilePath:     "/data/videos/" + seed.bvid + ".mp4",
			CreatedAt:    backend.Time{Time: now.Add(-time.Duration(3-i) * time.Hour)},
		})
		s.nextID++
	}
	return s
}

// SetUsed overrides today's consumed permission requests.
func (s *StaticService) SetUsed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = n
}

func rejected(code int, message string) error {
	return &backend.APIError{Status: http.StatusOK, Code: code, Message: message}
}

// Parse returns synthetic metadata for any input carrying a BVID.
func (s *StaticService) Parse(_ context.Context, token, rawURL string, _ Quality) (*Info, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	bvid := ExtractBVID(rawURL)
	if bvid == "" {
		return nil, fmt.Errorf("videos: parse: %w", rejected(http.StatusBadRequest, "Invalid video URL"))
	}
	return &Info{
		BVID:     bvid,
		Title:    "Video " + bvid,
		Pic:      "https://i1.hdslb.com/bfs/archive/" + bvid + ".jpg",
		Desc:     "Parsed offline",
		Duration: 120,
		Pubdate:  backend.Int(s.now().Add(-24 * time.Hour).Unix()),
		Owner:    Owner{MID: 1, Name: "uploader"},
		Stat:     Stat{View: 1200, Like: 80},
		Pages:    []Part{{CID: 1, Page: 1, Part: "P1", Duration: 120}},
	}, nil
}

// Process stores a completed video.
func (s *StaticService) Process(ctx context.Context, token string, req ProcessRequest) (*Video, error) {
	info, err := s.Parse(ctx, token, req.URL, req.Quality)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.storeLocked(info, req.Quality, req.Mode)
	return &v, nil
}

func (s *StaticService) storeLocked(info *Info, q Quality, m Mode) Video {
	if q == 0 {
		q = DefaultQuality
	}
	if m == "" {
		m = DefaultMode
	}
	v := Video{
		ID:           backend.ID(strconv.Itoa(s.nextID)),
		BVID:         info.BVID,
		Title:        info.Title,
		Pic:          info.Pic,
		OwnerName:    info.Owner.Name,
		Duration:     info.Duration,
		Quality:      q,
		DownloadMode: m,
		Status:       StatusCompleted,
		FilePath:     "/data/videos/" + info.BVID + ".mp4",
		FileSize:     10 << 20,
		CreatedAt:    backend.Time{Time: s.now().UTC()},
	}
	s.nextID++
	s.videos = append(s.videos, v)
	return v
}

// BatchProcess processes each URL independently.
func (s *StaticService) BatchProcess(ctx context.Context, token string, req BatchRequest) (*BatchResult, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	result := &BatchResult{}
	for _, u := range req.URLs {
		v, err := s.Process(ctx, token, ProcessRequest{URL: u, Quality: req.Quality, Mode: req.Mode})
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{URL: u, Error: backend.Message(err, "Processing failed")})
			continue
		}
		result.Success = append(result.Success, BatchSuccess{URL: u, Result: v})
	}
	return result, nil
}

// Available pages over the completed videos.
func (s *StaticService) Available(_ context.Context, token string, limit, offset int) (*Page, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ready []Video
	for _, v := range s.videos {
		if v.Status == StatusCompleted {
			ready = append(ready, v)
		}
	}
	page := &Page{Total: len(ready), Limit: limit, Offset: offset}
	if offset < len(ready) {
		end := offset + limit
		if end > len(ready) {
			end = len(ready)
		}
		page.Videos = append([]Video(nil), ready[offset:end]...)
		page.HasMore = end < len(ready)
	}
	return page, nil
}

// UserList returns every stored video.
func (s *StaticService) UserList(_ context.Context, token string) ([]Video, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Video(nil), s.videos...), nil
}

func (s *StaticService) statusLocked() quota.Status {
	limit := quota.Tier(s.role)
	st := quota.Status{
		UserRole:   string(s.role),
		TotalLimit: limit,
		UsedCount:  s.used,
		ResetTime:  nextMidnight(s.now()).Format(time.RFC3339),
	}
	n, finite := limit.Value()
	st.CanApply = !finite || s.used < n
	return st
}

// RequestPermission grants access while the daily quota allows it.
func (s *StaticService) RequestPermission(_ context.Context, token, bvid string) (string, error) {
	if token == "" {
		return "", backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissions[bvid] {
		return "You already have access to this video", nil
	}
	if !s.statusLocked().Allowed() {
		return "", fmt.Errorf("videos: request permission %s: %w", bvid, rejected(http.StatusForbidden, "Daily request limit reached"))
	}
	s.permissions[bvid] = true
	s.used++
	return "Download permission granted", nil
}

// Permission reports a previously granted permission.
func (s *StaticService) Permission(_ context.Context, token, bvid string) (*Permission, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.permissions[bvid] {
		return &Permission{}, nil
	}
	return &Permission{HasPermission: true, RelationType: "requested", RelationDesc: "Requested by you"}, nil
}

// DailyLimit reports the quota derived from the configured role.
func (s *StaticService) DailyLimit(_ context.Context, token string) (*quota.Status, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statusLocked()
	return &st, nil
}

// GenerateDownloadLink returns a link valid for one hour.
func (s *StaticService) GenerateDownloadLink(_ context.Context, token, fileName string) (*DownloadLink, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	if fileName == "" {
		return nil, rejected(http.StatusBadRequest, "File name is required")
	}
	return &DownloadLink{
		DownloadURL: "/downloads/" + fileName + "?token=offline",
		Token:       "offline",
		ExpiresAt:   backend.Time{Time: s.now().Add(time.Hour).UTC()},
	}, nil
}

// Delete removes a stored video.
func (s *StaticService) Delete(_ context.Context, token, id string, deleteFile bool) (string, error) {
	if token == "" {
		return "", backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.videos {
		if v.ID.String() == id {
			s.videos = append(s.videos[:i], s.videos[i+1:]...)
			if deleteFile {
				return "Video and file deleted", nil
			}
			return "Video deleted", nil
		}
	}
	return "", rejected(http.StatusNotFound, "Video not found")
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

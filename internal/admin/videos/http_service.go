package videos

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
)

// DefaultPageSize is the available-videos window used when the caller passes no limit.
const DefaultPageSize = 20

// HTTPService implements Service against the backend video endpoints.
type HTTPService struct {
	client *backend.Client
}

// NewHTTPService wires the service to a backend client.
func NewHTTPService(client *backend.Client) *HTTPService {
	return &HTTPService{client: client}
}

func (s *HTTPService) ready(token string) error {
	if s == nil || s.client == nil {
		return backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return backend.ErrUnauthenticated
	}
	return nil
}

// Parse resolves metadata for a video URL or BVID.
func (s *HTTPService) Parse(ctx context.Context, token, rawURL string, quality Quality) (*Info, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	payload := map[string]any{"url": strings.TrimSpace(rawURL), "quality": int(quality)}
	var info Info
	if _, err := s.client.PostJSON(ctx, "videos.parse", "/api/video/parse", token, payload, &info); err != nil {
		return nil, fmt.Errorf("videos: parse: %w", err)
	}
	return &info, nil
}

// Process downloads and stores one video.
func (s *HTTPService) Process(ctx context.Context, token string, req ProcessRequest) (*Video, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	req.URL = strings.TrimSpace(req.URL)
	var video Video
	if _, err := s.client.PostJSON(ctx, "videos.process", "/api/video/process", token, req, &video); err != nil {
		return nil, fmt.Errorf("videos: process: %w", err)
	}
	return &video, nil
}

// BatchProcess processes several URLs in one call.
func (s *HTTPService) BatchProcess(ctx context.Context, token string, req BatchRequest) (*BatchResult, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	var result BatchResult
	if _, err := s.client.PostJSON(ctx, "videos.batch", "/api/video/batch-process", token, req, &result); err != nil {
		return nil, fmt.Errorf("videos: batch process: %w", err)
	}
	return &result, nil
}

// Available lists downloadable videos.
func (s *HTTPService) Available(ctx context.Context, token string, limit, offset int) (*Page, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	var page Page
	if err := s.client.Get(ctx, "videos.available", "/api/video/available", token, query, &page); err != nil {
		return nil, fmt.Errorf("videos: available: %w", err)
	}
	page.Limit = limit
	page.Offset = offset
	return &page, nil
}

// UserList returns the videos processed by the caller.
func (s *HTTPService) UserList(ctx context.Context, token string) ([]Video, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	var list []Video
	if err := s.client.Get(ctx, "videos.user_list", "/api/video/user-list", token, nil, &list); err != nil {
		return nil, fmt.Errorf("videos: user list: %w", err)
	}
	return list, nil
}

// RequestPermission asks for download access to bvid.
func (s *HTTPService) RequestPermission(ctx context.Context, token, bvid string) (string, error) {
	if err := s.ready(token); err != nil {
		return "", err
	}
	res, err := s.client.PostJSON(ctx, "videos.request_permission", "/api/video/add-download-permission", token, map[string]string{"bvid": bvid}, nil)
	if err != nil {
		return "", fmt.Errorf("videos: request permission %s: %w", bvid, err)
	}
	return res.Message, nil
}

// Permission reports the caller's access to bvid.
func (s *HTTPService) Permission(ctx context.Context, token, bvid string) (*Permission, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	var perm Permission
	if err := s.client.Get(ctx, "videos.permission", "/api/video/my-permissions/"+url.PathEscape(bvid), token, nil, &perm); err != nil {
		return nil, fmt.Errorf("videos: permission %s: %w", bvid, err)
	}
	return &perm, nil
}

// DailyLimit returns the caller's quota for today.
func (s *HTTPService) DailyLimit(ctx context.Context, token string) (*quota.Status, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	var status quota.Status
	if err := s.client.Get(ctx, "videos.daily_limit", "/api/video/daily-limit-status", token, nil, &status); err != nil {
		return nil, fmt.Errorf("videos: daily limit: %w", err)
	}
	return &status, nil
}

// GenerateDownloadLink signs a download URL for a stored file.
func (s *HTTPService) GenerateDownloadLink(ctx context.Context, token, fileName string) (*DownloadLink, error) {
	if err := s.ready(token); err != nil {
		return nil, err
	}
	var link DownloadLink
	if _, err := s.client.PostJSON(ctx, "videos.download_link", "/api/video/generate-download-link", token, map[string]string{"fileName": fileName}, &link); err != nil {
		return nil, fmt.Errorf("videos: download link: %w", err)
	}
	return &link, nil
}

// Delete removes a stored video, optionally deleting its file.
func (s *HTTPService) Delete(ctx context.Context, token, id string, deleteFile bool) (string, error) {
	if err := s.ready(token); err != nil {
		return "", err
	}
	query := url.Values{"deleteFile": {strconv.FormatBool(deleteFile)}}
	res, err := s.client.Delete(ctx, "videos.delete", "/api/video/"+url.PathEscape(id), token, query)
	if err != nil {
		return "", fmt.Errorf("videos: delete %s: %w", id, err)
	}
	return res.Message, nil
}

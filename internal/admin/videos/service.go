// Package videos forwards video parsing, processing and library operations to the backend.
package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
)

// Service covers every video operation the console exposes.
type Service interface {
	Parse(ctx context.Context, token, url string, quality Quality) (*Info, error)
	Process(ctx context.Context, token string, req ProcessRequest) (*Video, error)
	BatchProcess(ctx context.Context, token string, req BatchRequest) (*BatchResult, error)
	Available(ctx context.Context, token string, limit, offset int) (*Page, error)
	UserList(ctx context.Context, token string) ([]Video, error)
	RequestPermission(ctx context.Context, token, bvid string) (string, error)
	Permission(ctx context.Context, token, bvid string) (*Permission, error)
	DailyLimit(ctx context.Context, token string) (*quota.Status, error)
	GenerateDownloadLink(ctx context.Context, token, fileName string) (*DownloadLink, error)
	Delete(ctx context.Context, token, id string, deleteFile bool) (string, error)
}

// ProcessRequest asks the backend to download and store one video.
type ProcessRequest struct {
	URL     string  `json:"url"`
	Quality Quality `json:"quality"`
	Mode    Mode    `json:"downloadMode"`
}

// BatchRequest processes several videos in one backend call.
type BatchRequest struct {
	URLs    []string `json:"urls"`
	Quality Quality  `json:"quality"`
	Mode    Mode     `json:"downloadMode"`
}

// Owner is the uploader of a video.
type Owner struct {
	MID  backend.Int `json:"mid"`
	Name string      `json:"name"`
	Face string      `json:"face"`
}

// Stat holds engagement counters.
type Stat struct {
	View     backend.Int `json:"view"`
	Danmaku  backend.Int `json:"danmaku"`
	Reply    backend.Int `json:"reply"`
	Favorite backend.Int `json:"favorite"`
	Coin     backend.Int `json:"coin"`
	Share    backend.Int `json:"share"`
	Like     backend.Int `json:"like"`
}

// Part is one page of a multi-part upload.
type Part struct {
	CID      backend.Int `json:"cid"`
	Page     int         `json:"page"`
	Part     string      `json:"part"`
	Duration backend.Int `json:"duration"`
}

// Info is the metadata returned by Parse.
type Info struct {
	BVID     string      `json:"bvid"`
	AID      backend.Int `json:"aid"`
	Title    string      `json:"title"`
	Pic      string      `json:"pic"`
	Desc     string      `json:"desc"`
	Duration backend.Int `json:"duration"`
	Pubdate  backend.Int `json:"pubdate"`
	Tname    string      `json:"tname"`
	Owner    Owner       `json:"owner"`
	Stat     Stat        `json:"stat"`
	Pages    []Part      `json:"pages"`
}

// Published returns the publish time.
func (i Info) Published() time.Time {
	if i.Pubdate <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(i.Pubdate), 0).UTC()
}

// Download states reported for stored videos.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Statuses lists the library status filter values.
var Statuses = []string{StatusPending, StatusDownloading, StatusCompleted, StatusFailed}

// Video is a processed video stored by the backend.
type Video struct {
	ID            backend.ID   `json:"id"`
	BVID          string       `json:"bvid"`
	AID           backend.Int  `json:"aid"`
	Title         string       `json:"title"`
	Pic           string       `json:"pic"`
	Desc          string       `json:"desc"`
	Duration      backend.Int  `json:"duration"`
	Pubdate       backend.Int  `json:"pubdate"`
	OwnerName     string       `json:"owner_name"`
	OwnerMID      backend.Int  `json:"owner_mid"`
	OwnerFace     string       `json:"owner_face"`
	ViewCount     backend.Int  `json:"view_count"`
	DanmakuCount  backend.Int  `json:"danmaku_count"`
	LikeCount     backend.Int  `json:"like_count"`
	CoinCount     backend.Int  `json:"coin_count"`
	FavoriteCount backend.Int  `json:"favorite_count"`
	Tname         string       `json:"tname"`
	FilePath      string       `json:"file_path"`
	FileSize      backend.Int  `json:"file_size"`
	DownloadURL   string       `json:"download_url"`
	Quality       Quality      `json:"quality"`
	DownloadMode  Mode         `json:"download_mode"`
	Status        string       `json:"status"`
	ErrorMessage  string       `json:"error_message"`
	CreatedAt     backend.Time `json:"created_at"`
	UpdatedAt     backend.Time `json:"updated_at"`
	UserID        backend.Int  `json:"user_id"`
	Tags          []string     `json:"tags"`
}

// UnmarshalJSON accepts download_status as an alias for status.
func (v *Video) UnmarshalJSON(data []byte) error {
	type plain Video
	var raw struct {
		plain
		DownloadStatus string `json:"download_status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("videos: decode video: %w", err)
	}
	*v = Video(raw.plain)
	if v.Status == "" {
		v.Status = raw.DownloadStatus
	}
	v.Status = strings.ToLower(strings.TrimSpace(v.Status))
	return nil
}

// FileName returns the stored file's base name, used to request download links.
func (v Video) FileName() string {
	path := strings.TrimSpace(v.FilePath)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// Ready reports whether the file can be downloaded.
func (v Video) Ready() bool {
	return v.Status == StatusCompleted || (v.Status == "" && v.FilePath != "")
}

// Page is one window of the available-videos listing.
type Page struct {
	Videos  []Video `json:"videos"`
	Total   int     `json:"total"`
	HasMore bool    `json:"hasMore"`
	Limit   int     `json:"-"`
	Offset  int     `json:"-"`
}

// NextOffset returns the offset of the following page.
func (p Page) NextOffset() int { return p.Offset + p.Limit }

// PrevOffset returns the offset of the previous page, never negative.
func (p Page) PrevOffset() int {
	if prev := p.Offset - p.Limit; prev > 0 {
		return prev
	}
	return 0
}

// BatchSuccess is one processed entry of a batch.
type BatchSuccess struct {
	URL    string `json:"url"`
	Result *Video `json:"result,omitempty"`
}

// UnmarshalJSON accepts either {url, result} or a bare video record.
func (s *BatchSuccess) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		URL    string `json:"url"`
		Result *Video `json:"result"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("videos: decode batch entry: %w", err)
	}
	if wrapped.Result == nil {
		var bare Video
		if err := json.Unmarshal(data, &bare); err == nil && bare.BVID != "" {
			wrapped.Result = &bare
		}
	}
	*s = BatchSuccess{URL: wrapped.URL, Result: wrapped.Result}
	return nil
}

// BVID returns the identifier of the processed video.
func (s BatchSuccess) BVID() string {
	if s.Result != nil && s.Result.BVID != "" {
		return s.Result.BVID
	}
	return ExtractBVID(s.URL)
}

// BatchFailure is one rejected entry of a batch.
type BatchFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchResult is the backend outcome of BatchProcess.
type BatchResult struct {
	Success []BatchSuccess `json:"success"`
	Failed  []BatchFailure `json:"failed"`
}

// Summary renders "N succeeded, M failed".
func (r BatchResult) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", len(r.Success), len(r.Failed))
}

// Permission is the caller's access to one video.
type Permission struct {
	HasPermission bool         `json:"hasPermission"`
	RelationType  string       `json:"relationType,omitempty"`
	RelationDesc  string       `json:"relationDesc,omitempty"`
	AddedAt       backend.Time `json:"addedAt"`
	VideoTitle    string       `json:"videoTitle,omitempty"`
}

// DownloadLink is a short-lived signed download URL.
type DownloadLink struct {
	DownloadURL string       `json:"downloadUrl"`
	Token       string       `json:"token"`
	ExpiresAt   backend.Time `json:"expiresAt"`
}

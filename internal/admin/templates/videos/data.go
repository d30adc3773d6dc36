package videos

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

// Option is one entry of a select box.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// QualityOptions lists the quality ladder with selected marked.
func QualityOptions(selected videos.Quality) []Option {
	opts := make([]Option, 0, len(videos.Qualities))
	for _, q := range videos.Qualities {
		opts = append(opts, Option{Value: strconv.Itoa(int(q)), Label: q.Label(), Selected: q == selected})
	}
	return opts
}

// ModeOptions lists the download modes with selected marked.
func ModeOptions(selected videos.Mode) []Option {
	opts := make([]Option, 0, len(videos.Modes))
	for _, m := range videos.Modes {
		opts = append(opts, Option{Value: string(m), Label: m.Label(), Selected: m == selected})
	}
	return opts
}

var descriptionPolicy = bluemonday.StrictPolicy()

// Description sanitises an uploader-supplied description and keeps its line breaks.
func Description(raw string) template.HTML {
	clean := descriptionPolicy.Sanitize(strings.TrimSpace(raw))
	return template.HTML(strings.ReplaceAll(clean, "\n", "<br>"))
}

// ParsePageData is the parse form and its last result.
type ParsePageData struct {
	URL        string
	Qualities  []Option
	Modes      []Option
	Result     *ParseResult
	Error      string
	ParseURL   string
	ProcessURL string
}

// ParseResult is the metadata card with its process form.
type ParseResult struct {
	URL         string
	Info        videos.Info
	Description template.HTML
	Quality     videos.Quality
	Qualities   []Option
	Modes       []Option
	ProcessURL  string
}

// NewParseResult prepares the metadata card for info.
func NewParseResult(rawURL string, info videos.Info, quality videos.Quality, processURL string) *ParseResult {
	return &ParseResult{
		URL:         rawURL,
		Info:        info,
		Description: Description(info.Desc),
		Quality:     quality,
		Qualities:   QualityOptions(quality),
		Modes:       ModeOptions(videos.DefaultMode),
		ProcessURL:  processURL,
	}
}

// ProcessResult is the outcome of processing one video.
type ProcessResult struct {
	Video *videos.Video
	Error string
}

// BatchPageData is the batch form and its last result.
type BatchPageData struct {
	Input     string
	Qualities []Option
	Modes     []Option
	MaxURLs   int
	SubmitURL string
	Result    *BatchView
	Error     string
}

// BatchView is a processed batch.
type BatchView struct {
	Tasks   []videos.Task
	Counts  videos.TaskCounts
	Summary string
	Error   string
}

// NewBatchView tallies tasks.
func NewBatchView(tasks []videos.Task, summary, errText string) *BatchView {
	return &BatchView{Tasks: tasks, Counts: videos.CountTasks(tasks), Summary: summary, Error: errText}
}

// AvailablePageData is one page of downloadable videos.
type AvailablePageData struct {
	Rows    []AvailableRow
	Quota   partials.QuotaCard
	Total   int
	From    int
	To      int
	PrevURL string
	NextURL string
	Error   string
}

// AvailableRow is one video with the caller's permission state.
type AvailableRow struct {
	Video         videos.Video
	HasPermission bool
	Relation      string
	Blocked       bool
	RequestURL    string
	LinkURL       string
}

// AvailablePaging computes the pager links of page below path.
func AvailablePaging(path string, page *videos.Page) (from, to int, prev, next string) {
	if page == nil || len(page.Videos) == 0 {
		return 0, 0, "", ""
	}
	from = page.Offset + 1
	to = page.Offset + len(page.Videos)
	query := func(offset int) string {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(page.Limit))
		q.Set("offset", strconv.Itoa(offset))
		return path + "?" + q.Encode()
	}
	if page.Offset > 0 {
		prev = query(page.PrevOffset())
	}
	if page.HasMore || (page.Total > 0 && to < page.Total) {
		next = query(page.NextOffset())
	}
	return from, to, prev, next
}

// LibraryPageData is the filtered video library.
type LibraryPageData struct {
	Filter    videos.Filter
	Videos    []videos.Video
	Stats     videos.Stats
	Statuses  []Option
	Qualities []Option
	Sorts     []Option
	Error     string
	BaseURL   string
	CanDelete bool
	// ShowRequester adds the requesting console user to every row.
	ShowRequester bool
}

// NewLibraryPageData applies filter to list.
func NewLibraryPageData(list []videos.Video, filter videos.Filter, baseURL string, canDelete bool) LibraryPageData {
	shown := filter.Apply(list)
	statuses := []Option{{Value: "", Label: "All statuses", Selected: filter.Status == ""}}
	for _, s := range videos.Statuses {
		statuses = append(statuses, Option{Value: s, Label: s, Selected: filter.Status == s})
	}
	qualities := []Option{{Value: "", Label: "All qualities", Selected: filter.Quality == 0}}
	for _, q := range videos.Qualities {
		qualities = append(qualities, Option{Value: strconv.Itoa(int(q)), Label: q.Label(), Selected: filter.Quality == q})
	}
	sort := filter.Sort
	if sort == "" {
		sort = videos.SortNewest
	}
	var sorts []Option
	for _, s := range []struct{ value, label string }{
		{videos.SortNewest, "Newest first"},
		{videos.SortOldest, "Oldest first"},
		{videos.SortTitle, "Title"},
		{videos.SortSize, "Largest first"},
	} {
		sorts = append(sorts, Option{Value: s.value, Label: s.label, Selected: sort == s.value})
	}
	return LibraryPageData{
		Filter:    filter,
		Videos:    shown,
		Stats:     videos.Summarise(shown),
		Statuses:  statuses,
		Qualities: qualities,
		Sorts:     sorts,
		BaseURL:   baseURL,
		CanDelete: canDelete,
	}
}

// DownloadLinkView is the generated link swapped into a library row, either as a link or a player.
type DownloadLinkView struct {
	Title     string
	URL       string
	ExpiresAt string
	Error     string
}

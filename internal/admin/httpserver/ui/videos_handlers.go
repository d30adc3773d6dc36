package ui

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
	videostpl "github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/videos"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

const (
	msgEnterURL      = "Enter a video link or BVID."
	msgBadQuality    = "Choose a quality from the list."
	msgBadMode       = "Choose a download mode from the list."
	msgQuotaExceeded = "Daily permission limit reached. Try again after the reset."
)

// ParsePage renders the parse form.
func (h *Handlers) ParsePage(w http.ResponseWriter, r *http.Request) {
	render(w, r, videostpl.Parse(h.parsePageData(r, strings.TrimSpace(r.URL.Query().Get("url")), videos.DefaultQuality)), http.StatusOK)
}

// ParseSubmit fetches metadata for one video. htmx requests receive the result card only.
func (h *Handlers) ParseSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	rawURL := strings.TrimSpace(r.PostFormValue("url"))
	quality, qualityOK := videos.ParseQuality(r.PostFormValue("quality"))
	data := h.parsePageData(r, rawURL, quality)

	switch {
	case rawURL == "":
		data.Error = msgEnterURL
	case !qualityOK:
		data.Error = msgBadQuality
	default:
		info, err := h.videos.Parse(r.Context(), user.Token, rawURL, quality)
		if err != nil {
			observability.FromContext(r.Context()).Info("videos: parse failed", zap.String("url", rawURL), zap.Error(err))
			data.Error = backend.Message(err, "The video could not be parsed.")
		} else {
			data.Result = videostpl.NewParseResult(rawURL, *info, quality, data.ProcessURL)
		}
	}

	if custommw.IsHTMXRequest(r.Context()) {
		if data.Result == nil {
			render(w, r, videostpl.ParseErrorFragment(data.Error), http.StatusOK)
			return
		}
		render(w, r, videostpl.ParseResultFragment(data.Result), http.StatusOK)
		return
	}
	render(w, r, videostpl.Parse(data), http.StatusOK)
}

// ProcessSubmit downloads and stores one parsed video.
func (h *Handlers) ProcessSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, errText := processRequest(r)
	var result videostpl.ProcessResult
	if errText != "" {
		result.Error = errText
	} else {
		video, err := h.videos.Process(r.Context(), user.Token, req)
		if err != nil {
			observability.FromContext(r.Context()).Warn("videos: process failed", zap.String("url", req.URL), zap.Error(err))
			result.Error = backend.Message(err, "The video could not be processed.")
		} else {
			result.Video = video
			custommw.Toast(w, "Stored "+firstNonEmpty(video.Title, video.BVID)+".", custommw.ToneSuccess)
		}
	}
	if result.Error != "" {
		custommw.Toast(w, result.Error, custommw.ToneDanger)
	}
	render(w, r, videostpl.ProcessResultFragment(result), http.StatusOK)
}

// BatchPage renders the batch form.
func (h *Handlers) BatchPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, videostpl.Batch(h.batchPageData(r, "", videos.DefaultQuality, videos.DefaultMode)), http.StatusOK)
}

// BatchSubmit processes up to videos.MaxBatchSize URLs in one backend call.
func (h *Handlers) BatchSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	input := r.PostFormValue("urls")
	quality, qualityOK := videos.ParseQuality(r.PostFormValue("quality"))
	mode, modeOK := videos.ParseMode(r.PostFormValue("mode"))
	data := h.batchPageData(r, input, quality, mode)

	urls, err := videos.ParseBatchInput(input)
	switch {
	case errors.Is(err, videos.ErrEmptyBatch):
		data.Error = msgEnterURL
	case errors.Is(err, videos.ErrBatchTooLarge):
		data.Error = "Submit at most " + strconv.Itoa(videos.MaxBatchSize) + " links per batch."
	case err != nil:
		data.Error = err.Error()
	case !qualityOK:
		data.Error = msgBadQuality
	case !modeOK:
		data.Error = msgBadMode
	default:
		tasks := videos.PlanBatch(urls)
		res, err := h.videos.BatchProcess(r.Context(), user.Token, videos.BatchRequest{URLs: urls, Quality: quality, Mode: mode})
		if err != nil {
			observability.FromContext(r.Context()).Warn("videos: batch failed", zap.Int("urls", len(urls)), zap.Error(err))
			msg := backend.Message(err, "The batch could not be processed.")
			data.Result = videostpl.NewBatchView(videos.FailAll(tasks, msg), "", msg)
			custommw.Toast(w, msg, custommw.ToneDanger)
		} else {
			summary := res.Summary()
			data.Result = videostpl.NewBatchView(videos.ApplyBatchResult(tasks, *res), summary, "")
			tone := custommw.ToneSuccess
			if len(res.Failed) > 0 {
				tone = custommw.ToneWarning
			}
			custommw.Toast(w, summary, tone)
		}
	}

	if custommw.IsHTMXRequest(r.Context()) {
		view := data.Result
		if view == nil {
			view = videostpl.NewBatchView(nil, "", data.Error)
		}
		render(w, r, videostpl.BatchResultFragment(view), http.StatusOK)
		return
	}
	render(w, r, videostpl.Batch(data), http.StatusOK)
}

// AvailablePage lists downloadable videos with the caller's access and quota.
func (h *Handlers) AvailablePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), videos.DefaultPageSize)
	offset := queryInt(q.Get("offset"), 0)

	status, quotaErr := h.videos.DailyLimit(ctx, user.Token)
	data := videostpl.AvailablePageData{Quota: h.quotaCard(r, status, quotaErr)}
	blocked := quotaErr == nil && status != nil && !status.Allowed()

	page, err := h.videos.Available(ctx, user.Token, limit, offset)
	if err != nil {
		logger.Warn("videos: available failed", zap.Error(err))
		data.Error = backend.Message(err, "Available videos could not be loaded.")
		render(w, r, videostpl.Available(data), http.StatusOK)
		return
	}

	for _, v := range page.Videos {
		row := videostpl.AvailableRow{
			Video:      v,
			Blocked:    blocked,
			RequestURL: consolePathf(ctx, "/videos/available", v.BVID, "permission"),
		}
		if perm, err := h.videos.Permission(ctx, user.Token, v.BVID); err != nil {
			logger.Debug("videos: permission lookup failed", zap.String("bvid", v.BVID), zap.Error(err))
		} else {
			row.HasPermission = perm.HasPermission
			row.Relation = firstNonEmpty(perm.RelationDesc, perm.RelationType)
		}
		data.Rows = append(data.Rows, row)
	}
	data.Total = page.Total
	data.From, data.To, data.PrevURL, data.NextURL = videostpl.AvailablePaging(consolePath(ctx, "/videos/available"), page)
	render(w, r, videostpl.Available(data), http.StatusOK)
}

// QuotaCard re-renders the quota widget after a quota-changed event.
func (h *Handlers) QuotaCard(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	status, err := h.videos.DailyLimit(r.Context(), user.Token)
	render(w, r, partials.QuotaFragment(h.quotaCard(r, status, err)), http.StatusOK)
}

// RequestPermission asks for access to one video. Requests are refused locally once the daily
// quota is exhausted.
func (h *Handlers) RequestPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	bvid := chi.URLParam(r, "bvid")
	row := videostpl.AvailableRow{
		Video:      videos.Video{BVID: bvid},
		RequestURL: consolePathf(ctx, "/videos/available", bvid, "permission"),
	}

	status, err := h.videos.DailyLimit(ctx, user.Token)
	if err != nil {
		logger.Info("videos: daily limit unavailable before permission request", zap.Error(err))
	} else if status != nil && !status.Allowed() {
		custommw.Toast(w, msgQuotaExceeded, custommw.ToneWarning)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	msg, err := h.videos.RequestPermission(ctx, user.Token, bvid)
	if err != nil {
		logger.Warn("videos: permission request failed", zap.String("bvid", bvid), zap.Error(err))
		custommw.Toast(w, backend.Message(err, "Access could not be requested."), custommw.ToneDanger)
		render(w, r, videostpl.AvailableAccessFragment(row), http.StatusOK)
		return
	}

	row.HasPermission = true
	if perm, err := h.videos.Permission(ctx, user.Token, bvid); err == nil {
		row.Relation = firstNonEmpty(perm.RelationDesc, perm.RelationType)
	}
	custommw.Trigger(w, "quota-changed", nil)
	custommw.Toast(w, firstNonEmpty(msg, "Access granted."), custommw.ToneSuccess)
	render(w, r, videostpl.AvailableAccessFragment(row), http.StatusOK)
}

// LibraryPage renders the caller's stored videos filtered by the query string.
func (h *Handlers) LibraryPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := videos.Filter{
		Query:  strings.TrimSpace(q.Get("q")),
		Status: strings.TrimSpace(q.Get("status")),
		Sort:   strings.TrimSpace(q.Get("sort")),
	}
	if raw := strings.TrimSpace(q.Get("quality")); raw != "" {
		if quality, ok := videos.ParseQuality(raw); ok {
			filter.Quality = quality
		}
	}

	list, err := h.videos.UserList(r.Context(), user.Token)
	data := videostpl.NewLibraryPageData(list, filter, consolePath(r.Context(), "/videos/library"), user.Can(rbac.CapVideosDelete))
	data.ShowRequester = user.Can(rbac.CapVideosManage)
	if err != nil {
		observability.FromContext(r.Context()).Warn("videos: library failed", zap.Error(err))
		data.Error = backend.Message(err, "The video library could not be loaded.")
	}
	render(w, r, videostpl.Library(data), http.StatusOK)
}

// DownloadLink issues a short-lived link for a stored file.
func (h *Handlers) DownloadLink(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	render(w, r, videostpl.DownloadLinkFragment(h.issueLink(r, user.Token)), http.StatusOK)
}

// PlayVideo swaps an inline player into a library row, streaming from a fresh download link.
func (h *Handlers) PlayVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	render(w, r, videostpl.PlayerFragment(h.issueLink(r, user.Token)), http.StatusOK)
}

func (h *Handlers) issueLink(r *http.Request, token string) videostpl.DownloadLinkView {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	var view videostpl.DownloadLinkView

	video, err := h.findVideo(r, token, id)
	switch {
	case err != nil:
		view.Error = backend.Message(err, "The video library could not be loaded.")
	case video == nil:
		view.Error = "This video is no longer in the library."
	case !video.Ready() || video.FileName() == "":
		view.Title = video.Title
		view.Error = "The file is not ready yet."
	default:
		view.Title = video.Title
		link, err := h.videos.GenerateDownloadLink(ctx, token, video.FileName())
		if err != nil {
			observability.FromContext(ctx).Warn("videos: download link failed", zap.String("id", id), zap.Error(err))
			view.Error = backend.Message(err, "A download link could not be created.")
		} else {
			view.URL = link.DownloadURL
			if !link.ExpiresAt.IsZero() {
				view.ExpiresAt = link.ExpiresAt.Local().Format("2006-01-02 15:04")
			}
		}
	}
	return view
}

// LibraryDelete removes a video, optionally with its file. The emptied response drops the row.
func (h *Handlers) LibraryDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	deleteFile := strings.EqualFold(r.URL.Query().Get("deleteFile"), "true")
	msg, err := h.videos.Delete(r.Context(), user.Token, id, deleteFile)
	if err != nil {
		observability.FromContext(r.Context()).Warn("videos: delete failed", zap.String("id", id), zap.Error(err))
		custommw.Toast(w, backend.Message(err, "The video could not be removed."), custommw.ToneDanger)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	custommw.Toast(w, firstNonEmpty(msg, "Video removed."), custommw.ToneSuccess)
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) findVideo(r *http.Request, token, id string) (*videos.Video, error) {
	list, err := h.videos.UserList(r.Context(), token)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID.String() == id {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (h *Handlers) quotaCard(r *http.Request, status *quota.Status, err error) partials.QuotaCard {
	refresh := consolePath(r.Context(), "/videos/quota")
	if err != nil {
		observability.FromContext(r.Context()).Warn("videos: daily limit failed", zap.Error(err))
		return partials.NewQuotaCard(nil, backend.Message(err, "The daily quota could not be loaded."), refresh)
	}
	return partials.NewQuotaCard(status, "", refresh)
}

func (h *Handlers) parsePageData(r *http.Request, rawURL string, quality videos.Quality) videostpl.ParsePageData {
	return videostpl.ParsePageData{
		URL:        rawURL,
		Qualities:  videostpl.QualityOptions(quality),
		Modes:      videostpl.ModeOptions(videos.DefaultMode),
		ParseURL:   consolePath(r.Context(), "/videos/parse"),
		ProcessURL: consolePath(r.Context(), "/videos/process"),
	}
}

func (h *Handlers) batchPageData(r *http.Request, input string, quality videos.Quality, mode videos.Mode) videostpl.BatchPageData {
	return videostpl.BatchPageData{
		Input:     input,
		Qualities: videostpl.QualityOptions(quality),
		Modes:     videostpl.ModeOptions(mode),
		MaxURLs:   videos.MaxBatchSize,
		SubmitURL: consolePath(r.Context(), "/videos/batch"),
	}
}

func processRequest(r *http.Request) (videos.ProcessRequest, string) {
	rawURL := strings.TrimSpace(r.PostFormValue("url"))
	if rawURL == "" {
		return videos.ProcessRequest{}, msgEnterURL
	}
	quality, ok := videos.ParseQuality(r.PostFormValue("quality"))
	if !ok {
		return videos.ProcessRequest{}, msgBadQuality
	}
	mode, ok := videos.ParseMode(r.PostFormValue("mode"))
	if !ok {
		return videos.ProcessRequest{}, msgBadMode
	}
	return videos.ProcessRequest{URL: rawURL, Quality: quality, Mode: mode}, ""
}

func queryInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

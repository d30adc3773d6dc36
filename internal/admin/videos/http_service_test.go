package videos_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

func newService(t *testing.T, handler http.HandlerFunc) *videos.HTTPService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := backend.NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return videos.NewHTTPService(client)
}

func TestHTTPServiceProcessSendsModeAndQuality(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/video/process", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "BV1xx411c7mD", body["url"])
		require.EqualValues(t, 64, body["quality"])
		require.Equal(t, "audio_only", body["downloadMode"])
		_, _ = io.WriteString(w, `{"code":200,"data":{"id":"5","bvid":"BV1xx411c7mD","status":"completed"}}`)
	})

	v, err := svc.Process(context.Background(), "tok", videos.ProcessRequest{URL: " BV1xx411c7mD ", Quality: videos.Quality720P, Mode: videos.ModeAudioOnly})
	require.NoError(t, err)
	require.Equal(t, "5", v.ID.String())
}

func TestHTTPServiceAvailablePaginates(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/video/available", r.URL.Path)
		require.Equal(t, "20", r.URL.Query().Get("limit"))
		require.Equal(t, "40", r.URL.Query().Get("offset"))
		_, _ = io.WriteString(w, `{"code":200,"data":{"videos":[{"bvid":"BV1"}],"total":41,"hasMore":false}}`)
	})

	page, err := svc.Available(context.Background(), "tok", 0, 40)
	require.NoError(t, err)
	require.Equal(t, 41, page.Total)
	require.Len(t, page.Videos, 1)
	require.Equal(t, 60, page.NextOffset())
	require.Equal(t, 20, page.PrevOffset())
}

func TestHTTPServiceDailyLimitUnlimited(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/video/daily-limit-status", r.URL.Path)
		_, _ = io.WriteString(w, `{"code":200,"data":{"userRole":"4","totalLimit":"无限制","usedCount":7,"remaining":"无限制","canApply":true}}`)
	})

	status, err := svc.DailyLimit(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, status.TotalLimit.IsUnlimited())
	require.Equal(t, "unlimited", status.RemainingLabel())
	require.True(t, status.Allowed())
}

func TestHTTPServiceDeleteAndPermission(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/video/12":
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "true", r.URL.Query().Get("deleteFile"))
			_, _ = io.WriteString(w, `{"code":200,"message":"deleted"}`)
		case "/api/video/my-permissions/BV1xx411c7mD":
			_, _ = io.WriteString(w, `{"code":200,"data":{"hasPermission":true,"relationDesc":"owner"}}`)
		case "/api/video/add-download-permission":
			_, _ = io.WriteString(w, `{"code":403,"message":"Daily limit reached"}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	msg, err := svc.Delete(context.Background(), "tok", "12", true)
	require.NoError(t, err)
	require.Equal(t, "deleted", msg)

	perm, err := svc.Permission(context.Background(), "tok", "BV1xx411c7mD")
	require.NoError(t, err)
	require.True(t, perm.HasPermission)
	require.Equal(t, "owner", perm.RelationDesc)

	_, err = svc.RequestPermission(context.Background(), "tok", "BV1xx411c7mD")
	require.Equal(t, backend.KindRejected, backend.KindOf(err))
	require.Equal(t, "Daily limit reached", backend.Message(err, ""))
}

func TestHTTPServiceRequiresToken(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})
	_, err := svc.UserList(context.Background(), "")
	require.ErrorIs(t, err, backend.ErrUnauthenticated)
}

package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

func newClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := backend.NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return client
}

func TestClientDecodesSuccessEnvelope(t *testing.T) {
	t.Parallel()

	var receivedAuth string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bilibili/accounts", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "20", r.URL.Query().Get("limit"))
		receivedAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":[{"id":7,"nickname":"alice"}]}`)
	})

	var out []struct {
		ID       int    `json:"id"`
		Nickname string `json:"nickname"`
	}
	res, err := client.Do(context.Background(), backend.Call{
		Op:    "accounts.list",
		Path:  "/api/bilibili/accounts",
		Query: url.Values{"limit": {"20"}},
		Token: "tok",
	}, &out)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "Bearer tok", receivedAuth)
	require.Len(t, out, 1)
	require.Equal(t, "alice", out[0].Nickname)
}

func TestClientSendsJSONBody(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "https://www.bilibili.com/video/BV1xx411c7mD?p=1&t=2", payload["url"])
		_, _ = io.WriteString(w, `{"code":201,"message":"created"}`)
	})

	res, err := client.Do(context.Background(), backend.Call{
		Method: http.MethodPost,
		Path:   "/api/video/parse",
		Body:   map[string]string{"url": "https://www.bilibili.com/video/BV1xx411c7mD?p=1&t=2"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 201, res.Code)
}

func TestClientRejectedEnvelope(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":403,"message":"quota exhausted"}`)
	})

	_, err := client.Do(context.Background(), backend.Call{Path: "/api/video/x"}, nil)
	require.Error(t, err)

	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 403, apiErr.Code)
	require.Equal(t, backend.KindRejected, backend.KindOf(err))
	require.Equal(t, "quota exhausted", backend.Message(err, "fallback"))
}

func TestClientTruncatesPlainErrorBodiesOnRuneBoundaries(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("下载失败", 60)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, body)
	})

	_, err := client.Do(context.Background(), backend.Call{Path: "/api/video/x"}, nil)
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.True(t, utf8.ValidString(apiErr.Message))
	require.Equal(t, strings.Repeat("下载失败", 50)+"…", apiErr.Message)

	short := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "  服务器内部错误  ")
	})
	_, err = short.Do(context.Background(), backend.Call{Path: "/api/video/x"}, nil)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "服务器内部错误", apiErr.Message)
}

func TestClientUnauthenticated(t *testing.T) {
	t.Parallel()

	t.Run("http status", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.Do(context.Background(), backend.Call{Path: "/api/status"}, nil)
		require.ErrorIs(t, err, backend.ErrUnauthenticated)
	})

	t.Run("envelope code", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"code":401,"message":"token expired"}`)
		})
		_, err := client.Do(context.Background(), backend.Call{Path: "/api/status"}, nil)
		require.ErrorIs(t, err, backend.ErrUnauthenticated)
		require.Equal(t, backend.KindUnauthenticated, backend.KindOf(err))
	})
}

func TestClientSuccessFlagEnvelope(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":{"name":"root","role":"4"}}`)
	})

	var out struct {
		Name string `json:"name"`
	}
	_, err := client.Do(context.Background(), backend.Call{Path: "/api/status"}, &out)
	require.NoError(t, err)
	require.Equal(t, "root", out.Name)
}

func TestClientNetworkFailure(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := ts.URL
	ts.Close()

	client, err := backend.NewClient(base, http.DefaultClient)
	require.NoError(t, err)

	_, err = client.Do(context.Background(), backend.Call{Op: "status", Path: "/api/status"}, nil)
	require.Error(t, err)
	require.True(t, backend.IsNetwork(err))
	require.Equal(t, "fallback", backend.Message(err, "fallback"))
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	t.Parallel()

	_, err := backend.NewClient("", nil)
	require.Error(t, err)

	_, err = backend.NewClient("/relative", nil)
	require.Error(t, err)
}

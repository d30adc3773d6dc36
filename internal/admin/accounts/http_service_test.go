package accounts_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

func newService(t *testing.T, handler http.HandlerFunc) *accounts.HTTPService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := backend.NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return accounts.NewHTTPService(client)
}

func TestHTTPServiceList(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bilibili/accounts", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":200,"data":[{"id":3,"dedeuserid":"1001","nickname":"","avatar":"https://i0.hdslb.com/a.jpg","is_active":1,"created_at":"2025-01-02 03:04:05"}]}`)
	})

	list, err := svc.List(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "3", list[0].ID.String())
	require.True(t, list[0].Active())
	require.Equal(t, "UID 1001", list[0].DisplayName())
	require.Equal(t, 2025, list[0].CreatedAt.Year())
}

func TestHTTPServiceToggle(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/bilibili/accounts/9/toggle", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.False(t, body["isActive"])
		_, _ = io.WriteString(w, `{"code":200,"message":"disabled"}`)
	})

	msg, err := svc.SetActive(context.Background(), "tok", "9", false)
	require.NoError(t, err)
	require.Equal(t, "disabled", msg)
}

func TestHTTPServiceDeleteRejected(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		_, _ = io.WriteString(w, `{"code":500,"message":"account in use"}`)
	})

	_, err := svc.Delete(context.Background(), "tok", "9")
	require.Error(t, err)
	require.Equal(t, backend.KindRejected, backend.KindOf(err))
	require.Equal(t, "account in use", backend.Message(err, ""))
}

func TestHTTPServiceRequiresToken(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request to %s", r.URL.Path)
	})
	_, err := svc.List(context.Background(), "")
	require.ErrorIs(t, err, backend.ErrUnauthenticated)
}

func TestStaticServiceLifecycle(t *testing.T) {
	t.Parallel()

	svc := accounts.NewStaticService()
	ctx := context.Background()
	list, err := svc.List(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, accounts.Summary{Total: 2, Active: 1}, accounts.Summarise(list))

	linked := svc.Link("new-account")
	_, err = svc.SetActive(ctx, "tok", linked.ID.String(), false)
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "tok", "1")
	require.NoError(t, err)

	list, err = svc.List(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, accounts.Summary{Total: 2, Active: 0}, accounts.Summarise(list))
}

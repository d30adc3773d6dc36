package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/identity"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

func newService(t *testing.T, handler http.HandlerFunc) *identity.HTTPService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := backend.NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return identity.NewHTTPService(client)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pc/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice", body["username"])
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":{"token":"jwt-1","role":"2","name":"alice","id":5}}`)
	})

	login, err := svc.Login(context.Background(), " alice ", "secret", true)
	require.NoError(t, err)
	require.Equal(t, "jwt-1", login.Token)
	require.Equal(t, "5", login.ID.String())
}

func TestLoginRejected(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":400,"message":"wrong password"}`)
	})

	_, err := svc.Login(context.Background(), "alice", "bad", false)
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "wrong password")
}

func TestAuthenticatorMapsStatus(t *testing.T) {
	t.Parallel()

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/status", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"userid":"7","name":"bob","role":"3","avatar":"a.png"}}`)
	})
	auth := identity.NewAuthenticator(svc)

	user, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "good")
	require.NoError(t, err)
	require.Equal(t, "7", user.UID)
	require.Equal(t, rbac.RoleSuperAdmin, user.Role)
	require.Equal(t, "good", user.Token)

	_, err = auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "stale")
	var authErr *middleware.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, middleware.ReasonTokenExpired, authErr.Reason)
}

func TestStaticService(t *testing.T) {
	t.Parallel()

	svc := identity.NewStaticService()
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin", "nope", false)
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	login, err := svc.Login(ctx, "root", "password", false)
	require.NoError(t, err)
	user, err := svc.Status(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleUnlimited, user.RoleValue())

	require.NoError(t, svc.Logout(ctx, login.Token))
	_, err = svc.Status(ctx, login.Token)
	require.ErrorIs(t, err, backend.ErrUnauthenticated)
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToastMergesTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	Trigger(rr, "accounts-changed", nil)
	Toast(rr, "Account linked", ToneSuccess)
	Toast(rr, "", ToneDanger)

	var events map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &events))
	require.JSONEq(t, `true`, string(events["accounts-changed"]))
	require.JSONEq(t, `{"message":"Account linked","tone":"success"}`, string(events["toast"]))
}

func TestRedirectHonoursHTMX(t *testing.T) {
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Redirect(w, r, "/admin/videos")
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "/admin/videos", rr.Header().Get("HX-Redirect"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/login", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/admin/videos", rr.Header().Get("Location"))
}

func TestCSRFAcceptsFormField(t *testing.T) {
	mw := CSRF(CSRFConfig{CookieName: "csrf"})
	form := url.Values{CSRFFormField: {"token"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf", Value: "token"})

	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPathHelpers(t *testing.T) {
	require.Equal(t, "/admin/videos", JoinPath("/admin/", "videos"))
	require.Equal(t, "/videos", JoinPath("/", "/videos"))
	require.Equal(t, "/admin", JoinPath("/admin", ""))
	require.Equal(t, "/videos", PathFor(context.Background(), "/videos"))

	require.Equal(t, "DEV", EnvironmentBadge("Development"))
	require.Equal(t, "STG", EnvironmentBadge("staging"))
	require.Empty(t, EnvironmentBadge("Production"))
	require.Equal(t, "QA", EnvironmentBadge("qa"))
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	require.Empty(t, TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: url.QueryEscape("Bearer from-cookie")})
	require.Equal(t, "from-cookie", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", TokenFromRequest(req))
}

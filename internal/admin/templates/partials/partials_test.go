package partials

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/navigation"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

func TestVisibleItemsFiltersByCapability(t *testing.T) {
	t.Parallel()

	menu := navigation.BuildMenu("/admin")
	var videos navigation.MenuGroup
	for _, group := range menu {
		if group.Key == "videos" {
			videos = group
		}
	}
	require.NotEmpty(t, videos.Items)

	user := middleware.ContextWithUser(context.Background(), &middleware.User{UID: "u", Role: rbac.RoleUser})
	admin := middleware.ContextWithUser(context.Background(), &middleware.User{UID: "a", Role: rbac.RoleAdmin})
	none := middleware.ContextWithUser(context.Background(), &middleware.User{UID: "n", Role: rbac.RoleNone})

	keys := func(items []navigation.MenuItem) []string {
		var out []string
		for _, item := range items {
			out = append(out, item.Key)
		}
		return out
	}
	require.Equal(t, []string{"parse", "batch", "available"}, keys(visibleItems(videos, user)))
	require.Equal(t, []string{"parse", "batch", "available", "library"}, keys(visibleItems(videos, admin)))
	require.False(t, hasVisibleItems(videos, none))
}

func TestSidebarRenderingFiltersAndHighlights(t *testing.T) {
	t.Parallel()

	ctx := requestContext(t, "/admin/videos/available", "Development")
	ctx = middleware.ContextWithUser(ctx, &middleware.User{UID: "u", Role: rbac.RoleUser})

	var buf bytes.Buffer
	require.NoError(t, Sidebar(navigation.BuildMenu("/admin")).Render(ctx, &buf))
	doc := parseHTML(t, buf.Bytes())

	require.Equal(t, 0, doc.Find(`a[href="/admin/videos/library"]`).Length(), "library needs the delete capability")

	link := doc.Find(`a[href="/admin/videos/available"]`)
	require.Equal(t, 1, link.Length())
	require.Equal(t, "page", link.AttrOr("aria-current", ""))
	require.Contains(t, link.AttrOr("class", ""), "bg-slate-900")

	dashboard := doc.Find(`a[href="/admin"]`).Last()
	require.Equal(t, "", dashboard.AttrOr("aria-current", ""))
}

func TestTopbarRendersBadgeAndUserMenu(t *testing.T) {
	t.Parallel()

	ctx := requestContext(t, "/admin", "Staging")
	ctx = middleware.ContextWithUser(ctx, &middleware.User{UID: "7", Name: "alice", Role: rbac.RoleSuperAdmin})

	var buf bytes.Buffer
	require.NoError(t, TopbarActions().Render(ctx, &buf))
	doc := parseHTML(t, buf.Bytes())

	badge := doc.Find("[data-environment-badge] span[aria-hidden='true']")
	require.Equal(t, "STG", strings.TrimSpace(badge.Text()))
	require.Contains(t, doc.Find("[data-user-menu]").Text(), "alice")
	require.Equal(t, "Super admin", strings.TrimSpace(doc.Find("[data-user-role]").Text()))
	require.Equal(t, "/admin/logout", doc.Find("[data-user-menu-logout]").AttrOr("action", ""))
	require.Equal(t, 1, doc.Find(`[data-user-menu-logout] input[name="_csrf"]`).Length())
}

func TestTopbarHidesBadgeInProduction(t *testing.T) {
	t.Parallel()

	ctx := requestContext(t, "/admin", "Production")
	var buf bytes.Buffer
	require.NoError(t, TopbarActions().Render(ctx, &buf))
	doc := parseHTML(t, buf.Bytes())
	require.Equal(t, 0, doc.Find("[data-environment-badge]").Length())
	require.Equal(t, 0, doc.Find("[data-user-menu]").Length())
}

func requestContext(t *testing.T, path, environment string) context.Context {
	t.Helper()

	var ctx context.Context
	handler := middleware.RequestInfoMiddleware("/admin")(middleware.Environment(environment)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	require.NotNil(t, ctx)
	return ctx
}

func parseHTML(t *testing.T, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(t, err)
	return doc
}

package partials

import (
	"context"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/navigation"
	appsession "github.com/xiaoshenming/bilibili-Api-front/internal/admin/session"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/helpers"
)

// Chrome is the per-request state shared by the layout, sidebar and top bar.
type Chrome struct {
	Title       string
	BasePath    string
	CurrentPath string
	User        *middleware.User
	RoleLabel   string
	Environment string
	EnvBadge    string
	CSRFToken   string
	CSRFField   string
	Menu        []MenuGroupView
	Flash       *appsession.Flash
}

// MenuGroupView is a menu group filtered for the current user.
type MenuGroupView struct {
	Key   string
	Label string
	Items []MenuItemView
}

// MenuItemView carries the highlight state of one link.
type MenuItemView struct {
	navigation.MenuItem
	Active bool
	Class  string
}

// ChromeFrom collects the layout state from request middleware values.
func ChromeFrom(ctx context.Context, title string) Chrome {
	base := helpers.BasePath(ctx)
	env := middleware.EnvironmentFromContext(ctx)
	c := Chrome{
		Title:       title,
		BasePath:    base,
		CurrentPath: helpers.RequestPath(ctx),
		Environment: env,
		EnvBadge:    middleware.EnvironmentBadge(env),
		CSRFToken:   middleware.CSRFTokenFromContext(ctx),
		CSRFField:   middleware.CSRFFormField,
	}
	if user, ok := middleware.UserFromContext(ctx); ok {
		c.User = user
		c.RoleLabel = user.Role.Label()
	}
	c.Menu = menuFor(ctx, navigation.BuildMenu(base))
	return c
}

func menuFor(ctx context.Context, menu []navigation.MenuGroup) []MenuGroupView {
	var out []MenuGroupView
	for _, group := range menu {
		items := visibleItems(group, ctx)
		if len(items) == 0 {
			continue
		}
		view := MenuGroupView{Key: group.Key, Label: group.Label}
		for _, item := range items {
			active := helpers.NavActive(ctx, item.Pattern, item.MatchPrefix)
			view.Items = append(view.Items, MenuItemView{MenuItem: item, Active: active, Class: helpers.NavClass(active)})
		}
		out = append(out, view)
	}
	return out
}

func visibleItems(group navigation.MenuGroup, ctx context.Context) []navigation.MenuItem {
	if !helpers.HasCapability(ctx, group.Capability) {
		return nil
	}
	var items []navigation.MenuItem
	for _, item := range group.Items {
		if helpers.HasCapability(ctx, item.Capability) {
			items = append(items, item)
		}
	}
	return items
}

func hasVisibleItems(group navigation.MenuGroup, ctx context.Context) bool {
	return len(visibleItems(group, ctx)) > 0
}

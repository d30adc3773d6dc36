// Package navigation defines the console sidebar.
package navigation

import (
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// MenuItem is one sidebar link.
type MenuItem struct {
	Key         string
	Label       string
	Icon        string
	Capability  rbac.Capability
	Href        string
	Pattern     string
	MatchPrefix bool
}

// MenuGroup is a titled block of links. A group capability hides every item when missing.
type MenuGroup struct {
	Key        string
	Label      string
	Capability rbac.Capability
	Items      []MenuItem
}

// BuildMenu returns the sidebar rooted at base.
func BuildMenu(base string) []MenuGroup {
	link := func(suffix string) string { return join(base, suffix) }
	return []MenuGroup{
		{
			Key:        "overview",
			Label:      "Overview",
			Capability: rbac.CapConsoleView,
			Items: []MenuItem{
				{Key: "dashboard", Label: "Dashboard", Icon: "home", Capability: rbac.CapConsoleView, Href: link("/"), Pattern: link("/")},
			},
		},
		{
			Key:        "bilibili",
			Label:      "Bilibili",
			Capability: rbac.CapAccountsManage,
			Items: []MenuItem{
				{Key: "accounts", Label: "Bilibili accounts", Icon: "user", Capability: rbac.CapAccountsManage, Href: link("/bilibili"), Pattern: link("/bilibili"), MatchPrefix: true},
			},
		},
		{
			Key:   "videos",
			Label: "Videos",
			Items: []MenuItem{
				{Key: "parse", Label: "Parse video", Icon: "search", Capability: rbac.CapVideosProcess, Href: link("/videos/parse"), Pattern: link("/videos/parse")},
				{Key: "batch", Label: "Batch processing", Icon: "layers", Capability: rbac.CapVideosProcess, Href: link("/videos/batch"), Pattern: link("/videos/batch")},
				{Key: "available", Label: "Available videos", Icon: "download", Capability: rbac.CapVideosBrowse, Href: link("/videos/available"), Pattern: link("/videos/available"), MatchPrefix: true},
				{Key: "library", Label: "Video library", Icon: "film", Capability: rbac.CapVideosDelete, Href: link("/videos/library"), Pattern: link("/videos/library"), MatchPrefix: true},
			},
		},
		{
			Key:   "support",
			Label: "Support",
			Items: []MenuItem{
				{Key: "help", Label: "Help", Icon: "info", Href: link("/help"), Pattern: link("/help"), MatchPrefix: true},
			},
		},
	}
}

func join(base, suffix string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if suffix == "/" {
		if base == "" {
			return "/"
		}
		return base
	}
	return base + suffix
}

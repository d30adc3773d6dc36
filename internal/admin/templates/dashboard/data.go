package dashboard

import (
	"slices"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/quota"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

// recentLimit caps the recent-videos table.
const recentLimit = 5

// PageData represents the full dashboard payload.
type PageData struct {
	Accounts      accounts.Summary
	AccountsError string
	Quota         partials.QuotaCard
	Recent        []videos.Video
	Stats         videos.Stats
	VideosError   string
	AccountsURL   string
	ParseURL      string
	AvailableURL  string
	RoleLabel     string
	Capabilities  []string
}

// BuildPageData assembles the dashboard from the fetched listings.
func BuildPageData(base string, linked []accounts.Account, status *quota.Status, list []videos.Video) PageData {
	recent := videos.Filter{Sort: videos.SortNewest}.Apply(list)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	return PageData{
		Accounts:     accounts.Summarise(linked),
		Quota:        partials.NewQuotaCard(status, "", ""),
		Recent:       recent,
		Stats:        videos.Summarise(list),
		AccountsURL:  joinBase(base, "/bilibili"),
		ParseURL:     joinBase(base, "/videos/parse"),
		AvailableURL: joinBase(base, "/videos/available"),
	}
}

func joinBase(base, suffix string) string {
	if base == "" || base == "/" {
		return suffix
	}
	return base + suffix
}

// Access fills the role card for role. Capabilities are listed alphabetically.
func (p *PageData) Access(role rbac.Role) {
	p.RoleLabel = role.Label()
	p.Capabilities = p.Capabilities[:0]
	for capability := range rbac.CapabilitiesFor(role) {
		p.Capabilities = append(p.Capabilities, string(capability))
	}
	slices.Sort(p.Capabilities)
}

package dashboard

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
)

//go:embed html/*.html
var files embed.FS

var page = partials.NewPage(files, "html/*.html")

// Index renders the dashboard.
func Index(data PageData) templ.Component {
	return page.Component("Dashboard", data)
}

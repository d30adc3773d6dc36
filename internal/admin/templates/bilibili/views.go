package bilibili

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
)

//go:embed html/*.html
var files embed.FS

var page = partials.NewPage(files, "html/*.html")

// Index renders the accounts page.
func Index(data PageData) templ.Component {
	return page.Component("Bilibili accounts", data)
}

// QRPanelFragment renders the QR login panel, swapped on start, reset and every status poll.
func QRPanelFragment(panel QRPanel) templ.Component {
	return page.Fragment("qr-panel", panel)
}

// AccountsFragment renders the accounts table.
func AccountsFragment(table AccountsTable) templ.Component {
	return page.Fragment("accounts-table", table)
}

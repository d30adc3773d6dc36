package auth

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
)

//go:embed html/*.html
var files embed.FS

var (
	loginPage    = partials.NewPage(files, "html/login.html")
	noAccessPage = partials.NewPage(files, "html/noaccess.html")
)

// Login renders the sign-in form.
func Login(data LoginPageData) templ.Component {
	return loginPage.Bare("Sign in", data)
}

// NoAccess renders the page for accounts without an access tier.
func NoAccess(data NoAccessPageData) templ.Component {
	return noAccessPage.Bare("No access", data)
}

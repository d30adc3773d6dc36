// Package help renders the operator documentation pages.
package help

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
)

//go:embed html/*.html
var files embed.FS

var page = partials.NewPage(files, "html/*.html")

// PageData lists the documents and the one being read.
type PageData struct {
	Docs    []help.Doc
	Current *help.Doc
	BaseURL string
}

// Index renders the help centre.
func Index(data PageData) templ.Component {
	title := "Help"
	if data.Current != nil {
		title = data.Current.Title
	}
	return page.Component(title, data)
}

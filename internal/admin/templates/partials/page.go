// Package partials holds the shared console layout and the template engine used by every page package.
package partials

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/a-h/templ"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/navigation"
)

//go:embed html/*.html
var layoutFS embed.FS

var (
	base = template.Must(template.New("console").Funcs(Funcs()).ParseFS(layoutFS, "html/*.html"))
	// chrome is executed directly; base must stay unexecuted so pages can Clone it.
	chrome = template.Must(base.Clone())
)

// View is the value every template executes against.
type View struct {
	Chrome Chrome
	Data   any
}

// Page is a parsed page template set layered over the shared layout.
type Page struct {
	tpl *template.Template
}

// NewPage parses the page files matched by patterns on top of a copy of the layout. It panics on
// parse errors, so pages are declared as package variables.
func NewPage(pageFS fs.FS, patterns ...string) *Page {
	tpl := template.Must(base.Clone())
	template.Must(tpl.ParseFS(pageFS, patterns...))
	return &Page{tpl: tpl}
}

// Component renders the full document: layout "page" wraps the page's "content" template.
func (p *Page) Component(title string, data any) templ.Component {
	return p.document("page", title, data)
}

// Bare renders the document shell without navigation, used by the login and no-access screens.
func (p *Page) Bare(title string, data any) templ.Component {
	return p.document("bare", title, data)
}

// Fragment renders a single named template for htmx swaps. The template receives data as is,
// the same value a page passes to it with {{template "name" .Field}}.
func (p *Page) Fragment(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return execute(w, p.tpl, name, data)
	})
}

func (p *Page) document(name, title string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		c := ChromeFrom(ctx, title)
		if sess, ok := middleware.SessionFromContext(ctx); ok && sess != nil {
			if flash, ok := sess.TakeFlash(); ok {
				c.Flash = &flash
			}
		}
		return execute(w, p.tpl, name, View{Chrome: c, Data: data})
	})
}

// execute writes nothing when the template fails.
func execute(w io.Writer, tpl *template.Template, name string, data any) error {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Sidebar renders the navigation for menu.
func Sidebar(menu []navigation.MenuGroup) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		c := ChromeFrom(ctx, "")
		c.Menu = menuFor(ctx, menu)
		return execute(w, chrome, "sidebar", View{Chrome: c})
	})
}

// TopbarActions renders the environment badge and the user menu.
func TopbarActions() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return execute(w, chrome, "topbar", View{Chrome: ChromeFrom(ctx, "")})
	})
}
